// Package log provides a small wrapper around logrus shared by every
// falconeri process (control service, worker, babysitter, CLI).
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Fields is a convenience alias for structured log fields.
type Fields map[string]interface{}

var global = logrus.New()

func init() {
	global.SetOutput(os.Stderr)
	global.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	global.SetLevel(logrus.InfoLevel)
}

// SetLevel overrides the global logger's level from a string such as
// "debug", "info", "warn", "error".
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		global.Warnf("log: unknown level %q, keeping %s", level, global.GetLevel())
		return
	}
	global.SetLevel(lvl)
}

// SetJSON switches the global logger to JSON output, used in-cluster so
// log aggregators can parse structured fields.
func SetJSON() {
	global.SetFormatter(&logrus.JSONFormatter{})
}

// WithFields returns an entry carrying the given structured fields.
func WithFields(f Fields) *logrus.Entry {
	return global.WithFields(logrus.Fields(f))
}

func Debug(args ...interface{})                 { global.Debug(args...) }
func Debugf(format string, args ...interface{}) { global.Debugf(format, args...) }
func Info(args ...interface{})                  { global.Info(args...) }
func Infof(format string, args ...interface{})  { global.Infof(format, args...) }
func Warn(args ...interface{})                  { global.Warn(args...) }
func Warnf(format string, args ...interface{})  { global.Warnf(format, args...) }
func Error(args ...interface{})                 { global.Error(args...) }
func Errorf(format string, args ...interface{}) { global.Errorf(format, args...) }
func Fatal(args ...interface{})                 { global.Fatal(args...) }
func Fatalf(format string, args ...interface{}) { global.Fatalf(format, args...) }
