package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetLevelAppliesValidLevel(t *testing.T) {
	defer global.SetLevel(logrus.InfoLevel)
	SetLevel("debug")
	assert.Equal(t, logrus.DebugLevel, global.GetLevel())
}

func TestSetLevelIgnoresUnknownLevel(t *testing.T) {
	global.SetLevel(logrus.WarnLevel)
	defer global.SetLevel(logrus.InfoLevel)
	SetLevel("not-a-level")
	assert.Equal(t, logrus.WarnLevel, global.GetLevel())
}

func TestWithFieldsCarriesGivenFields(t *testing.T) {
	entry := WithFields(Fields{"job_id": "abc"})
	assert.Equal(t, "abc", entry.Data["job_id"])
}
