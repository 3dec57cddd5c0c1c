// Package config loads falconeri's process configuration from a YAML
// file overlaid with environment variables, following the teacher's
// config-struct-with-yaml-tags idiom.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for falconerid, the worker, and the
// babysitter. All three share this struct; each process only reads the
// sections it needs.
type Config struct {
	Database       DatabaseConfig   `yaml:"database"`
	HTTP           HTTPConfig       `yaml:"http"`
	Babysitter     BabysitterConfig `yaml:"babysitter"`
	Worker         WorkerConfig     `yaml:"worker"`
	AdminPassword  string           `yaml:"adminPassword"`
	KubeNamespace  string           `yaml:"kubeNamespace"`
	InputRoot      string           `yaml:"inputRoot"`
	ScratchRoot    string           `yaml:"scratchRoot"`
	// APIURL is the Control Service base URL, used by the worker to reach
	// falconerid. falconerid itself doesn't read it; the falconeri CLI
	// takes the URL from its own flags instead.
	APIURL string `yaml:"apiURL"`
}

type DatabaseConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	UserName    string `yaml:"userName"`
	Password    string `yaml:"password"`
	DBName      string `yaml:"dbName"`
	SSLMode     string `yaml:"sslMode"`
	MaxIdleConn int    `yaml:"maxIdleConn"`
	MaxOpenConn int    `yaml:"maxOpenConn"`
}

func (d DatabaseConfig) Validate() error {
	if d.Host == "" || d.Port == 0 || d.DBName == "" {
		return fmt.Errorf("database config invalid: host, port and dbName are required")
	}
	return nil
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type BabysitterConfig struct {
	// TickInterval is how often the reconciler runs. Defaults to 2m per spec §4.G.
	TickInterval time.Duration `yaml:"tickInterval"`
	// VanishedJobAfter is how long a running Job may exist without a
	// matching Kubernetes Job before it's declared vanished. Defaults to 15m.
	VanishedJobAfter time.Duration `yaml:"vanishedJobAfter"`
}

func (b BabysitterConfig) TickIntervalOrDefault() time.Duration {
	if b.TickInterval <= 0 {
		return 2 * time.Minute
	}
	return b.TickInterval
}

func (b BabysitterConfig) VanishedJobAfterOrDefault() time.Duration {
	if b.VanishedJobAfter <= 0 {
		return 15 * time.Minute
	}
	return b.VanishedJobAfter
}

type WorkerConfig struct {
	NodeName string `yaml:"-"`
	PodName  string `yaml:"-"`
}

// Load reads a YAML config file, then overlays a small set of
// environment variables that deployment manifests commonly set.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	overlayEnv(cfg)
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	if v := os.Getenv("FALCONERI_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FALCONERI_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
		if cfg.AdminPassword == "" {
			cfg.AdminPassword = v
		}
	}
	if v := os.Getenv("FALCONERI_NODE_NAME"); v != "" {
		cfg.Worker.NodeName = v
	}
	if v := os.Getenv("FALCONERI_POD_NAME"); v != "" {
		cfg.Worker.PodName = v
	}
	if v := os.Getenv("FALCONERI_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if cfg.InputRoot == "" {
		cfg.InputRoot = "/pfs"
	}
	if cfg.ScratchRoot == "" {
		cfg.ScratchRoot = "/scratch"
	}
}
