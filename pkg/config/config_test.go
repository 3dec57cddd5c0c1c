package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsRootsWhenUnset(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/pfs", cfg.InputRoot)
	assert.Equal(t, "/scratch", cfg.ScratchRoot)
}

func TestLoadParsesYAMLFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString(`
database:
  host: db.internal
  port: 5432
  dbName: falconeri
http:
  port: 9090
inputRoot: /custom/pfs
`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := Load(f.Name())
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "/custom/pfs", cfg.InputRoot)
}

func TestLoadEnvOverlayTakesPrecedence(t *testing.T) {
	t.Setenv("FALCONERI_DB_HOST", "env-host")
	t.Setenv("FALCONERI_DB_PASSWORD", "secret")
	t.Setenv("FALCONERI_API_URL", "http://falconerid:8080")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "secret", cfg.AdminPassword)
	assert.Equal(t, "http://falconerid:8080", cfg.APIURL)
}

func TestDatabaseConfigValidate(t *testing.T) {
	assert.Error(t, DatabaseConfig{}.Validate())
	assert.NoError(t, DatabaseConfig{Host: "h", Port: 5432, DBName: "d"}.Validate())
}

func TestBabysitterConfigDefaults(t *testing.T) {
	var b BabysitterConfig
	assert.Equal(t, 2*time.Minute, b.TickIntervalOrDefault())
	assert.Equal(t, 15*time.Minute, b.VanishedJobAfterOrDefault())

	b = BabysitterConfig{TickInterval: 30 * time.Second, VanishedJobAfter: 5 * time.Minute}
	assert.Equal(t, 30*time.Second, b.TickIntervalOrDefault())
	assert.Equal(t, 5*time.Minute, b.VanishedJobAfterOrDefault())
}
