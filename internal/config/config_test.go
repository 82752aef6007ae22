package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.Equal(t, 3*time.Second, cfg.TitleTimeout())
	assert.Equal(t, 8, cfg.Agent.MaxSteps)
	assert.Equal(t, "data/datasources", cfg.Datasource.SQLiteRoot)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
port = 9090

[database]
driver = "mysql"
mysql_db = "qwery_test"

[agent]
max_steps = 3

[datasource]
sqlite_root = "/srv/warehouses"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("AGENT_MAX_STEPS", "5")
	t.Setenv("LLM_PROVIDER", "GEMINI")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Contains(t, cfg.MySQLDSN(), "/qwery_test?")
	assert.Equal(t, 5, cfg.Agent.MaxSteps)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "/srv/warehouses", cfg.Datasource.SQLiteRoot)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Driver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.App.Env = "production"
	assert.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "s3cret"
	assert.NoError(t, cfg.Validate())
}

func TestGetEnvAsIntFallback(t *testing.T) {
	t.Setenv("QWERY_TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvAsInt("QWERY_TEST_INT", 7))
}
