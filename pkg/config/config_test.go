package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, "local", cfg.Realtime.Broker)
	assert.Equal(t, "static", cfg.Assistant.Provider)
	assert.Equal(t, int64(20*1024*1024), cfg.Uploads.MaxFileSizeBytes)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "System Administrator", cfg.Admin.Name)
	assert.Equal(t, 5*time.Minute, cfg.Analytics.CacheTTL)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ADMIN_EMAIL", " Admin@City.gov ")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AI_PROVIDER", "Anthropic")
	t.Setenv("AI_TIMEOUT", "3s")
	t.Setenv("MAX_FILE_SIZE", "1024")
	t.Setenv("REALTIME_BROKER", "redis")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "admin@city.gov", cfg.Admin.Email)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "anthropic", cfg.Assistant.Provider)
	assert.Equal(t, 3*time.Second, cfg.Assistant.Timeout)
	assert.Equal(t, int64(1024), cfg.Uploads.MaxFileSizeBytes)
	assert.Equal(t, "redis", cfg.Realtime.Broker)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("garbage", time.Minute))
	assert.Equal(t, 2*time.Hour, parseDuration("2h", time.Minute))
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
