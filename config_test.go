package innosupps_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	innosupps "github.com/simd-personal/Inno-Supps"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	t.Parallel()
	cfg := innosupps.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.MockMode)
	assert.Equal(t, []string{"high", "default", "low"}, cfg.QueueNames())
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenExpiry)
}

func TestLoadConfig_FileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
worker:
  concurrency: 4
  backoff: linear
rate_limit:
  api_limit: 20
  api_window: 30s
http:
  addr: ":9000"
`), 0o600))

	cfg, err := innosupps.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, "linear", cfg.Worker.Backoff)
	assert.Equal(t, 20, cfg.RateLimit.APILimit)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.APIWindow)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	// Untouched sections keep their defaults.
	assert.Equal(t, 48*time.Hour, cfg.Email.Cooldown)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := innosupps.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker: ["), 0o600))
	_, err = innosupps.LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		"DATABASE_URL":   "postgres://u:p@db:5432/app",
		"REDIS_URL":      "redis://cache:6379/0",
		"OPENAI_API_KEY": "sk-test",
		"JWT_SECRET":     "s3cret",
		"LOG_LEVEL":      "debug",
		"MOCK_MODE":      "false",
	}
	cfg := innosupps.DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, env["DATABASE_URL"], cfg.Database.URL)
	assert.Equal(t, env["REDIS_URL"], cfg.Redis.URL)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.MockMode)
	require.NoError(t, cfg.Validate())

	bad := innosupps.DefaultConfig()
	assert.Error(t, bad.ApplyEnv(func(k string) string {
		if k == "MOCK_MODE" {
			return "maybe"
		}
		return ""
	}))
}

func TestApplyEnv_ExplicitDriverWins(t *testing.T) {
	t.Parallel()
	cfg := innosupps.DefaultConfig()
	env := map[string]string{"DATABASE_URL": "postgres://db/app", "DATABASE_DRIVER": "bun"}
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, "bun", cfg.Database.Driver)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*innosupps.Config)
	}{
		{"zero concurrency", func(c *innosupps.Config) { c.Worker.Concurrency = 0 }},
		{"no queues", func(c *innosupps.Config) { c.Queues = nil }},
		{"unknown backoff", func(c *innosupps.Config) { c.Worker.Backoff = "fibonacci" }},
		{"zero api window", func(c *innosupps.Config) { c.RateLimit.APIWindow = 0 }},
		{"zero email limit", func(c *innosupps.Config) { c.Email.RateLimit = 0 }},
		{"unknown driver", func(c *innosupps.Config) { c.Database.Driver = "oracle" }},
		{"postgres without url", func(c *innosupps.Config) { c.Database.Driver = "postgres" }},
		{"live mode without key", func(c *innosupps.Config) { c.MockMode = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := innosupps.DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), innosupps.ErrValidation)
		})
	}
}
