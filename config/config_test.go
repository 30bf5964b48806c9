package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/jobstream/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ai.ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, 60*time.Second, cfg.AI.CallTimeout)
	assert.Equal(t, 3, cfg.AI.MaxAttempts)
	assert.Equal(t, 3, cfg.Pipeline.PersistAttempts)
	assert.True(t, cfg.Pipeline.MinimalFallback)
	assert.Equal(t, 10*time.Minute, cfg.Workflows.Timeout)
	assert.Equal(t, "postings/", cfg.Workflows.PostingsPrefix)
	assert.Zero(t, cfg.Workflows.DiscoveryInterval)

	assert.ErrorIs(t, cfg.Validate(), ErrDBPathRequired)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
db_path: /var/lib/jobstream
ai:
  provider: gemini
  model: gemini-2.5-flash
  call_timeout: 30s
workflows:
  profile: bob
  discovery_interval: 15m
`), 0o644))

	t.Setenv("JOBSTREAM_AI_API_KEY", "secret")
	t.Setenv("JOBSTREAM_WORKFLOWS_PROFILE", "alice")
	t.Setenv("JOBSTREAM_PIPELINE_MINIMAL_FALLBACK", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/lib/jobstream", cfg.DBPath)
	assert.Equal(t, "secret", cfg.AI.APIKey)
	assert.Equal(t, 30*time.Second, cfg.AI.CallTimeout)
	assert.Equal(t, "alice", cfg.Workflows.Profile, "environment overrides the file")
	assert.Equal(t, 15*time.Minute, cfg.Workflows.DiscoveryInterval)
	assert.False(t, cfg.Pipeline.MinimalFallback)

	gw, err := cfg.AI.Gateway()
	require.NoError(t, err)
	assert.Equal(t, ai.ProviderGemini, gw.Provider)
	assert.Equal(t, 30*time.Second, gw.CallTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.DBPath = "db"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"unknown provider", func(c *Config) { c.AI.Provider = "bard" }},
		{"gemini without key", func(c *Config) { c.AI.Provider = ai.ProviderGemini }},
		{"zero persist attempts", func(c *Config) { c.Pipeline.PersistAttempts = 0 }},
		{"zero workflow timeout", func(c *Config) { c.Workflows.Timeout = 0 }},
		{"negative interval", func(c *Config) { c.Workflows.StatusInterval = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
