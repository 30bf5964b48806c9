package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	assert.Equal(t, "qwen2.5:7b", cfg.Model)
	assert.Equal(t, 60*time.Second, cfg.CallTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with custom host and model", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"), WithModel("gpt-4o-mini"))

		assert.Equal(t, "http://custom:8080/v1", cfg.Host)
		assert.Equal(t, "gpt-4o-mini", cfg.Model)
	})

	t.Run("with gemini", func(t *testing.T) {
		cfg := NewConfig(WithProvider("Gemini"), WithAPIKey(" key "), WithModel("gemini-2.5-flash"))
		require.NoError(t, cfg.Validate())
		assert.Equal(t, ProviderGemini, cfg.Provider)
		assert.Equal(t, "key", cfg.APIKey)
	})

	t.Run("with retry settings", func(t *testing.T) {
		cfg := NewConfig(WithCallTimeout(5*time.Second), WithMaxAttempts(5))
		assert.Equal(t, 5*time.Second, cfg.CallTimeout)
		assert.Equal(t, 5, cfg.MaxAttempts)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{"adds /v1", "http://localhost:11434", "http://localhost:11434/v1"},
		{"strips trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"keeps /v1", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(WithHost(tt.host))
			cfg.Normalize()
			assert.Equal(t, tt.expected, cfg.Host)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []ConfigOption
		wantErr string
	}{
		{"missing host", []ConfigOption{WithHost("")}, "Host is required"},
		{"missing model", []ConfigOption{WithModel("")}, "Model is required"},
		{"gemini without key", []ConfigOption{WithProvider(ProviderGemini)}, "APIKey is required"},
		{"unknown provider", []ConfigOption{WithProvider("acme-llm")}, "unknown ai provider"},
		{"negative timeout", []ConfigOption{WithCallTimeout(-time.Second)}, "CallTimeout"},
		{"zero attempts", []ConfigOption{WithMaxAttempts(0)}, "MaxAttempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig(tt.opts...).Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
