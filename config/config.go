// Package config loads jobstream settings from an optional YAML file and
// JOBSTREAM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/jobstream/ai"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, with dots replaced by
// underscores: ai.api_key is read from JOBSTREAM_AI_API_KEY.
const EnvPrefix = "JOBSTREAM"

var (
	ErrInvalidConfig  = errors.New("invalid config")
	ErrDBPathRequired = errors.New("db_path is required")
)

// Config is the complete application configuration.
type Config struct {
	LogLevel     string          `mapstructure:"log_level"`
	DBPath       string          `mapstructure:"db_path"`
	DocumentsDir string          `mapstructure:"documents_dir"`
	AI           AIConfig        `mapstructure:"ai"`
	Pipeline     PipelineConfig  `mapstructure:"pipeline"`
	Workflows    WorkflowsConfig `mapstructure:"workflows"`
}

// AIConfig selects and tunes the extraction gateway.
type AIConfig struct {
	Provider    string        `mapstructure:"provider"`
	Host        string        `mapstructure:"host"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// PipelineConfig tunes the ingestion pipeline.
type PipelineConfig struct {
	// PoolSize below 1 means executor.DefaultSize().
	PoolSize        int  `mapstructure:"pool_size"`
	PersistAttempts int  `mapstructure:"persist_attempts"`
	MinimalFallback bool `mapstructure:"minimal_fallback"`
}

// WorkflowsConfig tunes the workflow engine and its two workflows.
type WorkflowsConfig struct {
	PoolSize int           `mapstructure:"pool_size"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// Profile receives the stream entries of discovered postings.
	Profile string `mapstructure:"profile"`

	// A zero interval leaves the workflow trigger-only.
	DiscoveryInterval time.Duration `mapstructure:"discovery_interval"`
	StatusInterval    time.Duration `mapstructure:"status_interval"`

	PostingsPrefix    string `mapstructure:"postings_prefix"`
	StatusesPrefix    string `mapstructure:"statuses_prefix"`
	StatusConcurrency int    `mapstructure:"status_concurrency"`
}

var defaults = map[string]any{
	"log_level":                    "info",
	"db_path":                      "",
	"documents_dir":                "documents",
	"ai.provider":                  ai.ProviderOpenAI,
	"ai.host":                      "http://localhost:11434/v1",
	"ai.model":                     "qwen2.5:7b",
	"ai.api_key":                   "",
	"ai.call_timeout":              60 * time.Second,
	"ai.max_attempts":              3,
	"pipeline.pool_size":           0,
	"pipeline.persist_attempts":    3,
	"pipeline.minimal_fallback":    true,
	"workflows.pool_size":          2,
	"workflows.timeout":            10 * time.Minute,
	"workflows.profile":            "",
	"workflows.discovery_interval": time.Duration(0),
	"workflows.status_interval":    time.Duration(0),
	"workflows.postings_prefix":    "postings/",
	"workflows.statuses_prefix":    "statuses/",
	"workflows.status_concurrency": 4,
}

// Load reads the configuration. path names an optional YAML file; environment
// variables override it, and defaults fill whatever neither sets.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// Gateway converts the AI section into a normalized, validated ai.Config.
func (c AIConfig) Gateway() (*ai.Config, error) {
	cfg := ai.NewConfig(
		ai.WithProvider(c.Provider),
		ai.WithHost(c.Host),
		ai.WithModel(c.Model),
		ai.WithAPIKey(c.APIKey),
		ai.WithCallTimeout(c.CallTimeout),
		ai.WithMaxAttempts(c.MaxAttempts),
	)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that Load cannot default.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q must be one of debug, info, warn, error", c.LogLevel))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, ErrDBPathRequired)
	}
	if _, err := c.AI.Gateway(); err != nil {
		errs = append(errs, err)
	}
	if c.Pipeline.PersistAttempts < 1 {
		errs = append(errs, errors.New("pipeline.persist_attempts must be at least 1"))
	}
	if c.Workflows.Timeout <= 0 {
		errs = append(errs, errors.New("workflows.timeout must be positive"))
	}
	if c.Workflows.DiscoveryInterval < 0 || c.Workflows.StatusInterval < 0 {
		errs = append(errs, errors.New("workflow intervals cannot be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
