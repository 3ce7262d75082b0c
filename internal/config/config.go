package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chiufan/tidescan/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Provider   ProviderConfig             `mapstructure:"provider"`
	Storage    StorageConfig              `mapstructure:"storage"`
	Session    SessionConfig              `mapstructure:"session"`
	Evaluators map[string]EvaluatorConfig `mapstructure:"evaluators"`
	Notifiers  map[string]NotifierConfig  `mapstructure:"notifiers"`
	Metrics    MetricsConfig              `mapstructure:"metrics"`
}

// ProviderConfig controls history fetching and batch pacing.
type ProviderConfig struct {
	LookbackDays   int           `mapstructure:"lookback_days"`
	Concurrency    int           `mapstructure:"concurrency"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
	Burst          int           `mapstructure:"burst"`
	Retries        int           `mapstructure:"retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

type StorageConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// SessionConfig controls the market-session gate on ledger commits.
type SessionConfig struct {
	// ForceCommit bypasses the session check, for reruns against
	// historical data.
	ForceCommit bool `mapstructure:"force_commit"`
}

type EvaluatorConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Params  map[string]any `mapstructure:"params"`
}

type NotifierConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	// Email notifier fields
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	// Webhook notifier fields
	Headers map[string]string `mapstructure:"headers"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Provider: ProviderConfig{
			LookbackDays:   730,
			Concurrency:    8,
			RequestsPerSec: 5,
			Burst:          10,
			Retries:        1,
			RetryBackoff:   2 * time.Second,
		},
		Storage: StorageConfig{
			Type: "localfs",
			Path: "data",
		},
		Evaluators: map[string]EvaluatorConfig{
			"pullback_setup": {Enabled: true},
			"strict_vcp":     {Enabled: true},
			"nshape_pivot":   {Enabled: true},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9310",
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Provider.LookbackDays < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("lookback_days must be positive, got %d", c.Provider.LookbackDays))
	}
	if c.Provider.Concurrency < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("concurrency must be positive, got %d", c.Provider.Concurrency))
	}
	if c.Provider.RequestsPerSec < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("requests_per_sec cannot be negative, got %f", c.Provider.RequestsPerSec))
	}
	if c.Provider.Retries < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("retries cannot be negative, got %d", c.Provider.Retries))
	}

	switch c.Storage.Type {
	case "localfs":
		if c.Storage.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage path required for localfs"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when storage type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	for name, n := range c.Notifiers {
		if !n.Enabled {
			continue
		}
		switch name {
		case "email":
			if n.Host == "" || n.From == "" || len(n.To) == 0 {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("email notifier requires host, from, and to"))
			}
		case "webhook":
			if n.URL == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("webhook notifier requires url"))
			}
		}
	}

	return nil
}
