package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the top-level, layered configuration for one blockctl run:
// flags override environment variables, which override the config
// file, which overrides these defaults.
type Config struct {
	Session     SessionConfig     `mapstructure:"session" validate:"required"`
	TargetList  TargetListConfig  `mapstructure:"target_list" validate:"required"`
	Persistence PersistenceConfig `mapstructure:"persistence" validate:"required"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Client      ClientConfig      `mapstructure:"client"`
	Processing  ProcessingConfig  `mapstructure:"processing"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// SessionConfig locates the cookie jar backing the authenticated session.
type SessionConfig struct {
	CookiePath string `mapstructure:"cookie_path" validate:"required"`
}

// TargetListConfig locates the account list to process.
type TargetListConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// PersistenceConfig configures the sqlite outcome store.
type PersistenceConfig struct {
	Path         string `mapstructure:"path" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// CacheConfig configures the three-tier resolve cache.
type CacheConfig struct {
	Dir                 string        `mapstructure:"dir" validate:"required"`
	LookupTTL           time.Duration `mapstructure:"lookup_ttl"`
	ProfileTTL          time.Duration `mapstructure:"profile_ttl"`
	RelationshipTTL     time.Duration `mapstructure:"relationship_ttl"`
	LRUSize             int           `mapstructure:"lru_size"`
	ProfileCeiling      int           `mapstructure:"profile_ceiling"`
	RelationshipCeiling int           `mapstructure:"relationship_ceiling"`
	RedisEnabled        bool          `mapstructure:"redis_enabled"`
	RedisAddr           string        `mapstructure:"redis_addr"`
	RedisPassword       string        `mapstructure:"redis_password"`
	RedisDB             int           `mapstructure:"redis_db"`
}

// ClientConfig configures the API client: endpoints and the 403
// cool-down circuit. Inter-call pacing is the processing manager's
// concern (ProcessingConfig.InterCallDelay), since only the manager
// knows whether a given call's outcome should suspend the next one.
type ClientConfig struct {
	BaseURL                  string        `mapstructure:"base_url" validate:"required"`
	RequestTimeout           time.Duration `mapstructure:"request_timeout"`
	DisableHeaderEnhancement bool          `mapstructure:"disable_header_enhancement"`
	EnableForwardedFor       bool          `mapstructure:"enable_forwarded_for"`
	CooldownTripCount        int           `mapstructure:"cooldown_trip_count"`
	CooldownWindow           time.Duration `mapstructure:"cooldown_window"`
	CooldownDuration         time.Duration `mapstructure:"cooldown_duration"`
}

// ProcessingConfig configures the batch pipeline and retry policy.
type ProcessingConfig struct {
	BatchSize        int           `mapstructure:"batch_size"`
	RetryCeiling     int           `mapstructure:"retry_ceiling"`
	AutoRetryCeiling int           `mapstructure:"auto_retry_ceiling"`
	DryRun           bool          `mapstructure:"dry_run"`
	InterCallDelay   time.Duration `mapstructure:"inter_call_delay"`

	// MaxTargets caps how many targets one run processes; 0 means no
	// explicit cap (TestModeLimit still applies unless All is set).
	MaxTargets int `mapstructure:"max_targets"`
	// AutoRetry enables the post-primary-pass retry sweep over
	// persisted transient failures.
	AutoRetry bool `mapstructure:"auto_retry"`
	// TestModeLimit caps the run to this many targets when neither
	// All nor an explicit MaxTargets was requested.
	TestModeLimit int `mapstructure:"test_mode_limit"`
	// All disables TestModeLimit, processing the full target list
	// (subject to MaxTargets if still set).
	All bool `mapstructure:"all"`
}

// LogConfig configures the ambient structured logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig gates the prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

var validate = validator.New()

// LoadConfig loads configuration from configPath (if non-empty) layered
// under environment variables and flag-set defaults already pushed onto
// v via BindPFlags by the caller.
func LoadConfig(v *viper.Viper, configPath string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("blockctl")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("session.cookie_path", "BLOCKCTL_COOKIE_PATH", "BLOCKCTL_SESSION_COOKIE_PATH")

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("session.cookie_path", "")
	v.SetDefault("target_list.path", "")

	v.SetDefault("persistence.path", "blockctl.db")
	v.SetDefault("persistence.max_open_conns", 4)
	v.SetDefault("persistence.max_idle_conns", 2)

	v.SetDefault("cache.dir", ".blockctl-cache")
	v.SetDefault("cache.lookup_ttl", "720h")
	v.SetDefault("cache.profile_ttl", "24h")
	v.SetDefault("cache.relationship_ttl", "6h")
	v.SetDefault("cache.lru_size", 2000)
	v.SetDefault("cache.profile_ceiling", 50000)
	v.SetDefault("cache.relationship_ceiling", 50000)
	v.SetDefault("cache.redis_enabled", false)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("client.base_url", "https://x.com/i/api")
	v.SetDefault("client.request_timeout", "30s")
	v.SetDefault("client.disable_header_enhancement", false)
	v.SetDefault("client.enable_forwarded_for", false)
	v.SetDefault("client.cooldown_trip_count", 5)
	v.SetDefault("client.cooldown_window", "5m")
	v.SetDefault("client.cooldown_duration", "30m")

	v.SetDefault("processing.inter_call_delay", "1s")
	v.SetDefault("processing.batch_size", 50)
	v.SetDefault("processing.retry_ceiling", 5)
	v.SetDefault("processing.auto_retry_ceiling", 10)
	v.SetDefault("processing.dry_run", false)
	v.SetDefault("processing.max_targets", 0)
	v.SetDefault("processing.auto_retry", false)
	v.SetDefault("processing.test_mode_limit", 5)
	v.SetDefault("processing.all", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "blockctl")
}

// Validate runs struct-tag validation plus the cross-field checks
// validator tags can't express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Processing.BatchSize <= 0 {
		return fmt.Errorf("processing.batch_size must be positive")
	}
	if c.Processing.RetryCeiling < 0 || c.Processing.AutoRetryCeiling < 0 {
		return fmt.Errorf("retry ceilings cannot be negative")
	}
	if c.Client.CooldownTripCount <= 0 {
		return fmt.Errorf("client.cooldown_trip_count must be positive")
	}

	return nil
}

// IsDryRun reports whether this run should skip mutating calls.
func (c *Config) IsDryRun() bool {
	return c.Processing.DryRun
}
