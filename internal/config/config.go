// Package config loads and validates collector configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Naver     NaverConfig     `mapstructure:"naver"`
	Search    SearchConfig    `mapstructure:"search"`
	Collector CollectorConfig `mapstructure:"collector"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	DB        DBConfig        `mapstructure:"db"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// NaverConfig holds the search API endpoint and credentials.
type NaverConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	BaseURL      string `mapstructure:"base_url"`
}

// SectionConfig is one topical bucket and its keyword queries, in run order.
type SectionConfig struct {
	Name     string   `mapstructure:"name"`
	Keywords []string `mapstructure:"keywords"`
}

// SearchConfig lists the sections to collect and titles to drop.
type SearchConfig struct {
	Sections        []SectionConfig `mapstructure:"sections"`
	ExcludeKeywords []string        `mapstructure:"exclude_keywords"`
}

// CollectorConfig governs pagination, pacing and retry behavior.
type CollectorConfig struct {
	ItemsPerRequest   int `mapstructure:"items_per_request"`
	MaxItems          int `mapstructure:"max_items"`
	RequestIntervalMs int `mapstructure:"request_interval_ms"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds"`
	MaxRetries        int `mapstructure:"max_retries"`
	KeywordDelayMs    int `mapstructure:"keyword_delay_ms"`
	TimeoutSeconds    int `mapstructure:"timeout_seconds"`
}

// ScheduleConfig lists the fire times (KST, "HH:MM") and startup behavior.
type ScheduleConfig struct {
	Times      []string `mapstructure:"times"`
	AutoStart  bool     `mapstructure:"auto_start"`
	RunOnStart bool     `mapstructure:"run_on_start"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// ArchiveConfig sets the optional raw-payload archive destination. An empty
// bucket disables archiving.
type ArchiveConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run-summary notifications. An empty topic
// disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COLLECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Keys without defaults are invisible to Unmarshal when set only via
	// environment; bind the secret-bearing ones explicitly.
	for _, key := range []string{
		"naver.client_id",
		"naver.client_secret",
		"db.dsn",
		"auth.api_key",
		"archive.bucket",
		"pubsub.project_id",
		"pubsub.topic_name",
	} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("naver.base_url", "https://openapi.naver.com/v1/search/news")
	v.SetDefault("search.exclude_keywords", []string{"포토", "사진", "그래픽", "영상"})
	v.SetDefault("collector.items_per_request", 100)
	v.SetDefault("collector.max_items", 1000)
	v.SetDefault("collector.request_interval_ms", 1000)
	v.SetDefault("collector.retry_delay_seconds", 5)
	v.SetDefault("collector.max_retries", 3)
	v.SetDefault("collector.keyword_delay_ms", 1000)
	v.SetDefault("collector.timeout_seconds", 10)
	v.SetDefault("schedule.times", []string{"08:00", "12:00", "14:30", "20:00"})
	v.SetDefault("schedule.auto_start", true)
	v.SetDefault("schedule.run_on_start", false)
	v.SetDefault("db.table", "news")
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Failures here are
// the only faults allowed to kill the process, and only at startup.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Naver.ClientID == "" || c.Naver.ClientSecret == "" {
		return fmt.Errorf("naver.client_id and naver.client_secret are required")
	}
	if c.Naver.BaseURL == "" {
		return fmt.Errorf("naver.base_url is required")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if len(c.Search.Sections) == 0 {
		return fmt.Errorf("search.sections must list at least one section")
	}
	for i, sec := range c.Search.Sections {
		if sec.Name == "" {
			return fmt.Errorf("search.sections[%d].name is required", i)
		}
		if len(sec.Keywords) == 0 {
			return fmt.Errorf("search.sections[%d] (%s) has no keywords", i, sec.Name)
		}
	}
	if c.Collector.ItemsPerRequest <= 0 || c.Collector.ItemsPerRequest > 100 {
		return fmt.Errorf("collector.items_per_request must be in 1..100")
	}
	if c.Collector.MaxItems < c.Collector.ItemsPerRequest {
		return fmt.Errorf("collector.max_items must be >= collector.items_per_request")
	}
	if c.Collector.MaxRetries < 0 {
		return fmt.Errorf("collector.max_retries must be >= 0")
	}
	if len(c.Schedule.Times) == 0 {
		return fmt.Errorf("schedule.times must list at least one fire time")
	}
	for _, ft := range c.Schedule.Times {
		if _, err := time.Parse("15:04", ft); err != nil {
			return fmt.Errorf("schedule.times entry %q is not HH:MM", ft)
		}
	}
	return nil
}

// RequestInterval returns the inter-page pacing interval.
func (c CollectorConfig) RequestInterval() time.Duration {
	return time.Duration(c.RequestIntervalMs) * time.Millisecond
}

// RetryDelay returns the wait applied after a rate-limit response.
func (c CollectorConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// KeywordDelay returns the courtesy pause between keyword queries.
func (c CollectorConfig) KeywordDelay() time.Duration {
	return time.Duration(c.KeywordDelayMs) * time.Millisecond
}

// Timeout returns the per-request HTTP timeout.
func (c CollectorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
