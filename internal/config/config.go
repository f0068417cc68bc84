package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Screener   ScreenerConfig   `yaml:"screener"`
	Drip       DripConfig       `yaml:"drip"`
	Tracking   TrackingConfig   `yaml:"tracking"`
	Engagement EngagementConfig `yaml:"engagement"`
	SES        SESConfig        `yaml:"ses"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis configuration. Redis is optional: when the URL
// is empty the scheduler lease falls back to PG advisory locks.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// GeneratorConfig holds the text-generation service configuration
type GeneratorConfig struct {
	Provider       string `yaml:"provider"` // "anthropic" or "openai"
	AnthropicKey   string `yaml:"anthropic_key"`
	OpenAIKey      string `yaml:"openai_key"`
	Model          string `yaml:"model"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c GeneratorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ScreenerConfig holds the Rspamd reputation-scanning service configuration.
// RejectScore is the operating threshold above which content is treated as
// spam; it is deliberately distinct from the required_score the service
// itself reports (observed calibration: 7.5).
type ScreenerConfig struct {
	BaseURL        string  `yaml:"base_url"`
	RejectScore    float64 `yaml:"reject_score"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Enabled        bool    `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c ScreenerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DripConfig holds the drip batch scheduler configuration
type DripConfig struct {
	Enabled             bool `yaml:"enabled"`
	TickIntervalSeconds int  `yaml:"tick_interval_seconds"`
	DailyLimit          int  `yaml:"daily_limit"`
	BatchCap            int  `yaml:"batch_cap"`
	MaxAttempts         int  `yaml:"max_attempts"`
	PaceBaseSeconds     int  `yaml:"pace_base_seconds"`
	PaceStepSeconds     int  `yaml:"pace_step_seconds"`
	PaceJitterSeconds   int  `yaml:"pace_jitter_seconds"`
}

// TickInterval returns the scheduler poll interval as a duration
func (c DripConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// TrackingConfig holds tracking endpoint configuration
type TrackingConfig struct {
	BaseURL    string `yaml:"base_url"`
	SigningKey string `yaml:"signing_key"`
}

// EngagementConfig holds engagement analysis configuration
type EngagementConfig struct {
	OpenThreshold float64 `yaml:"open_threshold"`
}

// SESConfig holds AWS SES API configuration for outbound dispatch
type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Enabled   bool   `yaml:"enabled"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Generator.Model == "" {
		if cfg.Generator.Provider == "openai" {
			cfg.Generator.Model = "gpt-4o"
		} else {
			cfg.Generator.Model = "claude-sonnet-4-20250514"
		}
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 1000
	}
	if cfg.Generator.TimeoutSeconds == 0 {
		cfg.Generator.TimeoutSeconds = 60
	}
	if cfg.Screener.BaseURL == "" {
		cfg.Screener.BaseURL = "http://rspamd:11333"
	}
	if cfg.Screener.RejectScore == 0 {
		cfg.Screener.RejectScore = 7.5
	}
	if cfg.Screener.TimeoutSeconds == 0 {
		cfg.Screener.TimeoutSeconds = 15
	}
	if cfg.Drip.TickIntervalSeconds == 0 {
		cfg.Drip.TickIntervalSeconds = 300
	}
	if cfg.Drip.DailyLimit == 0 {
		cfg.Drip.DailyLimit = 30
	}
	if cfg.Drip.BatchCap == 0 {
		cfg.Drip.BatchCap = 10
	}
	if cfg.Drip.MaxAttempts == 0 {
		cfg.Drip.MaxAttempts = 3
	}
	if cfg.Drip.PaceBaseSeconds == 0 {
		cfg.Drip.PaceBaseSeconds = 45
	}
	if cfg.Drip.PaceStepSeconds == 0 {
		cfg.Drip.PaceStepSeconds = 15
	}
	if cfg.Drip.PaceJitterSeconds == 0 {
		cfg.Drip.PaceJitterSeconds = 30
	}
	if cfg.Tracking.BaseURL == "" {
		cfg.Tracking.BaseURL = "http://localhost:8080"
	}
	if cfg.Engagement.OpenThreshold == 0 {
		cfg.Engagement.OpenThreshold = 0.3
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Generator.AnthropicKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Generator.OpenAIKey = v
	}
	if v := os.Getenv("RSPAMD_URL"); v != "" {
		cfg.Screener.BaseURL = v
		cfg.Screener.Enabled = true
	}
	if v := os.Getenv("DAILY_EMAIL_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Drip.DailyLimit = n
		}
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("TRACKING_SIGNING_KEY"); v != "" {
		cfg.Tracking.SigningKey = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}

	return cfg, nil
}
