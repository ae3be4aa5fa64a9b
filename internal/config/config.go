package config

import "time"

// Config is the root configuration for the pipeline CLI.
type Config struct {
	Database  DBConfig        `yaml:"database"`
	Gamma     APIConfig       `yaml:"gamma"`
	Clob      ClobConfig      `yaml:"clob"`
	Collector CollectorConfig `yaml:"collector"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DBConfig holds the Postgres connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`

	// StatementTimeoutMS is applied as a session default on every
	// pooled connection. 0 disables it.
	StatementTimeoutMS int `yaml:"statement_timeout_ms"`
}

// APIConfig holds settings for an upstream REST API.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	UserAgent    string        `yaml:"user_agent"`
}

// ClobConfig holds settings for the orderbook API.
type ClobConfig struct {
	APIConfig `yaml:",inline"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds the request rate of the book fetch path.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// CollectorConfig holds collection loop settings.
type CollectorConfig struct {
	BatchSize    int           `yaml:"batch_size"`
	TopN         int           `yaml:"top_n"`
	LoopInterval time.Duration `yaml:"loop_interval"`
	BatchPause   time.Duration `yaml:"batch_pause"`
}

// LoggingConfig holds process logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`

	// File enables an additional JSON log sink with size-based rotation.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}
