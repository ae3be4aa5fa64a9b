package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultGammaURL         = "https://gamma-api.polymarket.com"
	DefaultClobURL          = "https://clob.polymarket.com"
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultRetryBackoff     = 700 * time.Millisecond
	DefaultUserAgent        = "polymarket-data/0.1.0"
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 5
	DefaultMinConns         = 1
	DefaultStatementTimeout = 60000
	DefaultBatchSize        = 50
	DefaultTopN             = 10
	DefaultLoopInterval     = 2 * time.Second
	DefaultBatchPause       = 100 * time.Millisecond
	DefaultRequestsPerSec   = 5.0
	DefaultRateBurst        = 1
	DefaultLogLevel         = "info"
)

func (c *Config) applyDefaults() {
	// Gamma API defaults
	if c.Gamma.BaseURL == "" {
		c.Gamma.BaseURL = DefaultGammaURL
	}
	applyAPIDefaults(&c.Gamma)

	// CLOB API defaults
	if c.Clob.BaseURL == "" {
		c.Clob.BaseURL = DefaultClobURL
	}
	applyAPIDefaults(&c.Clob.APIConfig)
	if c.Clob.RateLimit.RequestsPerSecond == 0 {
		c.Clob.RateLimit.RequestsPerSecond = DefaultRequestsPerSec
	}
	if c.Clob.RateLimit.Burst == 0 {
		c.Clob.RateLimit.Burst = DefaultRateBurst
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}
	if c.Database.StatementTimeoutMS == 0 {
		c.Database.StatementTimeoutMS = DefaultStatementTimeout
	}

	// Collector defaults
	if c.Collector.BatchSize == 0 {
		c.Collector.BatchSize = DefaultBatchSize
	}
	if c.Collector.TopN == 0 {
		c.Collector.TopN = DefaultTopN
	}
	if c.Collector.LoopInterval == 0 {
		c.Collector.LoopInterval = DefaultLoopInterval
	}
	if c.Collector.BatchPause == 0 {
		c.Collector.BatchPause = DefaultBatchPause
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

func applyAPIDefaults(api *APIConfig) {
	if api.Timeout == 0 {
		api.Timeout = DefaultAPITimeout
	}
	if api.MaxRetries == 0 {
		api.MaxRetries = DefaultMaxRetries
	}
	if api.RetryBackoff == 0 {
		api.RetryBackoff = DefaultRetryBackoff
	}
	if api.UserAgent == "" {
		api.UserAgent = DefaultUserAgent
	}
}
