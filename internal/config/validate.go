package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Collector.BatchSize < 1 {
		return errors.New("collector.batch_size must be >= 1")
	}
	if c.Collector.TopN < 0 {
		return errors.New("collector.top_n must be >= 0")
	}

	if c.Clob.RateLimit.RequestsPerSecond <= 0 {
		return errors.New("clob.rate_limit.requests_per_second must be > 0")
	}
	if c.Clob.RateLimit.Burst < 1 {
		return errors.New("clob.rate_limit.burst must be >= 1")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
