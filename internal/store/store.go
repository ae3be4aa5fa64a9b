package store

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgx pool with the persistence operations.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}
