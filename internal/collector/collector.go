// Package collector runs the orderbook polling loop.
//
// The loop is deliberately single-threaded: one iteration loads the
// tracked targets, fetches each token's book in turn, and persists the
// snapshot plus features with one shared timestamp so every row of an
// iteration aligns on ts_utc.
package collector

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pmdata/polymarket-data/internal/book"
	"github.com/pmdata/polymarket-data/internal/store"
)

// TargetSource yields the tokens to poll.
type TargetSource interface {
	TrackedTargets(ctx context.Context) (store.Targets, error)
}

// BookFetcher fetches one token's raw orderbook.
type BookFetcher interface {
	Book(ctx context.Context, tokenID string) (json.RawMessage, error)
}

// SnapshotSink persists a normalized snapshot and its features.
type SnapshotSink interface {
	InsertSnapshotAndFeatures(ctx context.Context, marketID *int64, ts time.Time, snap book.Snapshot, endTime *time.Time) error
}

// Config controls the polling loop.
type Config struct {
	BatchSize    int
	TopN         int
	LoopInterval time.Duration
	BatchPause   time.Duration

	// Iterations bounds the loop; 0 runs until the context is done.
	Iterations int
}

// Collector polls tracked tokens and persists their books.
type Collector struct {
	targets TargetSource
	fetcher BookFetcher
	sink    SnapshotSink
	cfg     Config
	logger  *slog.Logger
}

// New creates a Collector. A nil logger falls back to slog.Default.
func New(targets TargetSource, fetcher BookFetcher, sink SnapshotSink, cfg Config, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Collector{
		targets: targets,
		fetcher: fetcher,
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run executes the polling loop until the context is cancelled or the
// configured iteration count is reached.
func (c *Collector) Run(ctx context.Context) error {
	runID := uuid.New().String()
	c.logger.Info("collector starting",
		"run_id", runID,
		"batch_size", c.cfg.BatchSize,
		"top_n", c.cfg.TopN,
		"loop_interval", c.cfg.LoopInterval,
	)

	iter := 0
	loggedShape := false
	for {
		ts := time.Now().UTC()

		targets, err := c.targets.TrackedTargets(ctx)
		if err != nil {
			return err
		}

		if len(targets.Tokens) == 0 {
			c.logger.Info("no tracked tokens, idling", "run_id", runID)
			if err := sleepCtx(ctx, maxDuration(c.cfg.LoopInterval, time.Second)); err != nil {
				return err
			}
			continue
		}

		iter++
		inserted, fetched := c.iterate(ctx, ts, targets, &loggedShape)
		if err := ctx.Err(); err != nil {
			return err
		}

		c.logger.Info("collection iteration complete",
			"run_id", runID,
			"iteration", iter,
			"ts", ts.Format(time.RFC3339),
			"inserted", inserted,
			"fetched", fetched,
			"targeted", len(targets.Tokens),
		)

		if c.cfg.Iterations > 0 && iter >= c.cfg.Iterations {
			return nil
		}
		if c.cfg.LoopInterval > 0 {
			if err := sleepCtx(ctx, c.cfg.LoopInterval); err != nil {
				return err
			}
		}
	}
}

// iterate runs one pass over the targets. loggedShape lives in Run so
// the first-book-keys debug line fires once per process run.
func (c *Collector) iterate(ctx context.Context, ts time.Time, targets store.Targets, loggedShape *bool) (inserted, fetched int) {
	for batch := range chunks(targets.Tokens, c.cfg.BatchSize) {
		for _, tokenID := range batch {
			if ctx.Err() != nil {
				return inserted, fetched
			}

			raw, err := c.fetcher.Book(ctx, tokenID)
			if err != nil {
				c.logger.Warn("book fetch failed",
					"token_id", tokenID,
					"error", err,
				)
				continue
			}
			fetched++

			snap := book.SnapshotFromBook(tokenID, raw, c.cfg.TopN)
			if len(snap.BidsTop) == 0 && len(snap.AsksTop) == 0 {
				continue
			}

			if !*loggedShape {
				c.logger.Debug("first book shape", "keys", bookKeys(raw, 25))
				*loggedShape = true
			}

			var marketID *int64
			var endTime *time.Time
			if mid, ok := targets.TokenToMarket[tokenID]; ok {
				marketID = &mid
				endTime = targets.MarketEndTime[mid]
			}

			if err := c.sink.InsertSnapshotAndFeatures(ctx, marketID, ts, snap, endTime); err != nil {
				c.logger.Error("snapshot persist failed",
					"token_id", tokenID,
					"error", err,
				)
				continue
			}
			inserted++
		}

		if c.cfg.BatchPause > 0 {
			if err := sleepCtx(ctx, c.cfg.BatchPause); err != nil {
				return inserted, fetched
			}
		}
	}

	return inserted, fetched
}

func chunks(xs []string, n int) func(yield func([]string) bool) {
	return func(yield func(batch []string) bool) {
		for i := 0; i < len(xs); i += n {
			end := min(i+n, len(xs))
			if !yield(xs[i:end]) {
				return
			}
		}
	}
}

func bookKeys(raw json.RawMessage, limit int) []string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
		if len(keys) >= limit {
			break
		}
	}
	return keys
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
