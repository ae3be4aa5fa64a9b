package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AlignedRow is one joined snapshot+feature row.
type AlignedRow struct {
	TokenID  string
	MarketID *int64
	TS       time.Time

	BestBidPrice *float64
	BestBidSize  *float64
	BestAskPrice *float64
	BestAskSize  *float64
	BidsTopJSON  []byte
	AsksTopJSON  []byte

	Spread          *float64
	Mid             *float64
	Microprice      *float64
	ImbalanceL1     *float64
	BidDepthTopN    *float64
	AskDepthTopN    *float64
	SecondsToExpiry *float64
	HoursToExpiry   *float64
	ExtraJSON       []byte
}

// FlagRow marks one corrupted (token, ts) key with a reason.
type FlagRow struct {
	TokenID string
	TS      time.Time
	Reason  string
}

// CadenceConfig controls the off-grid delta check. ExpectedSeconds 0
// disables it; the non-positive-delta check always runs.
type CadenceConfig struct {
	ExpectedSeconds  float64
	ToleranceSeconds float64
}

// Params configures one export run.
type Params struct {
	MarketID *int64
	TokenID  *string
	StartTS  *time.Time
	EndTS    *time.Time

	TopNFlatten int
	Cadence     CadenceConfig

	OutClean     string
	OutCorrupted string

	// LevelsParquet, when set, additionally writes the clean rows'
	// ladders in long form as parquet.
	LevelsParquet string
}

// Exporter runs dataset exports against the database.
type Exporter struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates an Exporter. A nil logger falls back to slog.Default.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{pool: pool, logger: logger}
}

// Run executes the export pipeline and returns the number of clean and
// corrupted rows written.
func (e *Exporter) Run(ctx context.Context, params Params) (int, int, error) {
	aligned, err := e.queryAligned(ctx, params)
	if err != nil {
		return 0, 0, fmt.Errorf("query aligned rows: %w", err)
	}

	orphans, err := e.queryOrphans(ctx, params)
	if err != nil {
		return 0, 0, fmt.Errorf("query orphans: %w", err)
	}

	cadenceBad := cadenceFlags(aligned, params.Cadence)
	corrupted := mergeFlags(orphans, cadenceBad)
	clean := partitionClean(aligned, corrupted)

	flattened := flattenRows(clean, params.TopNFlatten)

	if err := writeCleanCSV(params.OutClean, flattened, params.TopNFlatten); err != nil {
		return 0, 0, fmt.Errorf("write clean csv: %w", err)
	}
	if err := writeCorruptedCSV(params.OutCorrupted, corrupted); err != nil {
		return 0, 0, fmt.Errorf("write corrupted csv: %w", err)
	}

	if params.LevelsParquet != "" {
		if err := writeLevelsParquet(params.LevelsParquet, clean); err != nil {
			return 0, 0, fmt.Errorf("write levels parquet: %w", err)
		}
	}

	e.logger.Info("export complete",
		"clean", len(clean),
		"corrupted", len(corrupted),
		"out_clean", params.OutClean,
		"out_corrupted", params.OutCorrupted,
	)

	return len(clean), len(corrupted), nil
}
