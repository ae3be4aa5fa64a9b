package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pmdata/polymarket-data/internal/gamma"
)

// staleWindow bounds how far past its end a market may be and still be
// written during ingestion.
const staleWindow = 30 * 24 * time.Hour

const marketUpsertSQL = `
INSERT INTO markets (
  market_id, event_id, slug, question, condition_id, end_time,
  is_closed, is_resolved, is_active, category, volume_num, liquidity_num,
  updated_at, raw_json
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (market_id) DO UPDATE SET
  event_id      = EXCLUDED.event_id,
  slug          = EXCLUDED.slug,
  question      = EXCLUDED.question,
  condition_id  = EXCLUDED.condition_id,
  end_time      = EXCLUDED.end_time,
  is_closed     = EXCLUDED.is_closed,
  is_resolved   = EXCLUDED.is_resolved,
  is_active     = EXCLUDED.is_active,
  category      = EXCLUDED.category,
  volume_num    = EXCLUDED.volume_num,
  liquidity_num = EXCLUDED.liquidity_num,
  updated_at    = EXCLUDED.updated_at,
  raw_json      = EXCLUDED.raw_json
`

// UpsertMarkets writes a batch of normalized markets in one transaction.
// Markets that ended more than staleWindow ago, or that report closed or
// resolved, are skipped. Returns the number of rows written.
func (s *Store) UpsertMarkets(ctx context.Context, markets []gamma.Market, fetchedAt time.Time) (int, error) {
	if len(markets) == 0 {
		return 0, nil
	}

	written := 0
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, m := range markets {
			if shouldSkipMarket(m, fetchedAt) {
				s.logger.Debug("skipping market upsert",
					"market_id", m.MarketID,
					"end_time", m.EndTime,
				)
				continue
			}

			_, err := tx.Exec(ctx, marketUpsertSQL,
				m.MarketID,
				m.EventID,
				m.Slug,
				m.Question,
				m.ConditionID,
				m.EndTime,
				m.IsClosed,
				m.IsResolved,
				m.IsActive,
				m.Category,
				m.VolumeNum,
				m.LiquidityNum,
				fetchedAt,
				m.Raw,
			)
			if err != nil {
				return fmt.Errorf("upsert market %d: %w", m.MarketID, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return written, nil
}

func shouldSkipMarket(m gamma.Market, now time.Time) bool {
	if m.EndTime != nil && m.EndTime.Before(now.Add(-staleWindow)) {
		return true
	}
	if m.IsClosed != nil && *m.IsClosed {
		return true
	}
	if m.IsResolved != nil && *m.IsResolved {
		return true
	}
	return false
}
