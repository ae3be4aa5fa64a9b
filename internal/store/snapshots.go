package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pmdata/polymarket-data/internal/book"
	"github.com/pmdata/polymarket-data/internal/features"
)

const snapshotInsertSQL = `
INSERT INTO orderbook_snapshots (
  token_id, market_id, ts_utc,
  best_bid_price, best_bid_size, best_ask_price, best_ask_size,
  bids_top_n_json, asks_top_n_json, raw_book_json, inserted_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (token_id, ts_utc) DO NOTHING
`

const featureUpsertSQL = `
INSERT INTO features_orderbook (
  token_id, market_id, ts_utc,
  spread, mid, microprice, imbalance_l1,
  bid_depth_top_n, ask_depth_top_n,
  depth_bid_top5, depth_ask_top5, imbalance_top5,
  seconds_to_expiry, hours_to_expiry,
  extra_features_json, inserted_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (token_id, ts_utc) DO UPDATE SET
  market_id           = EXCLUDED.market_id,
  spread              = EXCLUDED.spread,
  mid                 = EXCLUDED.mid,
  microprice          = EXCLUDED.microprice,
  imbalance_l1        = EXCLUDED.imbalance_l1,
  bid_depth_top_n     = EXCLUDED.bid_depth_top_n,
  ask_depth_top_n     = EXCLUDED.ask_depth_top_n,
  depth_bid_top5      = EXCLUDED.depth_bid_top5,
  depth_ask_top5      = EXCLUDED.depth_ask_top5,
  imbalance_top5      = EXCLUDED.imbalance_top5,
  seconds_to_expiry   = EXCLUDED.seconds_to_expiry,
  hours_to_expiry     = EXCLUDED.hours_to_expiry,
  extra_features_json = EXCLUDED.extra_features_json,
  inserted_at         = EXCLUDED.inserted_at
`

// InsertSnapshotAndFeatures writes one snapshot row plus its derived
// feature row in a single transaction. The snapshot insert is a no-op
// on conflict so the same (token_id, ts_utc) is never duplicated; the
// feature row is overwritten so recomputation wins.
func (s *Store) InsertSnapshotAndFeatures(ctx context.Context, marketID *int64, ts time.Time, snap book.Snapshot, endTime *time.Time) error {
	feats := features.Compute(ts, endTime, snap)

	bidsJSON, err := json.Marshal(snap.BidsTop)
	if err != nil {
		return fmt.Errorf("marshal bids: %w", err)
	}
	asksJSON, err := json.Marshal(snap.AsksTop)
	if err != nil {
		return fmt.Errorf("marshal asks: %w", err)
	}
	extraJSON, err := json.Marshal(feats.Extra)
	if err != nil {
		return fmt.Errorf("marshal extra features: %w", err)
	}

	rawBook := snap.RawBook
	if len(rawBook) == 0 {
		rawBook = json.RawMessage(`{}`)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, snapshotInsertSQL,
			snap.TokenID,
			marketID,
			ts,
			snap.BestBidPrice,
			snap.BestBidSize,
			snap.BestAskPrice,
			snap.BestAskSize,
			bidsJSON,
			asksJSON,
			rawBook,
			ts,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot %s: %w", snap.TokenID, err)
		}

		_, err = tx.Exec(ctx, featureUpsertSQL,
			snap.TokenID,
			marketID,
			ts,
			feats.Spread,
			feats.Mid,
			feats.Microprice,
			feats.ImbalanceL1,
			feats.BidDepthTopN,
			feats.AskDepthTopN,
			feats.DepthBidTop5,
			feats.DepthAskTop5,
			feats.ImbalanceTop5,
			feats.SecondsToExpiry,
			feats.HoursToExpiry,
			extraJSON,
			ts,
		)
		if err != nil {
			return fmt.Errorf("upsert features %s: %w", snap.TokenID, err)
		}

		return nil
	})
}
