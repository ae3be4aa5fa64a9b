package export

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const alignedSQL = `
WITH s AS (
  SELECT token_id, market_id, ts_utc,
         best_bid_price, best_bid_size, best_ask_price, best_ask_size,
         bids_top_n_json, asks_top_n_json
  FROM orderbook_snapshots
  WHERE (@market_id::bigint IS NULL OR market_id = @market_id)
    AND (@token_id::text IS NULL OR token_id = @token_id)
    AND (@start_ts::timestamptz IS NULL OR ts_utc >= @start_ts)
    AND (@end_ts::timestamptz IS NULL OR ts_utc <= @end_ts)
),
f AS (
  SELECT token_id, market_id AS feat_market_id, ts_utc,
         spread, mid, microprice, imbalance_l1,
         bid_depth_top_n, ask_depth_top_n,
         seconds_to_expiry, hours_to_expiry,
         extra_features_json
  FROM features_orderbook
  WHERE (@market_id::bigint IS NULL OR market_id = @market_id)
    AND (@token_id::text IS NULL OR token_id = @token_id)
    AND (@start_ts::timestamptz IS NULL OR ts_utc >= @start_ts)
    AND (@end_ts::timestamptz IS NULL OR ts_utc <= @end_ts)
)
SELECT
  s.token_id,
  COALESCE(s.market_id, f.feat_market_id) AS market_id,
  s.ts_utc,
  s.best_bid_price, s.best_bid_size, s.best_ask_price, s.best_ask_size,
  s.bids_top_n_json, s.asks_top_n_json,
  f.spread, f.mid, f.microprice, f.imbalance_l1,
  f.bid_depth_top_n, f.ask_depth_top_n,
  f.seconds_to_expiry, f.hours_to_expiry,
  f.extra_features_json
FROM s
JOIN f USING (token_id, ts_utc)
ORDER BY s.token_id, s.ts_utc
`

const orphansSQL = `
WITH s AS (
  SELECT token_id, ts_utc
  FROM orderbook_snapshots
  WHERE (@market_id::bigint IS NULL OR market_id = @market_id)
    AND (@token_id::text IS NULL OR token_id = @token_id)
    AND (@start_ts::timestamptz IS NULL OR ts_utc >= @start_ts)
    AND (@end_ts::timestamptz IS NULL OR ts_utc <= @end_ts)
),
f AS (
  SELECT token_id, ts_utc
  FROM features_orderbook
  WHERE (@market_id::bigint IS NULL OR market_id = @market_id)
    AND (@token_id::text IS NULL OR token_id = @token_id)
    AND (@start_ts::timestamptz IS NULL OR ts_utc >= @start_ts)
    AND (@end_ts::timestamptz IS NULL OR ts_utc <= @end_ts)
)
SELECT token_id, ts_utc, 'snapshot_without_features' AS reason
FROM s
LEFT JOIN f USING (token_id, ts_utc)
WHERE f.token_id IS NULL
UNION ALL
SELECT token_id, ts_utc, 'features_without_snapshot' AS reason
FROM f
LEFT JOIN s USING (token_id, ts_utc)
WHERE s.token_id IS NULL
ORDER BY token_id, ts_utc
`

func (p Params) queryArgs() pgx.NamedArgs {
	return pgx.NamedArgs{
		"market_id": p.MarketID,
		"token_id":  p.TokenID,
		"start_ts":  p.StartTS,
		"end_ts":    p.EndTS,
	}
}

func (e *Exporter) queryAligned(ctx context.Context, params Params) ([]AlignedRow, error) {
	rows, err := e.pool.Query(ctx, alignedSQL, params.queryArgs())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlignedRow
	for rows.Next() {
		var r AlignedRow
		err := rows.Scan(
			&r.TokenID, &r.MarketID, &r.TS,
			&r.BestBidPrice, &r.BestBidSize, &r.BestAskPrice, &r.BestAskSize,
			&r.BidsTopJSON, &r.AsksTopJSON,
			&r.Spread, &r.Mid, &r.Microprice, &r.ImbalanceL1,
			&r.BidDepthTopN, &r.AskDepthTopN,
			&r.SecondsToExpiry, &r.HoursToExpiry,
			&r.ExtraJSON,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (e *Exporter) queryOrphans(ctx context.Context, params Params) ([]FlagRow, error) {
	rows, err := e.pool.Query(ctx, orphansSQL, params.queryArgs())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FlagRow
	for rows.Next() {
		var r FlagRow
		if err := rows.Scan(&r.TokenID, &r.TS, &r.Reason); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
