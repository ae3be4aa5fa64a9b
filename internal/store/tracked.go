package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const trackUpsertSQL = `
INSERT INTO tracked_markets (market_id, sessions, ended, first_seen_at, last_seen_at)
VALUES ($1, ARRAY[$2::text], FALSE, $3, $4)
ON CONFLICT (market_id) DO UPDATE SET
  sessions = (
    SELECT ARRAY(SELECT DISTINCT unnest(tracked_markets.sessions || EXCLUDED.sessions))
  ),
  ended = FALSE,
  last_seen_at = EXCLUDED.last_seen_at
`

// TrackMarkets adds the markets to tracked_markets under a session tag,
// all in one transaction. Re-tracking an ended market revives it: the
// session is unioned into sessions, ended resets to false, and ended_at
// keeps its first value. Returns the number of markets processed.
func (s *Store) TrackMarkets(ctx context.Context, marketIDs []int64, session string) (int, error) {
	if len(marketIDs) == 0 {
		return 0, nil
	}

	ts := time.Now().UTC()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, id := range marketIDs {
			if _, err := tx.Exec(ctx, trackUpsertSQL, id, session, ts, ts); err != nil {
				return fmt.Errorf("track market %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(marketIDs), nil
}

const refreshEndedSQL = `
UPDATE tracked_markets tm
SET ended = TRUE,
    ended_at = COALESCE(tm.ended_at, $1)
FROM markets m
WHERE tm.market_id = m.market_id
  AND tm.ended = FALSE
  AND (
    COALESCE(m.is_closed, FALSE) = TRUE
    OR COALESCE(m.is_resolved, FALSE) = TRUE
    OR (m.end_time IS NOT NULL AND m.end_time <= $2)
  )
`

// RefreshEndedFlags marks tracked markets ended when their market row
// reports closed, resolved, or an end_time in the past. Returns the
// number of rows flipped.
func (s *Store) RefreshEndedFlags(ctx context.Context) (int, error) {
	ts := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, refreshEndedSQL, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("refresh ended flags: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// AutoTrackPolicy selects markets worth tracking without manual curation.
type AutoTrackPolicy struct {
	Session string
	TopN    int

	MinLiquidity    *float64
	MinVolume       *float64
	EndsWithinHours *float64
	Category        *string

	IncludeClosed         bool
	IncludeAlreadyTracked bool
	RequireTokenKeys      bool
}

// AutoTrackMarkets ranks markets by liquidity, volume, then recency and
// tracks the top N matching the policy. With dryRun the selection is
// returned without writing. Returns (tracked count, selected ids).
func (s *Store) AutoTrackMarkets(ctx context.Context, policy AutoTrackPolicy, dryRun bool) (int, []int64, error) {
	if policy.TopN <= 0 {
		return 0, nil, nil
	}

	query, args := buildAutoTrackQuery(policy, time.Now().UTC())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("select auto-track candidates: %w", err)
	}
	defer rows.Close()

	var selected []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, nil, fmt.Errorf("scan candidate: %w", err)
		}
		selected = append(selected, id)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterate candidates: %w", err)
	}

	if dryRun || len(selected) == 0 {
		return 0, selected, nil
	}

	tracked, err := s.TrackMarkets(ctx, selected, policy.Session)
	if err != nil {
		return 0, selected, err
	}

	s.logger.Info("auto-tracked markets",
		"session", policy.Session,
		"selected", len(selected),
		"tracked", tracked,
	)

	return tracked, selected, nil
}

// buildAutoTrackQuery composes the candidate selection from the policy.
// The token-key check via jsonb ? only proves keys exist in raw_json,
// not that the ids are usable; it filters the obvious no-token case.
func buildAutoTrackQuery(policy AutoTrackPolicy, now time.Time) (string, []any) {
	var (
		where []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !policy.IncludeClosed {
		where = append(where,
			"COALESCE(m.is_closed, FALSE) = FALSE",
			"COALESCE(m.is_resolved, FALSE) = FALSE",
			"COALESCE(m.is_active, TRUE) = TRUE",
			fmt.Sprintf("(m.end_time IS NULL OR m.end_time > %s)", arg(now)),
		)
	}

	if policy.EndsWithinHours != nil {
		cutoff := now.Add(time.Duration(*policy.EndsWithinHours * float64(time.Hour)))
		where = append(where,
			fmt.Sprintf("(m.end_time IS NOT NULL AND m.end_time <= %s)", arg(cutoff)))
	}

	if policy.MinLiquidity != nil {
		where = append(where,
			fmt.Sprintf("(m.liquidity_num IS NOT NULL AND m.liquidity_num >= %s)", arg(*policy.MinLiquidity)))
	}

	if policy.MinVolume != nil {
		where = append(where,
			fmt.Sprintf("(m.volume_num IS NOT NULL AND m.volume_num >= %s)", arg(*policy.MinVolume)))
	}

	if policy.Category != nil {
		where = append(where, fmt.Sprintf("(m.category = %s)", arg(*policy.Category)))
	}

	if policy.RequireTokenKeys {
		where = append(where, "((m.raw_json ? 'clobTokenIds') OR (m.raw_json ? 'clobTokenId'))")
	}

	if !policy.IncludeAlreadyTracked {
		where = append(where, "tm.market_id IS NULL")
	}

	whereSQL := "TRUE"
	if len(where) > 0 {
		whereSQL = strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`
SELECT m.market_id
FROM markets m
LEFT JOIN tracked_markets tm ON tm.market_id = m.market_id
WHERE %s
ORDER BY
  COALESCE(m.liquidity_num, 0) DESC,
  COALESCE(m.volume_num, 0) DESC,
  m.updated_at DESC
LIMIT %s`, whereSQL, arg(policy.TopN))

	return query, args
}
