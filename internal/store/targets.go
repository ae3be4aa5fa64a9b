package store

import (
	"context"
	"fmt"
	"time"
)

// Targets is the set of tokens the collector should poll, with the
// market each token belongs to and that market's end time.
type Targets struct {
	Tokens        []string
	TokenToMarket map[string]int64
	MarketEndTime map[int64]*time.Time
}

// The raw_json clobTokenIds value is sometimes a jsonb array and
// sometimes a JSON-encoded string; the CASE covers both.
const trackedTargetsSQL = `
SELECT DISTINCT
  tok.token_id AS token_id,
  m.market_id  AS market_id,
  m.end_time   AS end_time
FROM tracked_markets t
JOIN markets m ON m.market_id = t.market_id
CROSS JOIN LATERAL (
  SELECT jsonb_array_elements_text(
           CASE
             WHEN jsonb_typeof(m.raw_json->'clobTokenIds') = 'array'
               THEN m.raw_json->'clobTokenIds'
             WHEN jsonb_typeof(m.raw_json->'clobTokenIds') = 'string'
               THEN (m.raw_json->>'clobTokenIds')::jsonb
             ELSE '[]'::jsonb
           END
         ) AS token_id
) tok
WHERE t.ended = false
ORDER BY tok.token_id
`

// TrackedTargets returns every token of every tracked, not-ended market.
func (s *Store) TrackedTargets(ctx context.Context) (Targets, error) {
	targets := Targets{
		TokenToMarket: make(map[string]int64),
		MarketEndTime: make(map[int64]*time.Time),
	}

	rows, err := s.pool.Query(ctx, trackedTargetsSQL)
	if err != nil {
		return Targets{}, fmt.Errorf("query tracked targets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tokenID  string
			marketID int64
			endTime  *time.Time
		)
		if err := rows.Scan(&tokenID, &marketID, &endTime); err != nil {
			return Targets{}, fmt.Errorf("scan tracked target: %w", err)
		}

		if _, seen := targets.TokenToMarket[tokenID]; !seen {
			targets.Tokens = append(targets.Tokens, tokenID)
		}
		targets.TokenToMarket[tokenID] = marketID
		targets.MarketEndTime[marketID] = endTime
	}
	if err := rows.Err(); err != nil {
		return Targets{}, fmt.Errorf("iterate tracked targets: %w", err)
	}

	return targets, nil
}
