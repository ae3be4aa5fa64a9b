package export

import (
	"encoding/json"

	"github.com/pmdata/polymarket-data/internal/book"
)

// flatRow pairs an aligned row with its parsed ladders, ready for the
// bid_px_1..N style columns.
type flatRow struct {
	AlignedRow
	Bids []book.Level
	Asks []book.Level
}

// flattenRows parses each row's ladder JSON once. topN <= 0 keeps the
// ladders empty so no level columns are emitted.
func flattenRows(rows []AlignedRow, topN int) []flatRow {
	out := make([]flatRow, len(rows))
	for i, r := range rows {
		out[i] = flatRow{AlignedRow: r}
		if topN > 0 {
			out[i].Bids = parseStoredLevels(r.BidsTopJSON, topN)
			out[i].Asks = parseStoredLevels(r.AsksTopJSON, topN)
		}
	}
	return out
}

// parseStoredLevels decodes a stored ladder column. The value is
// normally a jsonb array but legacy rows may hold a JSON-encoded
// string; both go through the same level parser.
func parseStoredLevels(raw []byte, topN int) []book.Level {
	if len(raw) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = []byte(s)
	}

	return book.NormalizeLevels(raw, topN)
}
