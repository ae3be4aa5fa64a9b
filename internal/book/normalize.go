package book

import (
	"encoding/json"
	"math"
	"strconv"
)

// Level is a single [price, size] ladder entry. It marshals to a JSON
// two-element array, matching the bids_top_n_json storage format.
type Level [2]float64

// Price returns the level's price.
func (l Level) Price() float64 { return l[0] }

// Size returns the level's size.
func (l Level) Size() float64 { return l[1] }

// Snapshot is a normalized point-in-time view of one token's orderbook.
// Best-of-book fields are nil when the corresponding ladder is empty.
type Snapshot struct {
	TokenID string

	BidsTop []Level
	AsksTop []Level

	BestBidPrice *float64
	BestBidSize  *float64
	BestAskPrice *float64
	BestAskSize  *float64

	// RawBook is the upstream payload, retained verbatim.
	RawBook json.RawMessage
}

type rawBook struct {
	Bids json.RawMessage `json:"bids"`
	Asks json.RawMessage `json:"asks"`
}

// SnapshotFromBook normalizes a raw book payload. Bids are trusted to
// arrive best-first (price descending), asks price ascending; the source
// order is preserved and truncated to topN.
func SnapshotFromBook(tokenID string, raw json.RawMessage, topN int) Snapshot {
	var rb rawBook
	// A non-object payload is an empty book, not an error.
	_ = json.Unmarshal(raw, &rb)

	bids := NormalizeLevels(rb.Bids, topN)
	asks := NormalizeLevels(rb.Asks, topN)

	snap := Snapshot{
		TokenID: tokenID,
		BidsTop: bids,
		AsksTop: asks,
		RawBook: raw,
	}

	if len(bids) > 0 {
		snap.BestBidPrice = ptr(bids[0].Price())
		snap.BestBidSize = ptr(bids[0].Size())
	}
	if len(asks) > 0 {
		snap.BestAskPrice = ptr(asks[0].Price())
		snap.BestAskSize = ptr(asks[0].Size())
	}

	return snap
}

// NormalizeLevels parses one side of a book into at most topN levels.
// A level whose price or size fails numeric coercion is dropped; the rest
// of the side survives. Relative order is preserved.
func NormalizeLevels(raw json.RawMessage, topN int) []Level {
	if topN <= 0 || len(raw) == 0 {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	if len(items) > topN {
		items = items[:topN]
	}

	out := make([]Level, 0, len(items))
	for _, item := range items {
		px, sz, ok := parseLevel(item)
		if !ok {
			continue
		}
		out = append(out, Level{px, sz})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseLevel accepts {"price": p, "size": s} objects and [p, s] arrays.
func parseLevel(raw json.RawMessage) (px, sz float64, ok bool) {
	var obj struct {
		Price any `json:"price"`
		Size  any `json:"size"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && (obj.Price != nil || obj.Size != nil) {
		p, pok := coerceFloat(obj.Price)
		s, sok := coerceFloat(obj.Size)
		if pok && sok {
			return p, s, true
		}
		return 0, 0, false
	}

	var pair []any
	if err := json.Unmarshal(raw, &pair); err == nil && len(pair) >= 2 {
		p, pok := coerceFloat(pair[0])
		s, sok := coerceFloat(pair[1])
		if pok && sok {
			return p, s, true
		}
	}

	return 0, 0, false
}

// coerceFloat converts a decoded JSON value to a finite float64.
// nil, blank strings, NaN, and infinities are rejected.
func coerceFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		s := x
		if len(s) == 0 {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func ptr(f float64) *float64 { return &f }
