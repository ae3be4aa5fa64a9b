// Package features computes point-in-time microstructure features from a
// normalized orderbook snapshot. Every rule is evaluated independently: a
// missing input nulls only the dependent feature, never the whole record.
package features

import (
	"time"

	"github.com/pmdata/polymarket-data/internal/book"
)

// Features holds derived values for one (token, ts) observation. Nil means
// the inputs for that feature were absent.
type Features struct {
	Spread      *float64
	Mid         *float64
	Microprice  *float64
	ImbalanceL1 *float64

	// Depth over the full stored ladder; nil when the ladder is empty.
	BidDepthTopN *float64
	AskDepthTopN *float64

	// Depth over at most the first five levels; 0.0 when the ladder is
	// empty (distinct from the top-N depth above).
	DepthBidTop5 float64
	DepthAskTop5 float64

	ImbalanceTop5 *float64

	SecondsToExpiry *float64
	HoursToExpiry   *float64

	// Extra carries open-ended extension values.
	Extra map[string]any
}

// Compute derives features from a snapshot and the market's end time.
func Compute(ts time.Time, endTime *time.Time, snap book.Snapshot) Features {
	var f Features

	if snap.BestBidPrice != nil && snap.BestAskPrice != nil {
		bid, ask := *snap.BestBidPrice, *snap.BestAskPrice
		f.Spread = ptr(ask - bid)
		f.Mid = ptr((ask + bid) / 2.0)

		if snap.BestBidSize != nil && snap.BestAskSize != nil {
			bidSz, askSz := *snap.BestBidSize, *snap.BestAskSize
			denom := bidSz + askSz
			if denom > 0 {
				f.Microprice = ptr((ask*bidSz + bid*askSz) / denom)
				f.ImbalanceL1 = ptr((bidSz - askSz) / denom)
			}
		}
	}

	if len(snap.BidsTop) > 0 {
		f.BidDepthTopN = ptr(sumSizes(snap.BidsTop, len(snap.BidsTop)))
	}
	if len(snap.AsksTop) > 0 {
		f.AskDepthTopN = ptr(sumSizes(snap.AsksTop, len(snap.AsksTop)))
	}

	f.DepthBidTop5 = sumSizes(snap.BidsTop, 5)
	f.DepthAskTop5 = sumSizes(snap.AsksTop, 5)
	if denom := f.DepthBidTop5 + f.DepthAskTop5; denom > 0 {
		f.ImbalanceTop5 = ptr((f.DepthBidTop5 - f.DepthAskTop5) / denom)
	}

	if endTime != nil {
		secs := endTime.Sub(ts).Seconds()
		f.SecondsToExpiry = ptr(secs)
		f.HoursToExpiry = ptr(secs / 3600.0)
	}

	f.Extra = map[string]any{
		"depth_bid_top5": f.DepthBidTop5,
		"depth_ask_top5": f.DepthAskTop5,
	}
	if f.ImbalanceTop5 != nil {
		f.Extra["imbalance_top5"] = *f.ImbalanceTop5
	} else {
		f.Extra["imbalance_top5"] = nil
	}

	return f
}

func sumSizes(levels []book.Level, n int) float64 {
	if n > len(levels) {
		n = len(levels)
	}
	var s float64
	for _, l := range levels[:n] {
		s += l.Size()
	}
	return s
}

func ptr(f float64) *float64 { return &f }
