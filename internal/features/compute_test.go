package features

import (
	"math"
	"testing"
	"time"

	"github.com/pmdata/polymarket-data/internal/book"
)

func snapWithBest(bidPx, bidSz, askPx, askSz float64) book.Snapshot {
	return book.Snapshot{
		TokenID:      "tok",
		BidsTop:      []book.Level{{bidPx, bidSz}},
		AsksTop:      []book.Level{{askPx, askSz}},
		BestBidPrice: &bidPx,
		BestBidSize:  &bidSz,
		BestAskPrice: &askPx,
		BestAskSize:  &askSz,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeBestLevelFeatures(t *testing.T) {
	// bid 0.40 x 10, ask 0.60 x 30
	f := Compute(time.Now().UTC(), nil, snapWithBest(0.40, 10, 0.60, 30))

	if f.Mid == nil || !almostEqual(*f.Mid, 0.50) {
		t.Errorf("Mid = %v, want 0.50", f.Mid)
	}
	if f.Spread == nil || !almostEqual(*f.Spread, 0.20) {
		t.Errorf("Spread = %v, want 0.20", f.Spread)
	}
	// (0.60*10 + 0.40*30) / 40 = 0.45
	if f.Microprice == nil || !almostEqual(*f.Microprice, 0.45) {
		t.Errorf("Microprice = %v, want 0.45", f.Microprice)
	}
	// (10 - 30) / 40 = -0.5
	if f.ImbalanceL1 == nil || !almostEqual(*f.ImbalanceL1, -0.5) {
		t.Errorf("ImbalanceL1 = %v, want -0.5", f.ImbalanceL1)
	}
}

func TestComputeMissingSideNullsOnlyDependents(t *testing.T) {
	bidPx, bidSz := 0.40, 10.0
	snap := book.Snapshot{
		TokenID:      "tok",
		BidsTop:      []book.Level{{bidPx, bidSz}},
		BestBidPrice: &bidPx,
		BestBidSize:  &bidSz,
	}

	f := Compute(time.Now().UTC(), nil, snap)

	if f.Spread != nil || f.Mid != nil || f.Microprice != nil || f.ImbalanceL1 != nil {
		t.Error("best-level features must be nil without both best prices")
	}
	if f.BidDepthTopN == nil || *f.BidDepthTopN != 10 {
		t.Errorf("BidDepthTopN = %v, want 10", f.BidDepthTopN)
	}
	if f.AskDepthTopN != nil {
		t.Errorf("AskDepthTopN = %v, want nil for empty ladder", f.AskDepthTopN)
	}
	if f.DepthAskTop5 != 0 {
		t.Errorf("DepthAskTop5 = %v, want 0.0 for empty ladder", f.DepthAskTop5)
	}
}

func TestComputeZeroSizeDenominator(t *testing.T) {
	f := Compute(time.Now().UTC(), nil, snapWithBest(0.40, 0, 0.60, 0))

	if f.Spread == nil || f.Mid == nil {
		t.Error("spread/mid require only prices and must still be set")
	}
	if f.Microprice != nil || f.ImbalanceL1 != nil {
		t.Error("microprice/imbalance must be nil when sizes sum to zero")
	}
	if f.ImbalanceTop5 != nil {
		t.Error("ImbalanceTop5 must be nil when top-5 depth sums to zero")
	}
}

func TestComputeTop5Depth(t *testing.T) {
	snap := book.Snapshot{
		TokenID: "tok",
		BidsTop: []book.Level{
			{0.50, 1}, {0.49, 2}, {0.48, 3}, {0.47, 4}, {0.46, 5}, {0.45, 100},
		},
		AsksTop: []book.Level{{0.60, 5}},
	}

	f := Compute(time.Now().UTC(), nil, snap)

	// Only the first five bid levels count toward top-5 depth.
	if f.DepthBidTop5 != 15 {
		t.Errorf("DepthBidTop5 = %v, want 15", f.DepthBidTop5)
	}
	if f.DepthAskTop5 != 5 {
		t.Errorf("DepthAskTop5 = %v, want 5", f.DepthAskTop5)
	}
	// (15 - 5) / 20 = 0.5
	if f.ImbalanceTop5 == nil || !almostEqual(*f.ImbalanceTop5, 0.5) {
		t.Errorf("ImbalanceTop5 = %v, want 0.5", f.ImbalanceTop5)
	}
	// Full-ladder depth includes the sixth level.
	if f.BidDepthTopN == nil || *f.BidDepthTopN != 115 {
		t.Errorf("BidDepthTopN = %v, want 115", f.BidDepthTopN)
	}
}

func TestComputeExpiry(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := ts.Add(2 * time.Hour)

	f := Compute(ts, &end, book.Snapshot{TokenID: "tok"})

	if f.SecondsToExpiry == nil || *f.SecondsToExpiry != 7200 {
		t.Errorf("SecondsToExpiry = %v, want 7200", f.SecondsToExpiry)
	}
	if f.HoursToExpiry == nil || *f.HoursToExpiry != 2 {
		t.Errorf("HoursToExpiry = %v, want 2", f.HoursToExpiry)
	}

	// No end time: both absent.
	f = Compute(ts, nil, book.Snapshot{TokenID: "tok"})
	if f.SecondsToExpiry != nil || f.HoursToExpiry != nil {
		t.Error("expiry features must be nil without an end time")
	}
}

func TestComputeExtraMirrorsTop5(t *testing.T) {
	f := Compute(time.Now().UTC(), nil, snapWithBest(0.40, 10, 0.60, 30))

	if got, ok := f.Extra["depth_bid_top5"].(float64); !ok || got != 10 {
		t.Errorf("Extra[depth_bid_top5] = %v, want 10", f.Extra["depth_bid_top5"])
	}
	if got, ok := f.Extra["imbalance_top5"].(float64); !ok || !almostEqual(got, -0.5) {
		t.Errorf("Extra[imbalance_top5] = %v, want -0.5", f.Extra["imbalance_top5"])
	}
}
