package export

import (
	"fmt"
	"math"
	"sort"
)

// cadenceFlags checks per-token timestamp deltas over the aligned rows.
// The first row of each token has no delta and is never flagged.
func cadenceFlags(aligned []AlignedRow, cfg CadenceConfig) []FlagRow {
	if len(aligned) == 0 {
		return nil
	}

	ordered := make([]AlignedRow, len(aligned))
	copy(ordered, aligned)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].TokenID != ordered[j].TokenID {
			return ordered[i].TokenID < ordered[j].TokenID
		}
		return ordered[i].TS.Before(ordered[j].TS)
	})

	var flags []FlagRow
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if prev.TokenID != cur.TokenID {
			continue
		}

		delta := cur.TS.Sub(prev.TS).Seconds()
		if delta <= 0 {
			flags = append(flags, FlagRow{cur.TokenID, cur.TS, "non_positive_delta"})
			continue
		}
		if cfg.ExpectedSeconds > 0 && math.Abs(delta-cfg.ExpectedSeconds) > cfg.ToleranceSeconds {
			flags = append(flags, FlagRow{
				cur.TokenID, cur.TS,
				fmt.Sprintf("off_grid_delta:%.3fs", delta),
			})
		}
	}
	return flags
}
