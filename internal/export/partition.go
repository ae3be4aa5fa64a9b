package export

import (
	"sort"
	"time"
)

type flagKey struct {
	token  string
	ts     time.Time
	reason string
}

type rowKey struct {
	token string
	ts    time.Time
}

// mergeFlags unions the flag sources, dedups by (token, ts, reason),
// and sorts by that triple.
func mergeFlags(sets ...[]FlagRow) []FlagRow {
	seen := make(map[flagKey]struct{})
	var out []FlagRow
	for _, set := range sets {
		for _, f := range set {
			k := flagKey{f.TokenID, f.TS.UTC(), f.Reason}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, f)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TokenID != out[j].TokenID {
			return out[i].TokenID < out[j].TokenID
		}
		if !out[i].TS.Equal(out[j].TS) {
			return out[i].TS.Before(out[j].TS)
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// partitionClean drops aligned rows whose (token, ts) is flagged.
func partitionClean(aligned []AlignedRow, corrupted []FlagRow) []AlignedRow {
	if len(corrupted) == 0 {
		return aligned
	}

	bad := make(map[rowKey]struct{}, len(corrupted))
	for _, f := range corrupted {
		bad[rowKey{f.TokenID, f.TS.UTC()}] = struct{}{}
	}

	var clean []AlignedRow
	for _, r := range aligned {
		if _, flagged := bad[rowKey{r.TokenID, r.TS.UTC()}]; flagged {
			continue
		}
		clean = append(clean, r)
	}
	return clean
}
