package gamma

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Market is a normalized market payload. Pointer fields are nil when the
// source payload carried no usable value.
type Market struct {
	MarketID     int64
	EventID      *string
	Slug         *string
	Question     *string
	ConditionID  *string
	EndTime      *time.Time
	IsClosed     *bool
	IsResolved   *bool
	IsActive     *bool
	Category     *string
	VolumeNum    *float64
	LiquidityNum *float64

	// Raw is the upstream payload, retained verbatim.
	Raw json.RawMessage
}

// Candidate key lists per logical attribute, tried in priority order.
var (
	idKeys        = []string{"id", "market_id", "marketId"}
	eventIDKeys   = []string{"eventId", "event_id"}
	questionKeys  = []string{"question", "title"}
	conditionKeys = []string{"conditionId", "condition_id"}
	endTimeKeys   = []string{"endTime", "end_time", "endDate", "end_date"}
	closedKeys    = []string{"closed", "isClosed", "is_closed"}
	resolvedKeys  = []string{"resolved", "isResolved", "is_resolved"}
	activeKeys    = []string{"active", "isActive", "is_active"}
	volumeKeys    = []string{"volume", "volumeNum", "volume_num"}
	liquidityKeys = []string{"liquidity", "liquidityNum", "liquidity_num"}
)

// NormalizeMarket normalizes one raw market payload. A payload without a
// usable id is an error; everything else degrades to absence.
func NormalizeMarket(raw json.RawMessage) (Market, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return Market{}, fmt.Errorf("market payload is not an object: %w", err)
	}

	id, ok := pickID(m, idKeys)
	if !ok {
		return Market{}, fmt.Errorf("market missing id")
	}

	return Market{
		MarketID:     id,
		EventID:      pickString(m, eventIDKeys),
		Slug:         pickString(m, []string{"slug"}),
		Question:     pickString(m, questionKeys),
		ConditionID:  pickString(m, conditionKeys),
		EndTime:      pickTime(m, endTimeKeys),
		IsClosed:     pickBool(m, closedKeys),
		IsResolved:   pickBool(m, resolvedKeys),
		IsActive:     pickBool(m, activeKeys),
		Category:     pickString(m, []string{"category"}),
		VolumeNum:    pickFloat(m, volumeKeys),
		LiquidityNum: pickFloat(m, liquidityKeys),
		Raw:          raw,
	}, nil
}

// ExtractTokenIDs collects every token id embedded in a raw market payload.
// Order is preserved and duplicates are removed.
func ExtractTokenIDs(raw json.RawMessage) []string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}

	var out []string

	switch v := m["clobTokenIds"].(type) {
	case []any:
		for _, x := range v {
			if x != nil {
				out = append(out, stringify(x))
			}
		}
	case string:
		// Some payloads carry the array JSON-encoded as a string.
		var inner []any
		if err := json.Unmarshal([]byte(v), &inner); err == nil {
			for _, x := range inner {
				if x != nil {
					out = append(out, stringify(x))
				}
			}
		} else if v != "" {
			out = append(out, v)
		}
	}

	if v, ok := m["clobTokenId"]; ok && v != nil {
		out = append(out, stringify(v))
	}

	for _, key := range []string{"outcomes", "outcomeTokens", "tokens"} {
		items, ok := m[key].([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for _, tk := range []string{"tokenId", "clobTokenId", "id"} {
				if v, ok := obj[tk]; ok && v != nil {
					out = append(out, stringify(v))
					break
				}
			}
		}
	}

	// Dedup preserving order.
	seen := make(map[string]struct{}, len(out))
	deduped := out[:0]
	for _, t := range out {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		deduped = append(deduped, t)
	}
	return deduped
}

func firstPresent(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func pickID(m map[string]any, keys []string) (int64, bool) {
	v, ok := firstPresent(m, keys)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return int64(x), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	}
	return 0, false
}

func pickString(m map[string]any, keys []string) *string {
	v, ok := firstPresent(m, keys)
	if !ok {
		return nil
	}
	s := stringify(v)
	if s == "" {
		return nil
	}
	return &s
}

func pickBool(m map[string]any, keys []string) *bool {
	for _, k := range keys {
		if b, ok := m[k].(bool); ok {
			return &b
		}
	}
	return nil
}

func pickFloat(m map[string]any, keys []string) *float64 {
	v, ok := firstPresent(m, keys)
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case float64:
		return &x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

func pickTime(m map[string]any, keys []string) *time.Time {
	v, ok := firstPresent(m, keys)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	t := parseISO(s)
	if t == nil {
		return nil
	}
	return t
}

// parseISO parses an ISO 8601 timestamp. Naive timestamps are taken as UTC.
func parseISO(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		// Token/event ids arrive as large integers; avoid exponent form.
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
