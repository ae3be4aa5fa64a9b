package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// ListMarkets fetches one page of markets. The API returns either a bare
// array or an object wrapping a "markets" array; both are accepted.
func (c *Client) ListMarkets(ctx context.Context, eventID *int64, limit, offset int) ([]json.RawMessage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	if eventID != nil {
		query.Set("event_id", strconv.FormatInt(*eventID, 10))
	}

	body, err := c.getRaw(ctx, "/markets", query)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}

	return decodeMarketsPayload(body), nil
}

// Market fetches a single market by id.
func (c *Client) Market(ctx context.Context, marketID int64) (json.RawMessage, error) {
	body, err := c.getRaw(ctx, "/markets/"+strconv.FormatInt(marketID, 10), nil)
	if err != nil {
		return nil, fmt.Errorf("get market %d: %w", marketID, err)
	}
	return json.RawMessage(body), nil
}

// EventBySlug fetches an event by its slug.
func (c *Client) EventBySlug(ctx context.Context, slug string) (json.RawMessage, error) {
	body, err := c.getRaw(ctx, "/events/slug/"+url.PathEscape(slug), nil)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", slug, err)
	}
	return json.RawMessage(body), nil
}

// decodeMarketsPayload extracts market objects from a list response.
// Non-object elements are dropped.
func decodeMarketsPayload(body []byte) []json.RawMessage {
	var arr []json.RawMessage
	if err := json.Unmarshal(body, &arr); err == nil {
		return filterObjects(arr)
	}

	var wrapped struct {
		Markets []json.RawMessage `json:"markets"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		return filterObjects(wrapped.Markets)
	}

	return nil
}

func filterObjects(items []json.RawMessage) []json.RawMessage {
	out := items[:0:0]
	for _, item := range items {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(item, &probe); err == nil {
			out = append(out, item)
		}
	}
	return out
}
