package gamma

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// MarketWriter persists normalized markets. Implemented by store.Store.
type MarketWriter interface {
	UpsertMarkets(ctx context.Context, markets []Market, fetchedAt time.Time) (int, error)
}

// Ingest pages through the markets listing and upserts each page. It stops
// on the first empty page and returns the number of rows written. A failed
// page fetch aborts the whole call.
func Ingest(ctx context.Context, client *Client, writer MarketWriter, eventID *int64, limit, pages int, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if pages < 1 {
		pages = 1
	}
	if limit < 1 {
		limit = 1000
	}

	total := 0
	offset := 0

	for page := 0; page < pages; page++ {
		raws, err := client.ListMarkets(ctx, eventID, limit, offset)
		if err != nil {
			return total, fmt.Errorf("ingest page %d: %w", page, err)
		}
		if len(raws) == 0 {
			break
		}

		fetchedAt := time.Now().UTC()
		markets := make([]Market, 0, len(raws))
		for _, raw := range raws {
			m, err := NormalizeMarket(raw)
			if err != nil {
				return total, fmt.Errorf("ingest page %d: %w", page, err)
			}
			markets = append(markets, m)
		}

		n, err := writer.UpsertMarkets(ctx, markets, fetchedAt)
		if err != nil {
			return total, fmt.Errorf("ingest page %d: %w", page, err)
		}
		total += n

		logger.Info("ingested markets page",
			"page", page,
			"fetched", len(raws),
			"written", n,
		)

		offset += limit
	}

	return total, nil
}
