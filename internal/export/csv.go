package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

var cleanBaseHeader = []string{
	"token_id", "market_id", "ts_utc",
	"best_bid_price", "best_bid_size", "best_ask_price", "best_ask_size",
	"bids_top_n_json", "asks_top_n_json",
	"spread", "mid", "microprice", "imbalance_l1",
	"bid_depth_top_n", "ask_depth_top_n",
	"seconds_to_expiry", "hours_to_expiry",
	"extra_features_json",
}

func cleanHeader(topN int) []string {
	header := append([]string(nil), cleanBaseHeader...)
	for i := 1; i <= topN; i++ {
		header = append(header,
			fmt.Sprintf("bid_px_%d", i),
			fmt.Sprintf("bid_sz_%d", i),
			fmt.Sprintf("ask_px_%d", i),
			fmt.Sprintf("ask_sz_%d", i),
		)
	}
	return header
}

func writeCleanCSV(path string, rows []flatRow, topN int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(cleanHeader(max(topN, 0))); err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{
			r.TokenID,
			optInt64(r.MarketID),
			formatTS(r.TS),
			optFloat(r.BestBidPrice), optFloat(r.BestBidSize),
			optFloat(r.BestAskPrice), optFloat(r.BestAskSize),
			string(r.BidsTopJSON), string(r.AsksTopJSON),
			optFloat(r.Spread), optFloat(r.Mid),
			optFloat(r.Microprice), optFloat(r.ImbalanceL1),
			optFloat(r.BidDepthTopN), optFloat(r.AskDepthTopN),
			optFloat(r.SecondsToExpiry), optFloat(r.HoursToExpiry),
			string(r.ExtraJSON),
		}
		for i := 0; i < topN; i++ {
			var bidPx, bidSz, askPx, askSz string
			if i < len(r.Bids) {
				bidPx = formatFloat(r.Bids[i].Price())
				bidSz = formatFloat(r.Bids[i].Size())
			}
			if i < len(r.Asks) {
				askPx = formatFloat(r.Asks[i].Price())
				askSz = formatFloat(r.Asks[i].Size())
			}
			record = append(record, bidPx, bidSz, askPx, askSz)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func writeCorruptedCSV(path string, flags []FlagRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"token_id", "ts_utc", "reason"}); err != nil {
		return err
	}
	for _, fl := range flags {
		if err := w.Write([]string{fl.TokenID, formatTS(fl.TS), fl.Reason}); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatTS(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func optInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
