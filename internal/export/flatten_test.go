package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFlattenRowsParsesLadders(t *testing.T) {
	rows := []AlignedRow{
		{
			TokenID:     "tok",
			TS:          time.Now(),
			BidsTopJSON: []byte(`[[0.5,10],[0.49,20]]`),
			AsksTopJSON: []byte(`[[0.52,5]]`),
		},
	}

	flat := flattenRows(rows, 10)
	if len(flat) != 1 {
		t.Fatalf("flat = %d rows, want 1", len(flat))
	}
	if len(flat[0].Bids) != 2 || len(flat[0].Asks) != 1 {
		t.Fatalf("ladders = %d/%d, want 2/1", len(flat[0].Bids), len(flat[0].Asks))
	}
	if flat[0].Bids[0].Price() != 0.5 || flat[0].Bids[1].Size() != 20 {
		t.Errorf("bids = %v", flat[0].Bids)
	}
}

func TestFlattenRowsTruncatesToTopN(t *testing.T) {
	rows := []AlignedRow{{
		TokenID:     "tok",
		BidsTopJSON: []byte(`[[0.5,1],[0.4,2],[0.3,3]]`),
	}}

	flat := flattenRows(rows, 2)
	if len(flat[0].Bids) != 2 {
		t.Errorf("bids = %v, want 2 levels", flat[0].Bids)
	}

	flat = flattenRows(rows, 0)
	if flat[0].Bids != nil {
		t.Errorf("bids = %v, want nil with flattening disabled", flat[0].Bids)
	}
}

func TestParseStoredLevelsStringWrapped(t *testing.T) {
	raw := []byte(`"[[0.5,10]]"`)
	levels := parseStoredLevels(raw, 10)
	if len(levels) != 1 || levels[0].Price() != 0.5 {
		t.Errorf("levels = %v, want one parsed level", levels)
	}

	if got := parseStoredLevels([]byte(`"not json"`), 10); got != nil {
		t.Errorf("levels = %v, want nil for garbage", got)
	}
	if got := parseStoredLevels(nil, 10); got != nil {
		t.Errorf("levels = %v, want nil for empty column", got)
	}
}

func TestWriteCleanCSVColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clean.csv")

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mid := 0.5
	marketID := int64(7)
	rows := flattenRows([]AlignedRow{{
		TokenID:     "tok",
		MarketID:    &marketID,
		TS:          ts,
		Mid:         &mid,
		BidsTopJSON: []byte(`[[0.4,10]]`),
		AsksTopJSON: []byte(`[]`),
		ExtraJSON:   []byte(`{}`),
	}}, 2)

	if err := writeCleanCSV(path, rows, 2); err != nil {
		t.Fatalf("writeCleanCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want header + 1 row", len(records))
	}

	header, data := records[0], records[1]
	if len(header) != len(cleanBaseHeader)+8 {
		t.Errorf("header = %d columns, want %d", len(header), len(cleanBaseHeader)+8)
	}
	if header[len(cleanBaseHeader)] != "bid_px_1" {
		t.Errorf("first level column = %q, want bid_px_1", header[len(cleanBaseHeader)])
	}

	col := func(name string) string {
		for i, h := range header {
			if h == name {
				return data[i]
			}
		}
		t.Fatalf("column %q missing", name)
		return ""
	}
	if col("token_id") != "tok" || col("market_id") != "7" {
		t.Errorf("identity columns wrong: %v", data)
	}
	if col("mid") != "0.5" {
		t.Errorf("mid = %q, want 0.5", col("mid"))
	}
	if col("bid_px_1") != "0.4" || col("bid_sz_1") != "10" {
		t.Errorf("level columns wrong: %q/%q", col("bid_px_1"), col("bid_sz_1"))
	}
	if col("bid_px_2") != "" || col("ask_px_1") != "" {
		t.Error("cells past ladder length must be empty")
	}
}

func TestWriteCorruptedCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupted.csv")

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	flags := []FlagRow{{"tok", ts, "non_positive_delta"}}

	if err := writeCorruptedCSV(path, flags); err != nil {
		t.Fatalf("writeCorruptedCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1][2] != "non_positive_delta" {
		t.Errorf("records = %v", records)
	}
}
