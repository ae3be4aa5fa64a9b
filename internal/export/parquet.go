package export

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/pmdata/polymarket-data/internal/book"
)

// levelRecord is one ladder entry in long form: a clean row explodes
// into one record per (side, rank).
type levelRecord struct {
	TokenID  string  `parquet:"name=token_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	MarketID int64   `parquet:"name=market_id, type=INT64"`
	TsUnixMs int64   `parquet:"name=ts_unix_ms, type=INT64"`
	Side     string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Rank     int32   `parquet:"name=rank, type=INT32"`
	Price    float64 `parquet:"name=price, type=DOUBLE"`
	Size     float64 `parquet:"name=size, type=DOUBLE"`
}

// writeLevelsParquet writes the clean rows' full stored ladders as a
// long-form parquet file.
func writeLevelsParquet(path string, rows []AlignedRow) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(levelRecord), 1)
	if err != nil {
		fw.Close()
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	// Ladders are stored pre-truncated, so a generous bound reads all.
	const allLevels = 1 << 20

	for _, r := range rows {
		var marketID int64
		if r.MarketID != nil {
			marketID = *r.MarketID
		}
		ts := r.TS.UTC().UnixMilli()

		for _, side := range []struct {
			name   string
			levels []book.Level
		}{
			{"bid", parseStoredLevels(r.BidsTopJSON, allLevels)},
			{"ask", parseStoredLevels(r.AsksTopJSON, allLevels)},
		} {
			for i, lvl := range side.levels {
				rec := levelRecord{
					TokenID:  r.TokenID,
					MarketID: marketID,
					TsUnixMs: ts,
					Side:     side.name,
					Rank:     int32(i + 1),
					Price:    lvl.Price(),
					Size:     lvl.Size(),
				}
				if err := pw.Write(rec); err != nil {
					pw.WriteStop()
					fw.Close()
					return fmt.Errorf("write parquet record: %w", err)
				}
			}
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalize parquet: %w", err)
	}
	return fw.Close()
}
