package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/dyike/cortexta/internal/indicators"
)

// HistoryRow is one bar of an exported history, flattened for tabular formats.
type HistoryRow struct {
	Symbol   string   `parquet:"symbol"`
	Date     string   `parquet:"date"`
	Time     string   `parquet:"time,optional"`
	Open     float64  `parquet:"open"`
	High     float64  `parquet:"high"`
	Low      float64  `parquet:"low"`
	Close    float64  `parquet:"close"`
	Volume   float64  `parquet:"volume"`
	SMA5     *float64 `parquet:"sma5,optional"`
	SMA20    *float64 `parquet:"sma20,optional"`
	SMA60    *float64 `parquet:"sma60,optional"`
	SMA120   *float64 `parquet:"sma120,optional"`
	RSI      *float64 `parquet:"rsi,optional"`
	BBHigh   *float64 `parquet:"bb_high,optional"`
	BBMiddle *float64 `parquet:"bb_middle,optional"`
	BBLow    *float64 `parquet:"bb_low,optional"`
}

// Exporter writes one symbol's history in a tabular format.
type Exporter interface {
	Extension() string
	Save(symbol string, h *HistoricalData, path string) error
}

func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVExporter{}, nil
	case "parquet":
		return ParquetExporter{}, nil
	}
	return nil, fmt.Errorf("unsupported export format %q (use csv or parquet)", format)
}

// Export writes {SYMBOL}_history.{ext} for every format and returns the files
// written. A failing format does not stop the others.
func Export(dir, symbol string, h *HistoricalData, formats []string) ([]string, error) {
	var paths []string
	var errs []string
	for _, f := range formats {
		exp, err := NewExporter(f)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_history.%s", symbol, exp.Extension()))
		if err := exp.Save(symbol, h, path); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", exp.Extension(), err))
			continue
		}
		paths = append(paths, path)
	}
	if len(errs) > 0 {
		return paths, fmt.Errorf("export %s: %s", symbol, strings.Join(errs, "; "))
	}
	return paths, nil
}

type namedColumn struct {
	name string
	col  indicators.Column
}

func (h *HistoricalData) indicatorColumns() []namedColumn {
	var out []namedColumn
	for _, c := range []namedColumn{
		{"SMA5", h.SMA5}, {"SMA20", h.SMA20}, {"SMA60", h.SMA60}, {"SMA120", h.SMA120}, {"RSI", h.RSI},
	} {
		if c.col != nil {
			out = append(out, c)
		}
	}
	if bb := h.BollingerBands; bb != nil {
		out = append(out, namedColumn{"BB_High", bb.High}, namedColumn{"BB_Middle", bb.Middle}, namedColumn{"BB_Low", bb.Low})
	}
	return out
}

func Rows(symbol string, h *HistoricalData) []HistoryRow {
	at := func(col indicators.Column, i int) *float64 {
		if i < len(col) && col[i].Valid {
			v := col[i].Float64
			return &v
		}
		return nil
	}
	rows := make([]HistoryRow, h.Len())
	for i := range rows {
		r := HistoryRow{
			Symbol: symbol,
			Date:   h.Date[i],
			Open:   h.Open[i],
			High:   h.High[i],
			Low:    h.Low[i],
			Close:  h.Close[i],
			Volume: h.Volume[i],
			SMA5:   at(h.SMA5, i),
			SMA20:  at(h.SMA20, i),
			SMA60:  at(h.SMA60, i),
			SMA120: at(h.SMA120, i),
			RSI:    at(h.RSI, i),
		}
		if h.Time != nil {
			r.Time = h.Time[i]
		}
		if bb := h.BollingerBands; bb != nil {
			r.BBHigh, r.BBMiddle, r.BBLow = at(bb.High, i), at(bb.Middle, i), at(bb.Low, i)
		}
		rows[i] = r
	}
	return rows
}

type CSVExporter struct{}

func (CSVExporter) Extension() string { return "csv" }

// Save writes OHLCV plus the requested indicators; bars without a value get an empty cell.
func (CSVExporter) Save(symbol string, h *HistoricalData, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	cols := h.indicatorColumns()
	headers := []string{"Symbol", "Date"}
	if h.Time != nil {
		headers = append(headers, "Time")
	}
	headers = append(headers, "Open", "High", "Low", "Close", "Volume")
	for _, c := range cols {
		headers = append(headers, c.name)
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i := 0; i < h.Len(); i++ {
		row := []string{symbol, h.Date[i]}
		if h.Time != nil {
			row = append(row, h.Time[i])
		}
		row = append(row,
			strconv.FormatFloat(h.Open[i], 'f', 4, 64),
			strconv.FormatFloat(h.High[i], 'f', 4, 64),
			strconv.FormatFloat(h.Low[i], 'f', 4, 64),
			strconv.FormatFloat(h.Close[i], 'f', 4, 64),
			strconv.FormatFloat(h.Volume[i], 'f', 0, 64),
		)
		for _, c := range cols {
			value := ""
			if c.col[i].Valid {
				value = strconv.FormatFloat(c.col[i].Float64, 'f', 6, 64)
			}
			row = append(row, value)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

type ParquetExporter struct{}

func (ParquetExporter) Extension() string { return "parquet" }

func (ParquetExporter) Save(symbol string, h *HistoricalData, path string) error {
	return parquet.WriteFile(path, Rows(symbol, h))
}
