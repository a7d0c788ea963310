package dataflows

import (
	"errors"
	"math"
	"testing"
	"time"
)

func hoursFrom(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func vals(v ...float64) []*float64 {
	out := make([]*float64, len(v))
	for i := range v {
		x := v[i]
		if !math.IsNaN(x) {
			out[i] = &x
		}
	}
	return out
}

func TestFlattenMultiLevelColumns(t *testing.T) {
	start := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	frame := &Frame{
		Index: hoursFrom(start, 3),
		Columns: map[ColumnKey][]*float64{
			{Field: "Open", Ticker: "AAPL"}:      vals(1, 2, 3),
			{Field: "High", Ticker: "AAPL"}:      vals(2, 3, 4),
			{Field: "Low", Ticker: "AAPL"}:       vals(0.5, 1.5, 2.5),
			{Field: "Close", Ticker: "AAPL"}:     vals(1.5, 2.5, 3.5),
			{Field: "Volume", Ticker: "AAPL"}:    vals(100, 200, 300),
			{Field: "Close", Ticker: "MSFT"}:     vals(9, 9, 9),
			{Field: "Adj Close", Ticker: "AAPL"}: vals(1, 1, 1),
		},
	}

	series, err := frame.Flatten("AAPL")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if series.Len() != 3 {
		t.Fatalf("expected 3 bars, got %d", series.Len())
	}
	if got := series.Bars[2].Close; got != 3.5 {
		t.Fatalf("close picked from wrong ticker: %v", got)
	}
	if series.Bars[1].Volume != 200 {
		t.Fatalf("volume = %v", series.Bars[1].Volume)
	}
}

func TestFlattenCleansRows(t *testing.T) {
	start := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	idx := hoursFrom(start, 4)
	// out of order plus a duplicate of the first timestamp
	idx[1], idx[3] = idx[3], idx[0]
	frame := &Frame{
		Index: idx,
		Columns: map[ColumnKey][]*float64{
			{Field: "open"}:   vals(1, 4, math.NaN(), 1.1),
			{Field: "high"}:   vals(1, 4, 3, 1.1),
			{Field: "low"}:    vals(1, 4, 3, 1.1),
			{Field: "close"}:  vals(1, 4, 3, 1.1),
			{Field: "volume"}: vals(10, math.NaN(), 30, 11),
		},
	}

	series, err := frame.Flatten("X")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("expected 2 bars after cleaning, got %d", series.Len())
	}
	for i := 1; i < series.Len(); i++ {
		if !series.Bars[i].Time.After(series.Bars[i-1].Time) {
			t.Fatal("bars not strictly ascending")
		}
	}
	if series.Bars[0].Close != 1.1 {
		t.Fatalf("duplicate timestamp should keep the last row, got close %v", series.Bars[0].Close)
	}
	if series.Bars[1].Volume != 0 {
		t.Fatalf("missing volume should become 0, got %v", series.Bars[1].Volume)
	}
}

func TestFlattenErrors(t *testing.T) {
	if _, err := (&Frame{}).Flatten("X"); !errors.Is(err, ErrEmptySeries) {
		t.Fatalf("empty frame: %v", err)
	}

	start := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	noClose := &Frame{
		Index: hoursFrom(start, 1),
		Columns: map[ColumnKey][]*float64{
			{Field: "open"}: vals(1), {Field: "high"}: vals(1), {Field: "low"}: vals(1),
		},
	}
	if _, err := noClose.Flatten("X"); !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("missing close: %v", err)
	}

	allMissing := &Frame{
		Index: hoursFrom(start, 2),
		Columns: map[ColumnKey][]*float64{
			{Field: "open"}: vals(math.NaN(), math.NaN()), {Field: "high"}: vals(1, 1),
			{Field: "low"}: vals(1, 1), {Field: "close"}: vals(1, 1),
		},
	}
	if _, err := allMissing.Flatten("X"); !errors.Is(err, ErrEmptySeries) {
		t.Fatalf("all rows dropped: %v", err)
	}
}

func TestFlattenAppliesLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	frame := NewFrame(1, seoul)
	frame.Index[0] = time.Date(2024, 3, 15, 5, 0, 0, 0, time.UTC)
	for _, f := range []string{"Open", "High", "Low", "Close"} {
		frame.Column(ColumnKey{Field: f})[0] = floatPtr(100)
	}
	series, err := frame.Flatten("005930.KS")
	if err != nil {
		t.Fatal(err)
	}
	if h := series.Bars[0].Time.Hour(); h != 14 {
		t.Fatalf("expected exchange-local hour 14, got %d", h)
	}
}
