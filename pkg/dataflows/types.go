package dataflows

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dyike/cortexta/config"
	"github.com/dyike/cortexta/models"
)

type Config = config.Config

var (
	ErrEmptySeries   = errors.New("no price bars returned")
	ErrMissingColumn = errors.New("missing price column")
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// ColumnKey names a provider column. Providers that return one table for several
// tickers set Ticker, which makes the key two-level.
type ColumnKey struct {
	Field  string
	Ticker string
}

func (k ColumnKey) String() string {
	if k.Ticker == "" {
		return k.Field
	}
	return k.Field + "|" + k.Ticker
}

// Frame is the provider-shaped table before normalization. Missing cells are nil.
type Frame struct {
	Index    []time.Time
	Columns  map[ColumnKey][]*float64
	Location *time.Location
}

func NewFrame(n int, loc *time.Location) *Frame {
	return &Frame{
		Index:    make([]time.Time, n),
		Columns:  make(map[ColumnKey][]*float64),
		Location: loc,
	}
}

// Column returns (allocating if needed) the column for key.
func (f *Frame) Column(key ColumnKey) []*float64 {
	col, ok := f.Columns[key]
	if !ok {
		col = make([]*float64, len(f.Index))
		f.Columns[key] = col
	}
	return col
}

var flatFields = []string{"open", "high", "low", "close", "volume"}

// Flatten collapses the frame to the single flat OHLCV namespace and cleans it:
// rows missing any of open/high/low/close are dropped, a missing volume becomes 0,
// bars are sorted ascending and duplicate timestamps keep the last row.
func (f *Frame) Flatten(symbol string) (*models.Series, error) {
	if f == nil || len(f.Index) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrEmptySeries)
	}

	cols := make(map[string][]*float64, len(flatFields))
	for _, field := range flatFields {
		col, err := f.pick(field, symbol)
		if err != nil {
			if field == "volume" && errors.Is(err, ErrMissingColumn) {
				continue
			}
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		if len(col) != len(f.Index) {
			return nil, fmt.Errorf("%s: column %s has %d rows, index has %d", symbol, field, len(col), len(f.Index))
		}
		cols[field] = col
	}

	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}

	bars := make([]models.PriceBar, 0, len(f.Index))
	for i, ts := range f.Index {
		o, h, l, c := cols["open"][i], cols["high"][i], cols["low"][i], cols["close"][i]
		if !present(o) || !present(h) || !present(l) || !present(c) {
			continue
		}
		bar := models.PriceBar{Time: ts.In(loc), Open: *o, High: *h, Low: *l, Close: *c}
		if v := cols["volume"]; v != nil && present(v[i]) {
			bar.Volume = *v[i]
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	deduped := bars[:0]
	for _, b := range bars {
		if n := len(deduped); n > 0 && deduped[n-1].Time.Equal(b.Time) {
			deduped[n-1] = b
			continue
		}
		deduped = append(deduped, b)
	}

	if len(deduped) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrEmptySeries)
	}
	return &models.Series{Symbol: symbol, Location: loc, Bars: deduped}, nil
}

// pick finds the column for field. With several tickers in the frame the one
// matching symbol wins.
func (f *Frame) pick(field, symbol string) ([]*float64, error) {
	var candidates []ColumnKey
	for key := range f.Columns {
		if strings.EqualFold(strings.TrimSpace(key.Field), field) {
			candidates = append(candidates, key)
		}
	}
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, field)
	case 1:
		return f.Columns[candidates[0]], nil
	}
	for _, key := range candidates {
		if strings.EqualFold(key.Ticker, symbol) {
			return f.Columns[key], nil
		}
	}
	return nil, fmt.Errorf("ambiguous %s column for %s across %d tickers", field, symbol, len(candidates))
}

func present(v *float64) bool {
	return v != nil && finite(*v)
}
