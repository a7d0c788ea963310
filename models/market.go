package models

import (
	"fmt"
	"strings"
	"time"
)

// Interval is the sampling interval of a price series.
type Interval string

const (
	IntervalDaily  Interval = "1d"
	IntervalHourly Interval = "1h"
)

// ParseInterval accepts the provider spellings used on the command line and in tool calls.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1d", "d", "day", "daily":
		return IntervalDaily, nil
	case "1h", "h", "60m", "hour", "hourly":
		return IntervalHourly, nil
	}
	return "", fmt.Errorf("unsupported interval %q", s)
}

func (i Interval) IsIntraday() bool {
	return i == IntervalHourly
}

// Window describes how much history to fetch for one symbol.
type Window struct {
	Interval     Interval `json:"interval"`
	LookbackDays int      `json:"lookback_days"`
}

func (w Window) Range(now time.Time) (start, end time.Time) {
	return now.AddDate(0, 0, -w.LookbackDays), now
}

// PriceBar is one OHLCV observation. Time is in the exchange's local zone.
type PriceBar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Date returns the calendar date of the bar as YYYY-MM-DD.
func (b PriceBar) Date() string {
	return b.Time.Format(DateLayout)
}

const (
	DateLayout     = "2006-01-02"
	HourLayout     = "15:04"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Series is an ascending, duplicate-free sequence of bars for one symbol.
type Series struct {
	Symbol   string         `json:"symbol"`
	Interval Interval       `json:"interval"`
	Location *time.Location `json:"-"`
	Bars     []PriceBar     `json:"bars"`
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

func (s *Series) Last() (PriceBar, bool) {
	if s.Len() == 0 {
		return PriceBar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// IndicesOn returns the indices of all bars whose calendar date is date (YYYY-MM-DD).
func (s *Series) IndicesOn(date string) []int {
	var idx []int
	for i, b := range s.Bars {
		if b.Date() == date {
			idx = append(idx, i)
		}
	}
	return idx
}

// IndicatorFlags selects which indicator families are computed and emitted.
type IndicatorFlags struct {
	SMA5      bool `json:"sma5"`
	SMA20     bool `json:"sma20"`
	SMA60     bool `json:"sma60"`
	SMA120    bool `json:"sma120"`
	RSI       bool `json:"rsi"`
	Bollinger bool `json:"bollinger_bands"`
}

func (f IndicatorFlags) Any() bool {
	return f.SMA5 || f.SMA20 || f.SMA60 || f.SMA120 || f.RSI || f.Bollinger
}

// AllIndicators is every family switched on.
func AllIndicators() IndicatorFlags {
	return IndicatorFlags{SMA5: true, SMA20: true, SMA60: true, SMA120: true, RSI: true, Bollinger: true}
}
