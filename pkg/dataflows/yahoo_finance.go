package dataflows

import (
	"context"
	"fmt"
	"time"
	// exchange zones must resolve on hosts without a zoneinfo database
	_ "time/tzdata"

	"github.com/guregu/null/v6"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/shopspring/decimal"

	"github.com/dyike/cortexta/models"
)

// YahooFinanceClient handles Yahoo Finance data operations
type YahooFinanceClient struct {
	retry *RetryConfig
	now   func() time.Time
}

// NewYahooFinanceClient creates a new Yahoo Finance client
func NewYahooFinanceClient(cfg *Config) *YahooFinanceClient {
	return &YahooFinanceClient{
		retry: retryFromConfig(cfg),
		now:   time.Now,
	}
}

func (yf *YahooFinanceClient) Name() string { return ProviderYahoo }

// History gets the chart for symbol over the window. Yahoo encodes missing
// intraday cells as zero in this client, so non-positive prices become nil.
func (yf *YahooFinanceClient) History(ctx context.Context, symbol string, window models.Window) (*Frame, error) {
	start, end := window.Range(yf.now())
	interval := datetime.OneDay
	if window.Interval.IsIntraday() {
		interval = datetime.OneHour
	}

	var frame *Frame
	err := WithRetry(ctx, yf.retry, func() error {
		if err := ctx.Err(); err != nil {
			return Permanent(err)
		}

		iter := chart.Get(&chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: interval,
		})

		var bars []chartRow
		for iter.Next() {
			bar := iter.Bar()
			bars = append(bars, chartRow{
				ts:     time.Unix(int64(bar.Timestamp), 0),
				open:   decimalPrice(bar.Open),
				high:   decimalPrice(bar.High),
				low:    decimalPrice(bar.Low),
				close:  decimalPrice(bar.Close),
				volume: floatPtr(float64(bar.Volume)),
			})
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get chart for %s: %w", symbol, err)
		}
		if len(bars) == 0 {
			return Permanent(fmt.Errorf("%s: %w", symbol, ErrEmptySeries))
		}

		meta := iter.Meta()
		frame = buildFrame(symbol, bars, exchangeLocation(meta.ExchangeTimezoneName, meta.Gmtoffset))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// Snapshot gets the realtime quote including market capitalization.
func (yf *YahooFinanceClient) Snapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	var snap *models.Snapshot
	err := WithRetry(ctx, yf.retry, func() error {
		if err := ctx.Err(); err != nil {
			return Permanent(err)
		}
		eq, err := equity.Get(symbol)
		if err != nil {
			return fmt.Errorf("failed to get quote for %s: %w", symbol, err)
		}
		if eq == nil {
			return Permanent(fmt.Errorf("%w: no quote for %s", ErrInvalidSymbol, symbol))
		}

		name := eq.ShortName
		if name == "" {
			name = eq.LongName
		}
		price := positive(eq.RegularMarketPrice)
		snap = models.NewSnapshot(
			symbol,
			name,
			price,
			positive(eq.RegularMarketPreviousClose),
			null.NewInt(eq.MarketCap, eq.MarketCap > 0),
			null.NewInt(int64(eq.RegularMarketVolume), price.Valid),
			yf.now(),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

type chartRow struct {
	ts                             time.Time
	open, high, low, close, volume *float64
}

// buildFrame lays rows out under two-level (field, ticker) keys.
func buildFrame(symbol string, rows []chartRow, loc *time.Location) *Frame {
	frame := NewFrame(len(rows), loc)
	open := frame.Column(ColumnKey{Field: "Open", Ticker: symbol})
	high := frame.Column(ColumnKey{Field: "High", Ticker: symbol})
	low := frame.Column(ColumnKey{Field: "Low", Ticker: symbol})
	closes := frame.Column(ColumnKey{Field: "Close", Ticker: symbol})
	volume := frame.Column(ColumnKey{Field: "Volume", Ticker: symbol})
	for i, r := range rows {
		frame.Index[i] = r.ts
		open[i], high[i], low[i], closes[i], volume[i] = r.open, r.high, r.low, r.close, r.volume
	}
	return frame
}

func decimalPrice(d decimal.Decimal) *float64 {
	return priceOf(d.Float64())
}

func priceOf(v float64, _ bool) *float64 {
	if !finite(v) || v <= 0 {
		return nil
	}
	return &v
}

func positive(v float64) null.Float {
	return null.NewFloat(v, finite(v) && v > 0)
}

// exchangeLocation resolves the exchange zone, falling back to a fixed offset.
func exchangeLocation(name string, gmtOffset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if gmtOffset != 0 {
		return time.FixedZone("", gmtOffset)
	}
	return time.UTC
}

func retryFromConfig(cfg *Config) *RetryConfig {
	rc := DefaultRetryConfig()
	if cfg == nil {
		return rc
	}
	if cfg.RetryMax >= 0 {
		rc.MaxRetries = cfg.RetryMax
	}
	if cfg.RetryBaseDelay > 0 {
		rc.BaseDelay = cfg.RetryBaseDelay
	}
	return rc
}
