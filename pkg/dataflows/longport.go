package dataflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"

	"github.com/dyike/cortexta/models"
)

// LongportClient serves HK/US/CN symbols (700.HK, AAPL.US) through the Longport quote API.
type LongportClient struct {
	quoteCtx *quote.QuoteContext
	retry    *RetryConfig
	now      func() time.Time
}

func NewLongportClient(cfg *Config) (*LongportClient, error) {
	if cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, err
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	return &LongportClient{
		quoteCtx: quoteContext,
		retry:    retryFromConfig(cfg),
		now:      time.Now,
	}, nil
}

func (lpc *LongportClient) Name() string { return ProviderLongport }

func (lpc *LongportClient) sticks(ctx context.Context, symbol string, period quote.Period, count int) ([]*quote.Candlestick, error) {
	if lpc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}
	var sticks []*quote.Candlestick
	err := WithRetry(ctx, lpc.retry, func() error {
		var err error
		sticks, err = lpc.quoteCtx.Candlesticks(ctx, symbol, period, int32(count), quote.AdjustTypeNo)
		if err != nil {
			return fmt.Errorf("failed to get candlesticks for %s: %w", symbol, err)
		}
		return nil
	})
	return sticks, err
}

// History asks for enough candles to cover the lookback and lets the window
// bound them. Trading sessions have at most 7 hourly candles a day.
func (lpc *LongportClient) History(ctx context.Context, symbol string, window models.Window) (*Frame, error) {
	period, count := quote.PeriodDay, window.LookbackDays
	if window.Interval.IsIntraday() {
		period, count = quote.PeriodSixtyMinute, window.LookbackDays*7
	}
	if count > 1000 {
		count = 1000
	}
	sticks, err := lpc.sticks(ctx, symbol, period, count)
	if err != nil {
		return nil, err
	}
	if len(sticks) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrEmptySeries)
	}

	start, _ := window.Range(lpc.now())
	rows := make([]chartRow, 0, len(sticks))
	for _, stick := range sticks {
		ts := time.Unix(stick.Timestamp, 0)
		if ts.Before(start) {
			continue
		}
		rows = append(rows, chartRow{
			ts:     ts,
			open:   priceOf(stick.Open.Float64()),
			high:   priceOf(stick.High.Float64()),
			low:    priceOf(stick.Low.Float64()),
			close:  priceOf(stick.Close.Float64()),
			volume: floatPtr(float64(stick.Volume)),
		})
	}
	return buildFrame(symbol, rows, time.Local), nil
}

// Snapshot derives the quote block from the last two daily candles and the
// static info name. Longport does not expose market cap here.
func (lpc *LongportClient) Snapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	sticks, err := lpc.sticks(ctx, symbol, quote.PeriodDay, 2)
	if err != nil {
		return nil, err
	}
	if len(sticks) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s", ErrInvalidSymbol, symbol)
	}

	var name string
	if infos, err := lpc.quoteCtx.StaticInfo(ctx, []string{symbol}); err == nil && len(infos) > 0 && infos[0] != nil {
		name = infos[0].NameEn
	}

	last := sticks[len(sticks)-1]
	price, _ := last.Close.Float64()
	var prev null.Float
	if len(sticks) > 1 {
		p, _ := sticks[len(sticks)-2].Close.Float64()
		prev = positive(p)
	}
	return models.NewSnapshot(symbol, name, positive(price), prev, null.Int{}, null.IntFrom(last.Volume), lpc.now()), nil
}
