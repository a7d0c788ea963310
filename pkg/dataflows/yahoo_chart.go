package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/guregu/null/v6"

	"github.com/dyike/cortexta/models"
)

const defaultYahooChartURL = "https://query1.finance.yahoo.com"

// YahooChartClient reads the raw v8 chart endpoint. Its nested
// indicators.quote[0] arrays are normalized through Frame.Flatten.
type YahooChartClient struct {
	client *resty.Client
	retry  *RetryConfig
	now    func() time.Time
}

func NewYahooChartClient(cfg *Config) *YahooChartClient {
	baseURL := cfg.YahooChartURL
	if baseURL == "" {
		baseURL = defaultYahooChartURL
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; cortexta/1.0)")

	return &YahooChartClient{
		client: client,
		retry:  retryFromConfig(cfg),
		now:    time.Now,
	}
}

func (yc *YahooChartClient) Name() string { return ProviderYahooChart }

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol               string  `json:"symbol"`
		Currency             string  `json:"currency"`
		ExchangeTimezoneName string  `json:"exchangeTimezoneName"`
		GmtOffset            int     `json:"gmtoffset"`
		RegularMarketPrice   float64 `json:"regularMarketPrice"`
		ChartPreviousClose   float64 `json:"chartPreviousClose"`
		PreviousClose        float64 `json:"previousClose"`
		RegularMarketVolume  int64   `json:"regularMarketVolume"`
		LongName             string  `json:"longName"`
		ShortName            string  `json:"shortName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

func (yc *YahooChartClient) fetch(ctx context.Context, symbol string, params map[string]string) (*chartResult, error) {
	var result *chartResult
	err := WithRetry(ctx, yc.retry, func() error {
		resp, err := yc.client.R().
			SetContext(ctx).
			SetPathParam("symbol", symbol).
			SetQueryParams(params).
			Get("/v8/finance/chart/{symbol}")
		if err != nil {
			if ctx.Err() != nil {
				return Permanent(ctx.Err())
			}
			return fmt.Errorf("failed to fetch chart for %s: %w", symbol, err)
		}

		var payload chartResponse
		if err := json.Unmarshal(resp.Body(), &payload); err != nil {
			if resp.StatusCode() != http.StatusOK {
				return fmt.Errorf("API error %d for %s", resp.StatusCode(), symbol)
			}
			return fmt.Errorf("failed to parse chart response: %w", err)
		}
		if e := payload.Chart.Error; e != nil {
			return Permanent(fmt.Errorf("%w: %s: %s", ErrInvalidSymbol, symbol, e.Description))
		}
		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return Permanent(fmt.Errorf("%w: %s", ErrInvalidSymbol, symbol))
		case resp.StatusCode() >= 400 && resp.StatusCode() < 500 && resp.StatusCode() != http.StatusTooManyRequests:
			return Permanent(fmt.Errorf("API error %d for %s", resp.StatusCode(), symbol))
		case resp.StatusCode() != http.StatusOK:
			return fmt.Errorf("API error %d for %s", resp.StatusCode(), symbol)
		}
		if len(payload.Chart.Result) == 0 {
			return Permanent(fmt.Errorf("%s: %w", symbol, ErrEmptySeries))
		}
		result = &payload.Chart.Result[0]
		return nil
	})
	return result, err
}

func (yc *YahooChartClient) History(ctx context.Context, symbol string, window models.Window) (*Frame, error) {
	start, end := window.Range(yc.now())
	interval := "1d"
	if window.Interval.IsIntraday() {
		interval = "1h"
	}
	res, err := yc.fetch(ctx, symbol, map[string]string{
		"period1":        strconv.FormatInt(start.Unix(), 10),
		"period2":        strconv.FormatInt(end.Unix(), 10),
		"interval":       interval,
		"includePrePost": "false",
	})
	if err != nil {
		return nil, err
	}
	return chartFrame(symbol, res), nil
}

// chartFrame copies the nested response into a frame keyed by (field, ticker).
func chartFrame(symbol string, res *chartResult) *Frame {
	ticker := res.Meta.Symbol
	if ticker == "" {
		ticker = symbol
	}
	frame := NewFrame(len(res.Timestamp), exchangeLocation(res.Meta.ExchangeTimezoneName, res.Meta.GmtOffset))
	for i, ts := range res.Timestamp {
		frame.Index[i] = time.Unix(ts, 0)
	}
	if len(res.Indicators.Quote) > 0 {
		q := res.Indicators.Quote[0]
		for field, values := range map[string][]*float64{
			"open": q.Open, "high": q.High, "low": q.Low, "close": q.Close, "volume": q.Volume,
		} {
			copyColumn(frame.Column(ColumnKey{Field: field, Ticker: ticker}), values)
		}
	}
	if len(res.Indicators.AdjClose) > 0 {
		copyColumn(frame.Column(ColumnKey{Field: "adjclose", Ticker: ticker}), res.Indicators.AdjClose[0].AdjClose)
	}
	return frame
}

// copyColumn tolerates short provider arrays; missing tail cells stay nil.
func copyColumn(dst, src []*float64) {
	copy(dst, src)
}

func (yc *YahooChartClient) Snapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	res, err := yc.fetch(ctx, symbol, map[string]string{"range": "1d", "interval": "1d"})
	if err != nil {
		return nil, err
	}
	name := res.Meta.ShortName
	if name == "" {
		name = res.Meta.LongName
	}
	prev := res.Meta.PreviousClose
	if prev <= 0 {
		prev = res.Meta.ChartPreviousClose
	}
	price := positive(res.Meta.RegularMarketPrice)
	return models.NewSnapshot(
		symbol,
		name,
		price,
		positive(prev),
		null.Int{},
		null.NewInt(res.Meta.RegularMarketVolume, price.Valid),
		yc.now(),
	), nil
}
