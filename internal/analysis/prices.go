package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyike/cortexta/internal/indicators"
	"github.com/dyike/cortexta/internal/output"
	"github.com/dyike/cortexta/models"
	"github.com/dyike/cortexta/pkg/dataflows"
)

// DefaultPriceWindow is the raw price dump window: 200 daily bars.
var DefaultPriceWindow = models.Window{Interval: models.IntervalDaily, LookbackDays: 200}

type PriceRequest struct {
	Symbols   string
	Window    models.Window
	OutputDir string
}

type PriceReport struct {
	Results    *output.Ordered[*output.PriceResult]
	Skipped    []dataflows.Skipped
	OutputFile string
	Payload    []byte
}

// Prices fetches quotes and plain OHLCV without indicators or charts and
// writes them to the configured price file.
func (a *Analyzer) Prices(ctx context.Context, req PriceRequest) (*PriceReport, error) {
	report := &PriceReport{Results: output.NewOrdered[*output.PriceResult]()}
	symbols, _ := dataflows.ParseSymbols(req.Symbols)
	if len(symbols) == 0 {
		report.Payload = output.EmptyPayload
		return report, ErrNoSymbols
	}

	window := req.Window
	if window.Interval == "" {
		window.Interval = DefaultPriceWindow.Interval
	}
	if window.LookbackDays <= 0 {
		window.LookbackDays = DefaultPriceWindow.LookbackDays
	}

	valid, skipped := a.fetcher.Validate(ctx, symbols)
	report.Skipped = skipped
	for _, symbol := range valid {
		series, err := a.fetcher.Series(ctx, symbol, window)
		if err != nil {
			a.log.WithField("symbol", symbol).WithError(err).Warn("price history unavailable")
			report.Skipped = append(report.Skipped, dataflows.Skipped{Symbol: symbol, Reason: err.Error()})
			continue
		}
		report.Results.Set(symbol, &output.PriceResult{
			Realtime:   a.fetcher.Snapshot(ctx, symbol),
			Historical: output.NewHistoricalData(series, indicators.Compute(nil, models.IndicatorFlags{})),
		})
	}

	if report.Results.Len() == 0 {
		report.Payload = output.EmptyPayload
		return report, nil
	}

	dir := firstNonEmpty(req.OutputDir, a.cfg.OutputDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, firstNonEmpty(a.cfg.PriceFile, "stock_data.json"))
	payload, err := output.WriteJSON(path, report.Results)
	report.Payload = payload
	if err != nil {
		return report, err
	}
	report.OutputFile = path
	a.log.WithField("symbols", report.Results.Len()).Info("price data written")
	return report, nil
}
