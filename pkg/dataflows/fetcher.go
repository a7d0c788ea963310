package dataflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dyike/cortexta/models"
)

// Skipped records a symbol dropped from a batch and why.
type Skipped struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Fetcher probes symbols and loads their series and quotes from one provider.
type Fetcher struct {
	provider Provider
	probe    models.Window
	log      *logrus.Entry
	now      func() time.Time
}

type FetcherOption func(*Fetcher)

// WithProbeDays sets how many daily bars back the validity probe looks.
func WithProbeDays(days int) FetcherOption {
	return func(f *Fetcher) {
		if days > 0 {
			f.probe.LookbackDays = days
		}
	}
}

func WithLogger(log *logrus.Entry) FetcherOption {
	return func(f *Fetcher) { f.log = log }
}

func NewFetcher(provider Provider, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		provider: provider,
		probe:    models.Window{Interval: models.IntervalDaily, LookbackDays: 5},
		log:      logrus.NewEntry(logrus.StandardLogger()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.WithField("provider", provider.Name())
	return f
}

func (f *Fetcher) ProviderName() string { return f.provider.Name() }

// Validate probes every symbol in order. A symbol is valid when the probe
// returns at least one clean bar; any failure skips just that symbol.
func (f *Fetcher) Validate(ctx context.Context, symbols []string) ([]string, []Skipped) {
	var valid []string
	var skipped []Skipped
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			skipped = append(skipped, Skipped{Symbol: symbol, Reason: err.Error()})
			continue
		}
		if err := f.probeSymbol(ctx, symbol); err != nil {
			f.log.WithField("symbol", symbol).WithError(err).Warn("skipping invalid symbol")
			skipped = append(skipped, Skipped{Symbol: symbol, Reason: err.Error()})
			continue
		}
		valid = append(valid, symbol)
	}
	return valid, skipped
}

func (f *Fetcher) probeSymbol(ctx context.Context, symbol string) error {
	frame, err := f.provider.History(ctx, symbol, f.probe)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidSymbol, symbol, err)
	}
	if _, err := frame.Flatten(symbol); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSymbol, err)
	}
	return nil
}

// Series loads and normalizes the history for one symbol.
func (f *Fetcher) Series(ctx context.Context, symbol string, window models.Window) (*models.Series, error) {
	frame, err := f.provider.History(ctx, symbol, window)
	if err != nil {
		return nil, err
	}
	series, err := frame.Flatten(symbol)
	if err != nil {
		return nil, err
	}
	series.Interval = window.Interval
	f.log.WithFields(logrus.Fields{
		"symbol":   symbol,
		"bars":     series.Len(),
		"interval": window.Interval,
	}).Debug("series loaded")
	return series, nil
}

// Snapshot never fails: a quote error is carried in the snapshot itself.
func (f *Fetcher) Snapshot(ctx context.Context, symbol string) *models.Snapshot {
	snap, err := f.provider.Snapshot(ctx, symbol)
	if err == nil && snap == nil {
		err = errors.New("provider returned no quote")
	}
	if err != nil {
		f.log.WithField("symbol", symbol).WithError(err).Warn("realtime quote unavailable")
		return models.FailedSnapshot(symbol, err, f.now())
	}
	return snap
}
