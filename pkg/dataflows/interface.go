package dataflows

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dyike/cortexta/models"
)

// Provider is one market-data backend.
type Provider interface {
	Name() string
	// History returns the raw provider table for the window ending now.
	History(ctx context.Context, symbol string, window models.Window) (*Frame, error)
	// Snapshot returns the realtime quote block.
	Snapshot(ctx context.Context, symbol string) (*models.Snapshot, error)
}

const (
	ProviderYahoo      = "yahoo"
	ProviderYahooChart = "yahoo-chart"
	ProviderLongport   = "longport"
)

// NewProvider builds the provider named in the configuration.
func NewProvider(cfg *Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderYahoo:
		return NewYahooFinanceClient(cfg), nil
	case ProviderYahooChart:
		return NewYahooChartClient(cfg), nil
	case ProviderLongport:
		return NewLongportClient(cfg)
	case ProviderOffline:
		return NewOfflineClient(filepath.Join(cfg.DataDir, "offline")), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}
