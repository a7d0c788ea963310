// Package cli provides the command-line interface for cortexta
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/dyike/cortexta/config"
	"github.com/dyike/cortexta/internal/analysis"
	"github.com/dyike/cortexta/internal/cache"
	"github.com/dyike/cortexta/internal/chart"
	"github.com/dyike/cortexta/internal/logger"
	"github.com/dyike/cortexta/internal/storage"
	"github.com/dyike/cortexta/pkg/dataflows"
)

// Run starts the CLI application
func Run() {
	rootCmd := NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what the commands share. Fields left nil are built from the
// configuration on first use.
type app struct {
	configPath string
	cfg        *config.Config
	log        *logrus.Logger
	provider   dataflows.Provider
	renderer   chart.Renderer
	store      *storage.Store
	analyzer   *analysis.Analyzer
}

func (a *app) loadConfig() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// setup validates the configuration and wires provider, history and analyzer.
func (a *app) setup() error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := a.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if a.log == nil {
		log, err := logger.New(logger.Options{Level: a.cfg.LogLevel, Format: a.cfg.LogFormat, Output: a.cfg.LogOutput})
		if err != nil {
			return err
		}
		a.log = log
	}

	if a.provider == nil {
		provider, err := dataflows.NewProvider(a.cfg)
		if err != nil {
			return err
		}
		a.provider = provider
		if a.cfg.CacheTTL > 0 {
			a.provider = cache.NewMarketDataCache(provider, a.cfg.CacheTTL, logger.WithComponent(a.log, "cache"))
		}
	}

	opts := []analysis.Option{analysis.WithLogger(logger.WithComponent(a.log, "analysis"))}
	if a.renderer != nil {
		opts = append(opts, analysis.WithRenderer(a.renderer))
	}
	if a.cfg.HistoryEnabled && a.store == nil {
		store, err := storage.Open(a.cfg.HistoryDB)
		if err != nil {
			a.log.WithError(err).Warn("run history disabled")
		} else {
			a.store = store
		}
	}
	if a.store != nil {
		opts = append(opts, analysis.WithHistory(a.store))
	}

	fetcher := dataflows.NewFetcher(a.provider,
		dataflows.WithProbeDays(a.cfg.ProbeDays),
		dataflows.WithLogger(logger.WithComponent(a.log, "dataflows")),
	)
	a.analyzer = analysis.New(a.cfg, fetcher, opts...)
	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.log != nil {
			a.log.WithError(err).Warn("close history db")
		}
		a.store = nil
	}
}
