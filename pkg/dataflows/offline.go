package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/guregu/null/v6"

	"github.com/dyike/cortexta/models"
)

const ProviderOffline = "offline"

// MemoryProvider serves prepared bars. It backs the offline provider and is
// handy wherever a deterministic data source is needed.
type MemoryProvider struct {
	mu        sync.RWMutex
	name      string
	bars      map[string][]models.PriceBar
	snapshots map[string]*models.Snapshot
	failures  map[string]error
	loc       *time.Location
	now       func() time.Time
	// Loader, when set, is consulted for symbols that were never added.
	Loader func(symbol string, interval models.Interval) ([]models.PriceBar, error)
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		name:      "memory",
		bars:      make(map[string][]models.PriceBar),
		snapshots: make(map[string]*models.Snapshot),
		failures:  make(map[string]error),
		loc:       time.UTC,
		now:       time.Now,
	}
}

func (m *MemoryProvider) Name() string { return m.name }

func (m *MemoryProvider) Add(symbol string, bars []models.PriceBar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[NormalizeSymbol(symbol)] = bars
}

func (m *MemoryProvider) SetSnapshot(symbol string, snap *models.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[NormalizeSymbol(symbol)] = snap
}

// Fail makes every call for symbol return err.
func (m *MemoryProvider) Fail(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[NormalizeSymbol(symbol)] = err
}

func (m *MemoryProvider) lookup(symbol string, interval models.Interval) ([]models.PriceBar, error) {
	m.mu.RLock()
	err := m.failures[symbol]
	bars, ok := m.bars[symbol]
	loader := m.Loader
	m.mu.RUnlock()

	if err != nil {
		return nil, err
	}
	if !ok && loader != nil {
		return loader(symbol, interval)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSymbol, symbol)
	}
	return bars, nil
}

// History ignores the window: prepared data is returned as is.
func (m *MemoryProvider) History(ctx context.Context, symbol string, window models.Window) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars, err := m.lookup(symbol, window.Interval)
	if err != nil {
		return nil, err
	}
	rows := make([]chartRow, len(bars))
	for i, b := range bars {
		rows[i] = chartRow{
			ts:     b.Time,
			open:   floatPtr(b.Open),
			high:   floatPtr(b.High),
			low:    floatPtr(b.Low),
			close:  floatPtr(b.Close),
			volume: floatPtr(b.Volume),
		}
	}
	return buildFrame(symbol, rows, m.loc), nil
}

// Snapshot returns the prepared quote or derives one from the last two bars.
func (m *MemoryProvider) Snapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	m.mu.RLock()
	snap := m.snapshots[symbol]
	m.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	bars, err := m.lookup(symbol, models.IntervalDaily)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrEmptySeries)
	}
	last := bars[len(bars)-1]
	var prev null.Float
	if len(bars) > 1 {
		prev = positive(bars[len(bars)-2].Close)
	}
	return models.NewSnapshot(symbol, "", positive(last.Close), prev, null.Int{}, null.IntFrom(int64(last.Volume)), m.now()), nil
}

// NewOfflineClient serves bars saved as JSON arrays of PriceBar under dir,
// named {SYMBOL}_{interval}.json or {SYMBOL}.json.
func NewOfflineClient(dir string) *MemoryProvider {
	m := NewMemoryProvider()
	m.name = ProviderOffline
	m.Loader = func(symbol string, interval models.Interval) ([]models.PriceBar, error) {
		candidates := []string{
			filepath.Join(dir, fmt.Sprintf("%s_%s.json", symbol, interval)),
			filepath.Join(dir, symbol+".json"),
		}
		for _, path := range candidates {
			data, err := os.ReadFile(path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			var bars []models.PriceBar
			if err := json.Unmarshal(data, &bars); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			return bars, nil
		}
		return nil, fmt.Errorf("%w: no offline data for %s in %s", ErrInvalidSymbol, symbol, dir)
	}
	return m
}
