// Package cache keeps recently fetched provider tables in memory so repeated
// runs in one process (interactive mode, tool calls) do not refetch them.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dyike/cortexta/models"
	"github.com/dyike/cortexta/pkg/dataflows"
)

type cachedFrame struct {
	frame     *dataflows.Frame
	timestamp time.Time
}

// MarketDataCache wraps a provider. History results are cached per symbol and
// window for TTL; snapshots are never cached.
type MarketDataCache struct {
	provider dataflows.Provider
	ttl      time.Duration
	log      *logrus.Entry
	now      func() time.Time

	mu     sync.RWMutex
	frames map[string]cachedFrame
}

func NewMarketDataCache(provider dataflows.Provider, ttl time.Duration, log *logrus.Entry) *MarketDataCache {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MarketDataCache{
		provider: provider,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		frames:   make(map[string]cachedFrame),
	}
}

func key(symbol string, window models.Window) string {
	return fmt.Sprintf("%s-%s-%d", symbol, window.Interval, window.LookbackDays)
}

func (c *MarketDataCache) Name() string { return c.provider.Name() }

func (c *MarketDataCache) History(ctx context.Context, symbol string, window models.Window) (*dataflows.Frame, error) {
	k := key(symbol, window)
	if frame, ok := c.get(k); ok {
		c.log.WithField("symbol", symbol).Debug("using cached history")
		return frame, nil
	}

	frame, err := c.provider.History(ctx, symbol, window)
	if err != nil {
		return nil, err
	}
	c.set(k, frame)
	return frame, nil
}

func (c *MarketDataCache) Snapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	return c.provider.Snapshot(ctx, symbol)
}

func (c *MarketDataCache) get(k string) (*dataflows.Frame, bool) {
	c.mu.RLock()
	cached, ok := c.frames[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(cached.timestamp) > c.ttl {
		c.mu.Lock()
		delete(c.frames, k)
		c.mu.Unlock()
		return nil, false
	}
	return cached.frame, true
}

func (c *MarketDataCache) set(k string, frame *dataflows.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames[k] = cachedFrame{frame: frame, timestamp: c.now()}
}

// Clear drops every cached table.
func (c *MarketDataCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = make(map[string]cachedFrame)
}

func (c *MarketDataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.frames)
}
