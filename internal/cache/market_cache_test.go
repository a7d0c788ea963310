package cache

import (
	"context"
	"testing"
	"time"

	"github.com/dyike/cortexta/internal/logger"
	"github.com/dyike/cortexta/models"
	"github.com/dyike/cortexta/pkg/dataflows"
)

type countingProvider struct {
	*dataflows.MemoryProvider
	calls int
}

func (c *countingProvider) History(ctx context.Context, symbol string, window models.Window) (*dataflows.Frame, error) {
	c.calls++
	return c.MemoryProvider.History(ctx, symbol, window)
}

func newCounting() *countingProvider {
	mem := dataflows.NewMemoryProvider()
	mem.Add("AAPL", []models.PriceBar{
		{Time: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
	})
	return &countingProvider{MemoryProvider: mem}
}

func TestHistoryIsCachedPerWindow(t *testing.T) {
	p := newCounting()
	c := NewMarketDataCache(p, time.Minute, logger.Discard())
	ctx := context.Background()
	daily := models.Window{Interval: models.IntervalDaily, LookbackDays: 5}

	for i := 0; i < 3; i++ {
		if _, err := c.History(ctx, "AAPL", daily); err != nil {
			t.Fatal(err)
		}
	}
	if p.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", p.calls)
	}

	if _, err := c.History(ctx, "AAPL", models.Window{Interval: models.IntervalHourly, LookbackDays: 15}); err != nil {
		t.Fatal(err)
	}
	if p.calls != 2 || c.Len() != 2 {
		t.Fatalf("calls = %d, entries = %d", p.calls, c.Len())
	}
	if c.Name() != "memory" {
		t.Fatalf("name = %s", c.Name())
	}
}

func TestExpiredEntriesAreRefetched(t *testing.T) {
	p := newCounting()
	c := NewMarketDataCache(p, time.Minute, logger.Discard())
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	w := models.Window{Interval: models.IntervalDaily, LookbackDays: 5}

	if _, err := c.History(context.Background(), "AAPL", w); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := c.History(context.Background(), "AAPL", w); err != nil {
		t.Fatal(err)
	}
	if p.calls != 2 {
		t.Fatalf("provider calls = %d, want 2", p.calls)
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	p := newCounting()
	c := NewMarketDataCache(p, time.Minute, logger.Discard())
	w := models.Window{Interval: models.IntervalDaily, LookbackDays: 5}
	for i := 0; i < 2; i++ {
		if _, err := c.History(context.Background(), "ZZZZ", w); err == nil {
			t.Fatal("expected error")
		}
	}
	if p.calls != 2 || c.Len() != 0 {
		t.Fatalf("calls = %d, entries = %d", p.calls, c.Len())
	}
	c.Clear()
}
