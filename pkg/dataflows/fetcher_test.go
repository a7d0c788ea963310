package dataflows

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dyike/cortexta/internal/logger"
	"github.com/dyike/cortexta/models"
)

func makeBars(start time.Time, step time.Duration, n int) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = models.PriceBar{
			Time: start.Add(time.Duration(i) * step), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
		}
	}
	return bars
}

func TestValidateSkipsInvalidSymbols(t *testing.T) {
	mem := NewMemoryProvider()
	start := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	mem.Add("AAPL", makeBars(start, 24*time.Hour, 5))
	mem.Add("MSFT", makeBars(start, 24*time.Hour, 5))
	mem.Add("EMPTY", nil)

	f := NewFetcher(mem, WithLogger(logger.Discard()))
	valid, skipped := f.Validate(context.Background(), []string{"AAPL", "NOPE", "MSFT", "EMPTY"})

	if strings.Join(valid, ",") != "AAPL,MSFT" {
		t.Fatalf("valid = %v", valid)
	}
	if len(skipped) != 2 || skipped[0].Symbol != "NOPE" || skipped[1].Symbol != "EMPTY" {
		t.Fatalf("skipped = %+v", skipped)
	}
	for _, s := range skipped {
		if s.Reason == "" {
			t.Errorf("skip of %s has no reason", s.Symbol)
		}
	}
}

func TestValidateProviderFailureIsContained(t *testing.T) {
	mem := NewMemoryProvider()
	start := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	mem.Add("AAPL", makeBars(start, 24*time.Hour, 3))
	mem.Add("TSLA", makeBars(start, 24*time.Hour, 3))
	mem.Fail("TSLA", errors.New("connection reset"))

	valid, skipped := NewFetcher(mem, WithLogger(logger.Discard())).Validate(context.Background(), []string{"TSLA", "AAPL"})
	if len(valid) != 1 || valid[0] != "AAPL" {
		t.Fatalf("valid = %v", valid)
	}
	if len(skipped) != 1 || !strings.Contains(skipped[0].Reason, "connection reset") {
		t.Fatalf("skipped = %+v", skipped)
	}
}

func TestSeriesSetsInterval(t *testing.T) {
	mem := NewMemoryProvider()
	start := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	mem.Add("AAPL", makeBars(start, time.Hour, 7))

	series, err := NewFetcher(mem, WithLogger(logger.Discard())).Series(context.Background(), "AAPL",
		models.Window{Interval: models.IntervalHourly, LookbackDays: 15})
	if err != nil {
		t.Fatal(err)
	}
	if series.Interval != models.IntervalHourly || series.Len() != 7 {
		t.Fatalf("series = %s %d bars", series.Interval, series.Len())
	}
}

func TestSnapshotFailureIsCarried(t *testing.T) {
	mem := NewMemoryProvider()
	mem.Fail("AAPL", errors.New("quote service down"))

	snap := NewFetcher(mem, WithLogger(logger.Discard())).Snapshot(context.Background(), "AAPL")
	if snap.Error == "" || snap.CurrentPrice.Valid {
		t.Fatalf("expected failed snapshot, got %+v", snap)
	}
}

func TestMemorySnapshotDerivesChange(t *testing.T) {
	mem := NewMemoryProvider()
	start := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	mem.Add("AAPL", makeBars(start, 24*time.Hour, 2))

	snap, err := mem.Snapshot(context.Background(), "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Change.Float64 != 1 || snap.PreviousClose.Float64 != 100 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestOfflineClientReadsFiles(t *testing.T) {
	dir := t.TempDir()
	body := `[{"time":"2024-03-15T09:00:00Z","open":1,"high":2,"low":0.5,"close":1.5,"volume":10}]`
	if err := os.WriteFile(filepath.Join(dir, "AAPL_1h.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	client := NewOfflineClient(dir)
	frame, err := client.History(context.Background(), "AAPL", models.Window{Interval: models.IntervalHourly})
	if err != nil {
		t.Fatal(err)
	}
	series, err := frame.Flatten("AAPL")
	if err != nil || series.Len() != 1 {
		t.Fatalf("series = %v, err = %v", series, err)
	}

	if _, err := client.History(context.Background(), "MSFT", models.Window{Interval: models.IntervalHourly}); !errors.Is(err, ErrInvalidSymbol) {
		t.Fatalf("missing file should be an invalid symbol, got %v", err)
	}
}
