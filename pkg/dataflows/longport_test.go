package dataflows

import (
	"context"
	"testing"

	"github.com/dyike/cortexta/config"
	"github.com/dyike/cortexta/models"
)

func TestLongportClient_History(t *testing.T) {
	// Load configuration from environment
	cfg := config.DefaultConfig()

	client, err := NewLongportClient(cfg)
	if err != nil {
		t.Skipf("Skipping test due to missing Longport API credentials: %v", err)
	}

	ctx := context.Background()
	frame, err := client.History(ctx, "700.HK", models.Window{Interval: models.IntervalDaily, LookbackDays: 30})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	series, err := frame.Flatten("700.HK")
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	t.Logf("700.HK: %d daily bars, last close %.2f", series.Len(), series.Bars[series.Len()-1].Close)

	snap, err := client.Snapshot(ctx, "700.HK")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !snap.CurrentPrice.Valid {
		t.Error("Expected a current price")
	}
	t.Logf("Name: %s Price: %v", snap.CompanyName.String, snap.CurrentPrice.Float64)
}

func TestNewLongportClientNeedsCredentials(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	if _, err := NewLongportClient(cfg); err == nil {
		t.Fatal("expected an error without credentials")
	}
}
