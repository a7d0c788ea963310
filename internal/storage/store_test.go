package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/guregu/null/v6"
)

func TestSaveAndListRuns(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history", "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	start := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-1", "run-2"} {
		run := RunRecord{
			ID: id, Symbols: "AAPL,ZZZZ", Interval: "1h", LookbackDays: 15, Provider: "yahoo",
			Status: StatusDone, OutputFile: "out.json", Diagnostics: i,
			StartedAt: start.Add(time.Duration(i) * time.Minute), FinishedAt: start.Add(time.Duration(i)*time.Minute + time.Second),
		}
		symbols := []SymbolRecord{
			{Symbol: "AAPL", Status: SymbolOK, Bars: 105, LastClose: null.FloatFrom(172.5), PlotFile: null.StringFrom("technical_analysis0.png")},
			{Symbol: "ZZZZ", Status: SymbolSkip, Reason: "no data"},
		}
		if err := store.SaveRun(ctx, run, symbols); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.ListRuns(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Fatalf("runs = %+v", runs)
	}
	if !runs[1].StartedAt.Equal(start) || runs[0].Diagnostics != 1 {
		t.Fatalf("run fields = %+v", runs[1])
	}

	older, err := store.ListRuns(ctx, runs[0].RowID, 10)
	if err != nil || len(older) != 1 || older[0].ID != "run-1" {
		t.Fatalf("paging = %+v, %v", older, err)
	}

	syms, err := store.ListSymbols(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 2 || syms[0].Seq != 1 || syms[1].Reason != "no data" {
		t.Fatalf("symbols = %+v", syms)
	}
	if !syms[0].LastClose.Valid || syms[0].LastClose.Float64 != 172.5 || syms[1].LastClose.Valid || syms[1].PlotFile.Valid {
		t.Fatalf("nullable columns = %+v", syms)
	}
}

func TestSaveRunRequiresID(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.SaveRun(context.Background(), RunRecord{}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error")
	}
}
