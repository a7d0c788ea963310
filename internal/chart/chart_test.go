package chart

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dyike/cortexta/internal/annotation"
	"github.com/dyike/cortexta/internal/indicators"
	"github.com/dyike/cortexta/models"
)

func testSeries(n int) *models.Series {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s := &models.Series{Symbol: "AAPL", Interval: models.IntervalHourly, Location: time.UTC}
	for i := 0; i < n; i++ {
		c := 100 + 5*math.Sin(float64(i)/4)
		s.Bars = append(s.Bars, models.PriceBar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: float64(1000 + i),
		})
	}
	return s
}

func countHLines(p *Panel, c interface{}) int {
	n := 0
	for _, hl := range p.HLines {
		if hl.Style.Color == c {
			n++
		}
	}
	return n
}

func TestPlanLevelColors(t *testing.T) {
	series := testSeries(40)
	set := indicators.Compute(series.Closes(), models.IndicatorFlags{SMA5: true})
	levels := []annotation.Level{{Price: 100, Kind: annotation.Support}, {Price: 105, Kind: annotation.Support}, {Price: 110, Kind: annotation.Resistance}}

	fig := Plan(series, set, Annotations{Levels: levels}, DefaultOptions())
	price, ok := fig.Panel(PanelPrice)
	if !ok {
		t.Fatal("no price panel")
	}
	if len(price.HLines) != 3 {
		t.Fatalf("hlines = %d", len(price.HLines))
	}
	if got := countHLines(price, SupportColor); got != 2 {
		t.Fatalf("support lines = %d", got)
	}
	if got := countHLines(price, ResistanceColor); got != 1 {
		t.Fatalf("resistance lines = %d", got)
	}
	for _, hl := range price.HLines {
		if hl.Style.Width != 2 || hl.Style.Dashed {
			t.Fatalf("level style = %+v", hl.Style)
		}
	}
}

func TestPlanOmitsSparseOverlays(t *testing.T) {
	series := testSeries(64)
	set := indicators.Compute(series.Closes(), models.IndicatorFlags{SMA5: true, SMA60: true, RSI: true})

	fig := Plan(series, set, Annotations{}, DefaultOptions())
	// SMA60 has 5 values on 64 bars, RSI has 50.
	if got := fig.Overlays(); len(got) != 3 || got[0] != "SMA5" || got[1] != "SMA60" || got[2] != "RSI" {
		t.Fatalf("overlays = %v", got)
	}

	series = testSeries(63)
	set = indicators.Compute(series.Closes(), models.IndicatorFlags{SMA5: true, SMA60: true})
	fig = Plan(series, set, Annotations{}, DefaultOptions())
	if len(fig.Omitted) != 1 || fig.Omitted[0] != indicators.SMA60 {
		t.Fatalf("omitted = %v", fig.Omitted)
	}
}

func TestPlanPanelRatios(t *testing.T) {
	series := testSeries(30)

	withRSI := Plan(series, indicators.Compute(series.Closes(), models.IndicatorFlags{RSI: true}), Annotations{}, DefaultOptions())
	if r := withRSI.Ratios(); len(r) != 3 || r[0] != 4 || r[1] != 1 || r[2] != 1 {
		t.Fatalf("ratios with RSI = %v", r)
	}
	rsi, _ := withRSI.Panel(PanelRSI)
	if len(rsi.HLines) != 2 || rsi.HLines[0].Y != 70 || rsi.HLines[1].Y != 30 {
		t.Fatalf("rsi reference lines = %+v", rsi.HLines)
	}

	without := Plan(series, indicators.Compute(series.Closes(), models.IndicatorFlags{SMA5: true}), Annotations{}, DefaultOptions())
	if r := without.Ratios(); len(r) != 2 || r[0] != 4 || r[1] != 1 {
		t.Fatalf("ratios without RSI = %v", r)
	}

	// 20 bars leave 6 RSI values, under the panel threshold.
	short := testSeries(20)
	fig := Plan(short, indicators.Compute(short.Closes(), models.IndicatorFlags{RSI: true}), Annotations{}, DefaultOptions())
	if _, ok := fig.Panel(PanelRSI); ok || len(fig.Omitted) != 1 {
		t.Fatalf("sparse RSI should be omitted: panels=%d omitted=%v", len(fig.Panels), fig.Omitted)
	}
}

func TestPlanHighlightMarkers(t *testing.T) {
	series := testSeries(30)
	res := []annotation.Resolution{
		{Match: annotation.MatchExact, Index: 3},
		{Match: annotation.MatchNearest, Index: 3},
		{Match: annotation.MatchUnmatched, Index: -1},
	}
	fig := Plan(series, indicators.Compute(series.Closes(), models.IndicatorFlags{}), Annotations{Highlights: res}, DefaultOptions())
	price, _ := fig.Panel(PanelPrice)
	if len(price.Markers) != 1 {
		t.Fatalf("markers = %+v", price.Markers)
	}
	if want := series.Bars[3].High * 1.03; math.Abs(price.Markers[0].Y-want) > 1e-9 {
		t.Fatalf("marker y = %v, want %v", price.Markers[0].Y, want)
	}
	if fig.Title != "AAPL - Technical Analysis (Candlestick)" {
		t.Fatalf("title = %q", fig.Title)
	}
}

func TestIndexedNamerSkipsTakenNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "technical_analysis0.png"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	var n IndexedNamer
	path, idx, err := n.Next(dir, "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if idx != 1 || filepath.Base(path) != "technical_analysis1.png" {
		t.Fatalf("got %s (%d)", path, idx)
	}
	_, idx, err = n.Next(dir, "MSFT")
	if err != nil || idx != 2 {
		t.Fatalf("second reservation = %d, %v", idx, err)
	}
}

func TestSymbolNamer(t *testing.T) {
	path, idx, err := SymbolNamer{}.Next("/out", "005930.KS")
	if err != nil || idx != -1 || path != filepath.Join("/out", "005930.KS_technical_analysis.png") {
		t.Fatalf("got %s %d %v", path, idx, err)
	}
	if _, err := NewNamer("random"); err == nil {
		t.Fatal("expected error for unknown naming")
	}
}

func TestPlotRendererWritesPNG(t *testing.T) {
	series := testSeries(80)
	set := indicators.Compute(series.Closes(), models.AllIndicators())
	fig := Plan(series, set, Annotations{
		Levels:     []annotation.Level{{Price: 98, Kind: annotation.Support}},
		Highlights: []annotation.Resolution{{Match: annotation.MatchExact, Index: 10}},
	}, Options{MinOverlayPoints: 5, MinRSIPoints: 10, Width: 600, Height: 500})

	path := filepath.Join(t.TempDir(), "chart.png")
	if err := NewPlotRenderer().Render(fig, path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatalf("not a png, %d bytes", len(data))
	}
}

func TestPlotRendererRejectsEmptyFigure(t *testing.T) {
	if err := NewPlotRenderer().Render(&Figure{Symbol: "X"}, filepath.Join(t.TempDir(), "x.png")); err == nil {
		t.Fatal("expected error")
	}
}
