package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dyike/cortexta/config"
	"github.com/dyike/cortexta/internal/chart"
	"github.com/dyike/cortexta/models"
	"github.com/dyike/cortexta/pkg/dataflows"
)

type fileRenderer struct{}

func (fileRenderer) Render(_ *chart.Figure, path string) error {
	return os.WriteFile(path, []byte("png"), 0o644)
}

func testApp(t *testing.T) *app {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.ExportFormats = nil

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, 160)
	for i := range bars {
		c := 50 + float64(i%13)
		bars[i] = models.PriceBar{Time: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	provider := dataflows.NewMemoryProvider()
	provider.Add("AAPL", bars)

	log := logrus.New()
	log.SetOutput(io.Discard)
	return &app{cfg: cfg, log: log, provider: provider, renderer: fileRenderer{}}
}

func execute(t *testing.T, a *app, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type shown struct {
	IndicatorsShown models.IndicatorFlags `json:"indicators_shown"`
}

func TestAnalyzeUsesPresetIndicators(t *testing.T) {
	a := testApp(t)
	out, err := execute(t, a, "", "analyze", "AAPL", "--preset", "daily", "--json", "--quiet")
	if err != nil {
		t.Fatal(err)
	}
	var payload map[string]shown
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("%v: %s", err, out)
	}
	got := payload["AAPL"].IndicatorsShown
	if !got.RSI || !got.Bollinger || got.SMA5 {
		t.Fatalf("indicators = %+v", got)
	}
	if _, err := os.Stat(filepath.Join(a.cfg.OutputDir, "stock_technical_analysis.json")); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyzeExplicitIndicatorsReplacePreset(t *testing.T) {
	a := testApp(t)
	out, err := execute(t, a, "", "analyze", "AAPL", "--preset", "daily", "--sma5", "--no-chart", "--json", "--quiet")
	if err != nil {
		t.Fatal(err)
	}
	var payload map[string]shown
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("%v: %s", err, out)
	}
	if got := payload["AAPL"].IndicatorsShown; got != (models.IndicatorFlags{SMA5: true}) {
		t.Fatalf("indicators = %+v", got)
	}
}

func TestAnalyzeSummaryAndHistory(t *testing.T) {
	a := testApp(t)
	out, err := execute(t, a, "", "analyze", "AAPL,ZZZZ", "--preset", "daily")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "AAPL") || !strings.Contains(out, "ZZZZ") || !strings.Contains(out, "Results written to") {
		t.Fatalf("summary = %s", out)
	}

	out, err = execute(t, a, "", "history", "--limit", "5")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "AAPL,ZZZZ") || !strings.Contains(out, "done") {
		t.Fatalf("history = %s", out)
	}
}

func TestAnalyzeRejectsBadInterval(t *testing.T) {
	a := testApp(t)
	if _, err := execute(t, a, "", "analyze", "AAPL", "--interval", "5m"); err == nil {
		t.Fatal("expected error")
	}
}

func TestToolCommandReadsStdin(t *testing.T) {
	a := testApp(t)
	out, err := execute(t, a, `{"tickers":"AAPL","show_sma120":true}`, "tool")
	if err != nil {
		t.Fatal(err)
	}
	var payload map[string]shown
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("%v: %s", err, out)
	}
	if got := payload["AAPL"].IndicatorsShown; got.RSI || !got.SMA120 {
		t.Fatalf("indicators = %+v", got)
	}

	out, err = execute(t, a, `{"tickers":"ZZZZ"}`, "tool", "stock_price_tool")
	if err != nil || strings.TrimSpace(out) != "{}" {
		t.Fatalf("price tool = %q, %v", out, err)
	}

	if _, err := execute(t, a, `{}`, "tool", "nope"); err == nil {
		t.Fatal("expected unknown tool error")
	}
}

func TestPriceCommand(t *testing.T) {
	a := testApp(t)
	out, err := execute(t, a, "", "price", "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "160 bars") {
		t.Fatalf("price = %s", out)
	}
}

func TestConfigShowMasksCredentials(t *testing.T) {
	a := testApp(t)
	a.cfg.LongportAppSecret = "secret-value"
	out, err := execute(t, a, "", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "secret-value") || !strings.Contains(out, "longport_app_secret") {
		t.Fatalf("config show = %s", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, testApp(t), "", "version")
	if err != nil || !strings.Contains(out, "cortexta") {
		t.Fatalf("version = %q, %v", out, err)
	}
}

func TestValidateSymbols(t *testing.T) {
	for _, in := range []string{"AAPL", "aapl, msft", "005930.KS", "BRK-B"} {
		if err := validateSymbols(in); err != nil {
			t.Errorf("%q: %v", in, err)
		}
	}
	for _, in := range []string{"", " , ", "AA PL", "A$"} {
		if err := validateSymbols(in); err == nil {
			t.Errorf("%q: expected error", in)
		}
	}
}

func TestIndicatorOptionsRoundTrip(t *testing.T) {
	f := models.IndicatorFlags{SMA20: true, RSI: true, Bollinger: true}
	if got := optionsToFlags(flagsToOptions(f)); got != f {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestValidateLevels(t *testing.T) {
	if err := validateLevels("150, 145.5"); err != nil {
		t.Fatal(err)
	}
	if err := validateLevels("abc"); err == nil {
		t.Fatal("expected error")
	}
}
