// Package analysis runs the batch pipeline: validate symbols, load series,
// compute indicators, place annotations, draw charts and write the result file.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	"github.com/sirupsen/logrus"

	"github.com/dyike/cortexta/config"
	"github.com/dyike/cortexta/internal/annotation"
	"github.com/dyike/cortexta/internal/chart"
	"github.com/dyike/cortexta/internal/indicators"
	"github.com/dyike/cortexta/internal/output"
	"github.com/dyike/cortexta/internal/storage"
	"github.com/dyike/cortexta/models"
	"github.com/dyike/cortexta/pkg/dataflows"
)

var ErrNoSymbols = errors.New("no symbols given")

// Request is one analysis call. Annotation fields are the raw comma separated
// strings; malformed items become diagnostics instead of failing the call.
type Request struct {
	Symbols     string
	Supports    string
	Resistances string
	Highlights  string
	Flags       models.IndicatorFlags
	// Preset supplies the window when Window is zero.
	Preset    string
	Window    models.Window
	OutputDir string
	Naming    string
	Exports   []string
	SkipChart bool
}

// Report is what one Run produced.
type Report struct {
	RunID       string
	Provider    string
	Results     *output.Results
	Skipped     []dataflows.Skipped
	Diagnostics []models.Diagnostic
	OutputFile  string
	Payload     []byte
	Started     time.Time
	Finished    time.Time
}

// Empty reports a batch where no symbol produced a result.
func (r *Report) Empty() bool { return r.Results.Len() == 0 }

type Analyzer struct {
	cfg      *config.Config
	fetcher  *dataflows.Fetcher
	renderer chart.Renderer
	history  storage.Recorder
	log      *logrus.Entry
	now      func() time.Time
}

type Option func(*Analyzer)

func WithRenderer(r chart.Renderer) Option { return func(a *Analyzer) { a.renderer = r } }

func WithHistory(r storage.Recorder) Option { return func(a *Analyzer) { a.history = r } }

func WithLogger(log *logrus.Entry) Option { return func(a *Analyzer) { a.log = log } }

func WithClock(now func() time.Time) Option { return func(a *Analyzer) { a.now = now } }

func New(cfg *config.Config, fetcher *dataflows.Fetcher, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:      cfg,
		fetcher:  fetcher,
		renderer: chart.NewPlotRenderer(),
		history:  storage.Noop{},
		log:      logrus.NewEntry(logrus.StandardLogger()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// job is a Request after parsing, shared by every symbol of the batch.
type job struct {
	req       Request
	preset    Preset
	input     annotation.Input
	namer     chart.Namer
	outputDir string
	exports   []string
}

func (a *Analyzer) prepare(req Request) (*job, error) {
	preset, err := LookupPreset(firstNonEmpty(req.Preset, a.cfg.Preset))
	if err != nil {
		return nil, err
	}
	namer, err := chart.NewNamer(firstNonEmpty(req.Naming, a.cfg.ChartNaming))
	if err != nil {
		return nil, err
	}
	j := &job{
		req:       req,
		preset:    preset,
		input:     annotation.Parse(req.Supports, req.Resistances, req.Highlights),
		namer:     namer,
		outputDir: firstNonEmpty(req.OutputDir, a.cfg.OutputDir),
		exports:   req.Exports,
	}
	if j.exports == nil {
		j.exports = a.cfg.ExportFormats
	}
	if req.Window.LookbackDays < 0 {
		return nil, fmt.Errorf("lookback must be positive, got %d", req.Window.LookbackDays)
	}
	return j, nil
}

func (j *job) window(symbol string) models.Window {
	w := j.preset.WindowFor(symbol)
	if j.req.Window.Interval != "" {
		w.Interval = j.req.Window.Interval
	}
	if j.req.Window.LookbackDays > 0 {
		w.LookbackDays = j.req.Window.LookbackDays
	}
	return w
}

// Run processes the symbols one after another. A symbol that fails at any
// stage is skipped; the batch only errors on bad requests, unwritable output
// or results that cannot be encoded.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Report, error) {
	report := &Report{
		RunID:    uuid.New().String(),
		Provider: a.fetcher.ProviderName(),
		Results:  output.NewResults(),
		Started:  a.now(),
	}
	log := a.log.WithField("run_id", report.RunID)

	symbols, dups := dataflows.ParseSymbols(req.Symbols)
	if len(symbols) == 0 {
		report.Payload = output.EmptyPayload
		report.Finished = a.now()
		return report, ErrNoSymbols
	}
	for _, d := range dups {
		report.Diagnostics = append(report.Diagnostics, models.Diagnostic{
			Kind: models.DiagDuplicateSymbol, Symbol: d, Input: d, Message: "symbol listed more than once",
		})
	}

	j, err := a.prepare(req)
	if err != nil {
		report.Payload = output.EmptyPayload
		report.Finished = a.now()
		return report, err
	}
	report.Diagnostics = append(report.Diagnostics, j.input.Diagnostics...)
	if err := os.MkdirAll(j.outputDir, 0o755); err != nil {
		return report, fmt.Errorf("create output dir: %w", err)
	}

	log.WithFields(logrus.Fields{"symbols": strings.Join(symbols, ","), "preset": j.preset.Name}).Info("analysis started")

	valid, skipped := a.fetcher.Validate(ctx, symbols)
	report.Skipped = append(report.Skipped, skipped...)

	for _, symbol := range valid {
		res, err := a.analyzeSymbol(ctx, j, symbol)
		if err != nil {
			log.WithField("symbol", symbol).WithError(err).Warn("symbol skipped")
			report.Skipped = append(report.Skipped, dataflows.Skipped{Symbol: symbol, Reason: err.Error()})
			continue
		}
		report.Results.Set(symbol, res)
	}
	for _, s := range report.Skipped {
		report.Diagnostics = append(report.Diagnostics, models.Diagnostic{
			Kind: models.DiagInvalidSymbol, Symbol: s.Symbol, Input: s.Symbol, Message: s.Reason,
		})
	}

	writer := output.NewWriter(j.outputDir, a.cfg.ResultsFile)
	payload, path, werr := writer.Write(report.Results)
	report.Payload, report.OutputFile = payload, path
	report.Finished = a.now()

	if err := a.record(ctx, report, j, symbols, werr); err != nil {
		log.WithError(err).Warn("run history not saved")
		report.Diagnostics = append(report.Diagnostics, models.Diagnostic{Kind: models.DiagHistoryFailed, Message: err.Error()})
	}

	fields := logrus.Fields{"results": report.Results.Len(), "skipped": len(report.Skipped), "file": path}
	switch {
	case werr != nil:
		log.WithFields(fields).WithError(werr).Error("analysis output failed")
	case report.Empty():
		log.WithFields(fields).Warn("no symbol could be analysed")
	default:
		log.WithFields(fields).Info("analysis finished")
	}
	return report, werr
}

func (a *Analyzer) analyzeSymbol(ctx context.Context, j *job, symbol string) (*output.AnalysisResult, error) {
	log := a.log.WithField("symbol", symbol)
	window := j.window(symbol)

	series, err := a.fetcher.Series(ctx, symbol, window)
	if err != nil {
		return nil, fmt.Errorf("load %s %dd: %w", window.Interval, window.LookbackDays, err)
	}
	snapshot := a.fetcher.Snapshot(ctx, symbol)

	closes := series.Closes()
	set := indicators.Compute(closes, j.req.Flags)

	var diags []models.Diagnostic
	diags = append(diags, j.input.Diagnostics...)

	levels := j.input.Levels()
	kept, rejected := annotation.Guard(symbol, levels, indicators.References(closes), a.cfg.LevelGuardTolerance)
	diags = append(diags, rejected...)

	resolutions := annotation.Resolve(series, j.input.Highlights)
	diags = append(diags, annotation.Unmatched(symbol, resolutions)...)

	res := &output.AnalysisResult{
		Realtime:         snapshot,
		LatestIndicators: set.Latest(),
		Historical:       output.NewHistoricalData(series, set),
		Highlights:       output.NewHighlights(series, resolutions),
		IndicatorsShown:  j.req.Flags,
		PlottedOverlays:  []string{},
	}
	res.SetLevels(kept, dropped(levels, kept))

	if !j.req.SkipChart {
		diags = append(diags, a.drawChart(j, series, set, kept, resolutions, res)...)
	}

	if len(j.exports) > 0 {
		if _, err := output.Export(j.outputDir, symbol, &res.Historical, j.exports); err != nil {
			log.WithError(err).Warn("history export failed")
			diags = append(diags, models.Diagnostic{Kind: models.DiagExportFailed, Symbol: symbol, Message: err.Error()})
		}
	}

	res.Diagnostics = diags
	if res.Diagnostics == nil {
		res.Diagnostics = []models.Diagnostic{}
	}
	log.WithFields(logrus.Fields{"bars": series.Len(), "plot": res.PlotFile.String}).Info("symbol analysed")
	return res, nil
}

func (a *Analyzer) drawChart(j *job, series *models.Series, set *indicators.Set, levels []annotation.Level,
	resolutions []annotation.Resolution, res *output.AnalysisResult) []models.Diagnostic {
	var diags []models.Diagnostic
	fig := chart.Plan(series, set, chart.Annotations{Levels: levels, Highlights: resolutions}, chart.Options{
		MinOverlayPoints: a.cfg.MinOverlayPoints,
		MinRSIPoints:     a.cfg.MinRSIPoints,
		Width:            a.cfg.ChartWidth,
		Height:           a.cfg.ChartHeight,
	})
	for _, name := range fig.Omitted {
		diags = append(diags, models.Diagnostic{
			Kind: models.DiagOverlayOmitted, Symbol: series.Symbol, Input: string(name),
			Message: fmt.Sprintf("%s has too few values to draw", name),
		})
	}

	path, index, err := j.namer.Next(j.outputDir, series.Symbol)
	if err == nil {
		err = a.render(fig, path)
		if err != nil && index >= 0 {
			_ = os.Remove(path)
		}
	}
	if err != nil {
		a.log.WithField("symbol", series.Symbol).WithError(err).Error("chart rendering failed")
		return append(diags, models.Diagnostic{Kind: models.DiagChartFailed, Symbol: series.Symbol, Message: err.Error()})
	}

	res.PlotFile = null.StringFrom(path)
	if index >= 0 {
		res.PlotIndex = &index
	}
	res.PlottedOverlays = fig.Overlays()
	return diags
}

// render converts a renderer panic into an error so one bad figure cannot
// abort the batch.
func (a *Analyzer) render(fig *chart.Figure, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chart renderer panicked: %v", r)
		}
	}()
	return a.renderer.Render(fig, path)
}

func (a *Analyzer) record(ctx context.Context, report *Report, j *job, symbols []string, werr error) error {
	status := storage.StatusDone
	switch {
	case werr != nil:
		status = storage.StatusError
	case report.Empty():
		status = storage.StatusEmpty
	}
	window := j.window("")
	run := storage.RunRecord{
		ID:           report.RunID,
		Symbols:      strings.Join(symbols, ","),
		Interval:     string(window.Interval),
		LookbackDays: window.LookbackDays,
		Provider:     report.Provider,
		Status:       status,
		OutputFile:   report.OutputFile,
		Diagnostics:  len(report.Diagnostics),
		StartedAt:    report.Started,
		FinishedAt:   report.Finished,
	}

	var recs []storage.SymbolRecord
	for _, sym := range report.Results.Symbols() {
		res, _ := report.Results.Get(sym)
		rec := storage.SymbolRecord{Symbol: sym, Status: storage.SymbolOK, Bars: res.Historical.Len(), PlotFile: res.PlotFile}
		if n := res.Historical.Len(); n > 0 {
			rec.LastClose = null.FloatFrom(res.Historical.Close[n-1])
		}
		recs = append(recs, rec)
	}
	for _, s := range report.Skipped {
		recs = append(recs, storage.SymbolRecord{Symbol: s.Symbol, Status: storage.SymbolSkip, Reason: s.Reason})
	}
	return a.history.SaveRun(ctx, run, recs)
}

// dropped returns the levels that Guard filtered out, in input order.
func dropped(all, kept []annotation.Level) []annotation.Level {
	keep := make(map[annotation.Level]bool, len(kept))
	for _, lv := range kept {
		keep[lv] = true
	}
	var out []annotation.Level
	for _, lv := range all {
		if !keep[lv] {
			out = append(out, lv)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
