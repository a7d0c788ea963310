// Package chart lays out and renders candlestick figures with indicator
// overlays, support/resistance levels and highlight markers.
package chart

import (
	"fmt"
	"image/color"

	"github.com/dyike/cortexta/internal/annotation"
	"github.com/dyike/cortexta/internal/indicators"
	"github.com/dyike/cortexta/models"
)

type PanelKind string

const (
	PanelPrice  PanelKind = "price"
	PanelVolume PanelKind = "volume"
	PanelRSI    PanelKind = "rsi"
)

const (
	RSIOverbought = 70.0
	RSIOversold   = 30.0

	// HighlightLift places highlight markers above the bar's high.
	HighlightLift = 1.03
)

var (
	SupportColor    = color.NRGBA{R: 0, G: 0, B: 255, A: 204}
	ResistanceColor = color.NRGBA{R: 255, G: 0, B: 0, A: 204}
	HighlightColor  = color.NRGBA{R: 0, G: 0, B: 255, A: 160}
	UpColor         = color.NRGBA{R: 0x00, G: 0xb0, B: 0x60, A: 255}
	DownColor       = color.NRGBA{R: 0xfe, G: 0x30, B: 0x32, A: 255}
)

var overlayStyles = map[indicators.Name]Style{
	indicators.SMA5:     {Color: color.NRGBA{R: 0, G: 128, B: 0, A: 255}, Width: 1},
	indicators.SMA20:    {Color: color.NRGBA{R: 128, G: 0, B: 128, A: 255}, Width: 1},
	indicators.SMA60:    {Color: color.NRGBA{R: 255, G: 165, B: 0, A: 255}, Width: 1},
	indicators.SMA120:   {Color: color.NRGBA{R: 165, G: 42, B: 42, A: 255}, Width: 1},
	indicators.BBHigh:   {Color: color.NRGBA{R: 128, G: 128, B: 128, A: 255}, Width: 1, Dashed: true},
	indicators.BBMiddle: {Color: color.NRGBA{R: 0, G: 0, B: 0, A: 255}, Width: 1},
	indicators.BBLow:    {Color: color.NRGBA{R: 128, G: 128, B: 128, A: 255}, Width: 1, Dashed: true},
	indicators.RSI:      {Color: color.NRGBA{R: 255, G: 165, B: 0, A: 255}, Width: 1},
}

type Style struct {
	Color  color.NRGBA
	Width  float64 // points
	Dashed bool
}

// Line is a per-bar series drawn over a panel. Bars without a value are gaps.
type Line struct {
	Name   string
	Values indicators.Column
	Style  Style
}

// HLine is a horizontal line spanning the whole panel.
type HLine struct {
	Label string
	Y     float64
	Style Style
}

type Marker struct {
	Index int
	Y     float64
	Label string
}

type Panel struct {
	Kind    PanelKind
	Ratio   float64
	Label   string
	Lines   []Line
	HLines  []HLine
	Markers []Marker
	// Fixed axis range; zero Max means autoscale.
	YMin, YMax float64
}

// Figure is a fully resolved chart, independent of the drawing backend.
type Figure struct {
	Title    string
	Symbol   string
	Bars     []models.PriceBar
	Intraday bool
	Panels   []Panel
	Omitted  []indicators.Name
	Width    int
	Height   int
}

// Overlays lists the indicator lines that made it onto the figure, in draw order.
func (f *Figure) Overlays() []string {
	var names []string
	for _, p := range f.Panels {
		for _, l := range p.Lines {
			names = append(names, l.Name)
		}
	}
	return names
}

func (f *Figure) Panel(kind PanelKind) (*Panel, bool) {
	for i := range f.Panels {
		if f.Panels[i].Kind == kind {
			return &f.Panels[i], true
		}
	}
	return nil, false
}

type Options struct {
	MinOverlayPoints int
	MinRSIPoints     int
	Width            int
	Height           int
}

func DefaultOptions() Options {
	return Options{MinOverlayPoints: 5, MinRSIPoints: 10, Width: 1400, Height: 1000}
}

// Annotations are the already parsed and screened inputs drawn on the price panel.
type Annotations struct {
	Levels     []annotation.Level
	Highlights []annotation.Resolution
}

// Plan builds the figure for one symbol. Indicator columns with too few values
// are left off and reported in Omitted.
func Plan(series *models.Series, set *indicators.Set, ann Annotations, opts Options) *Figure {
	if opts.Width <= 0 || opts.Height <= 0 {
		d := DefaultOptions()
		opts.Width, opts.Height = d.Width, d.Height
	}
	fig := &Figure{
		Title:    fmt.Sprintf("%s - Technical Analysis (Candlestick)", series.Symbol),
		Symbol:   series.Symbol,
		Bars:     series.Bars,
		Intraday: series.Interval.IsIntraday(),
		Width:    opts.Width,
		Height:   opts.Height,
	}

	price := Panel{Kind: PanelPrice, Ratio: 4, Label: "Price"}
	for _, name := range set.Names() {
		if name == indicators.RSI {
			continue
		}
		col := set.Column(name)
		if col.ValidCount() < opts.MinOverlayPoints {
			fig.Omitted = append(fig.Omitted, name)
			continue
		}
		price.Lines = append(price.Lines, Line{Name: string(name), Values: col, Style: overlayStyles[name]})
	}

	for _, lv := range ann.Levels {
		style := Style{Color: SupportColor, Width: 2}
		if lv.Kind == annotation.Resistance {
			style.Color = ResistanceColor
		}
		price.HLines = append(price.HLines, HLine{Label: fmt.Sprintf("%s %g", lv.Kind, lv.Price), Y: lv.Price, Style: style})
	}

	seen := make(map[int]bool)
	for _, r := range ann.Highlights {
		if !r.Matched() || seen[r.Index] {
			continue
		}
		seen[r.Index] = true
		price.Markers = append(price.Markers, Marker{
			Index: r.Index,
			Y:     series.Bars[r.Index].High * HighlightLift,
			Label: r.Requested.Raw,
		})
	}

	fig.Panels = append(fig.Panels, price, Panel{Kind: PanelVolume, Ratio: 1, Label: "Volume"})

	if set.Has(indicators.RSI) {
		col := set.Column(indicators.RSI)
		if col.ValidCount() >= opts.MinRSIPoints {
			fig.Panels = append(fig.Panels, Panel{
				Kind:  PanelRSI,
				Ratio: 1,
				Label: "RSI",
				Lines: []Line{{Name: string(indicators.RSI), Values: col, Style: overlayStyles[indicators.RSI]}},
				HLines: []HLine{
					{Label: "Overbought (70)", Y: RSIOverbought, Style: Style{Color: color.NRGBA{R: 255, A: 255}, Width: 1, Dashed: true}},
					{Label: "Oversold (30)", Y: RSIOversold, Style: Style{Color: color.NRGBA{G: 128, A: 255}, Width: 1, Dashed: true}},
				},
				YMin: 0,
				YMax: 100,
			})
		} else {
			fig.Omitted = append(fig.Omitted, indicators.RSI)
		}
	}
	return fig
}

// Ratios returns the relative panel heights, top to bottom.
func (f *Figure) Ratios() []float64 {
	out := make([]float64, len(f.Panels))
	for i, p := range f.Panels {
		out[i] = p.Ratio
	}
	return out
}
