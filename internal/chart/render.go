package chart

import (
	"fmt"
	"image/color"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/dyike/cortexta/models"
)

// Renderer draws a planned figure to path.
type Renderer interface {
	Render(fig *Figure, path string) error
}

// PlotRenderer draws PNG files with gonum/plot. Panels share the bar index as
// their x axis so non-trading gaps are not drawn.
type PlotRenderer struct {
	DPI int
}

func NewPlotRenderer() *PlotRenderer {
	return &PlotRenderer{DPI: 96}
}

func (r *PlotRenderer) Render(fig *Figure, path string) error {
	if len(fig.Bars) == 0 {
		return fmt.Errorf("render %s: no bars", fig.Symbol)
	}
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 96
	}

	plots := make([]*plot.Plot, len(fig.Panels))
	for i := range fig.Panels {
		p, err := panelPlot(fig, &fig.Panels[i], i == 0, i == len(fig.Panels)-1)
		if err != nil {
			return fmt.Errorf("render %s %s panel: %w", fig.Symbol, fig.Panels[i].Kind, err)
		}
		plots[i] = p
	}

	w := vg.Length(fig.Width) * vg.Inch / vg.Length(dpi)
	h := vg.Length(fig.Height) * vg.Inch / vg.Length(dpi)
	img := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(dpi))
	dc := draw.New(img)

	total := 0.0
	for _, ratio := range fig.Ratios() {
		total += ratio
	}
	height := dc.Max.Y - dc.Min.Y
	offset := 0.0
	for i, p := range plots {
		share := fig.Panels[i].Ratio / total
		bottom := height * vg.Length(1-offset-share)
		top := -height * vg.Length(offset)
		p.Draw(draw.Crop(dc, 0, 0, bottom, top))
		offset += share
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func panelPlot(fig *Figure, panel *Panel, first, last bool) (*plot.Plot, error) {
	p := plot.New()
	if first {
		p.Title.Text = fig.Title
	}
	p.Y.Label.Text = panel.Label
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	n := len(fig.Bars)
	switch panel.Kind {
	case PanelPrice:
		p.Add(&candlesticks{bars: fig.Bars})
	case PanelVolume:
		p.Add(&volumeBars{bars: fig.Bars})
	}

	for _, l := range panel.Lines {
		segments, err := lineSegments(l)
		if err != nil {
			return nil, err
		}
		for j, seg := range segments {
			p.Add(seg)
			if j == 0 {
				p.Legend.Add(l.Name, seg)
			}
		}
	}

	for _, hl := range panel.HLines {
		line, err := plotter.NewLine(plotter.XYs{{X: -0.5, Y: hl.Y}, {X: float64(n) - 0.5, Y: hl.Y}})
		if err != nil {
			return nil, err
		}
		line.LineStyle = lineStyle(hl.Style)
		p.Add(line)
		if panel.Kind == PanelRSI {
			p.Legend.Add(hl.Label, line)
		}
	}

	if len(panel.Markers) > 0 {
		pts := make(plotter.XYs, len(panel.Markers))
		for i, m := range panel.Markers {
			pts[i] = plotter.XY{X: float64(m.Index), Y: m.Y}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle = draw.GlyphStyle{Color: HighlightColor, Radius: vg.Points(6), Shape: draw.PyramidGlyph{}}
		p.Add(sc)
	}

	p.X.Min, p.X.Max = -0.5, float64(n)-0.5
	if panel.YMax > panel.YMin {
		p.Y.Min, p.Y.Max = panel.YMin, panel.YMax
	}
	p.X.Tick.Marker = barTicks(tickLabels(fig))
	if !last {
		p.X.Tick.Label.Color = color.Transparent
	}
	return p, nil
}

func lineStyle(s Style) draw.LineStyle {
	ls := draw.LineStyle{Color: s.Color, Width: vg.Points(s.Width)}
	if s.Dashed {
		ls.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	}
	return ls
}

// lineSegments splits a column at missing values so each run is drawn separately.
func lineSegments(l Line) ([]*plotter.Line, error) {
	var out []*plotter.Line
	var run plotter.XYs
	flush := func() error {
		if len(run) == 0 {
			return nil
		}
		line, err := plotter.NewLine(run)
		if err != nil {
			return err
		}
		line.LineStyle = lineStyle(l.Style)
		out = append(out, line)
		run = nil
		return nil
	}
	for i, v := range l.Values {
		if !v.Valid {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		run = append(run, plotter.XY{X: float64(i), Y: v.Float64})
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func tickLabels(fig *Figure) []string {
	layout := "2006-01-02"
	if fig.Intraday {
		layout = "01-02 15:04"
	}
	out := make([]string, len(fig.Bars))
	for i, b := range fig.Bars {
		out[i] = b.Time.Format(layout)
	}
	return out
}

// barTicks labels about eight evenly spaced bars with their timestamps.
type barTicks []string

func (t barTicks) Ticks(min, max float64) []plot.Tick {
	if len(t) == 0 {
		return nil
	}
	step := len(t) / 8
	if step < 1 {
		step = 1
	}
	var ticks []plot.Tick
	for i := 0; i < len(t); i += step {
		if float64(i) < min || float64(i) > max {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: float64(i), Label: t[i]})
	}
	return ticks
}

func barColor(open, close float64) color.Color {
	if close < open {
		return DownColor
	}
	return UpColor
}

type candlesticks struct {
	bars []models.PriceBar
}

type volumeBars struct {
	bars []models.PriceBar
}

func (c *candlesticks) Plot(cv draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&cv)
	half := (trX(1) - trX(0)) * 0.35
	for i, b := range c.bars {
		col := barColor(b.Open, b.Close)
		x := trX(float64(i))
		cv.StrokeLine2(draw.LineStyle{Color: col, Width: vg.Points(0.8)}, x, trY(b.Low), x, trY(b.High))
		top, bottom := trY(math.Max(b.Open, b.Close)), trY(math.Min(b.Open, b.Close))
		if top-bottom < vg.Points(0.5) {
			top = bottom + vg.Points(0.5)
		}
		cv.FillPolygon(col, rect(x-half, x+half, bottom, top))
	}
}

func (c *candlesticks) DataRange() (xmin, xmax, ymin, ymax float64) {
	ymin, ymax = math.Inf(1), math.Inf(-1)
	for _, b := range c.bars {
		ymin = math.Min(ymin, b.Low)
		ymax = math.Max(ymax, b.High)
	}
	return -0.5, float64(len(c.bars)) - 0.5, ymin, ymax
}

func (v *volumeBars) Plot(cv draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&cv)
	half := (trX(1) - trX(0)) * 0.35
	for i, b := range v.bars {
		x := trX(float64(i))
		cv.FillPolygon(barColor(b.Open, b.Close), rect(x-half, x+half, trY(0), trY(b.Volume)))
	}
}

func (v *volumeBars) DataRange() (xmin, xmax, ymin, ymax float64) {
	for _, b := range v.bars {
		ymax = math.Max(ymax, b.Volume)
	}
	if ymax == 0 {
		ymax = 1
	}
	return -0.5, float64(len(v.bars)) - 0.5, 0, ymax
}

func rect(x0, x1, y0, y1 vg.Length) []vg.Point {
	return []vg.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}
