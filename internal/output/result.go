// Package output assembles per-symbol analysis results and persists them as
// JSON, with optional CSV and Parquet history exports.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/guregu/null/v6"

	"github.com/dyike/cortexta/internal/annotation"
	"github.com/dyike/cortexta/internal/indicators"
	"github.com/dyike/cortexta/models"
)

type BollingerBands struct {
	High   indicators.Column `json:"High"`
	Middle indicators.Column `json:"Middle"`
	Low    indicators.Column `json:"Low"`
}

// HistoricalData holds parallel per-bar arrays. Indicator arrays are present
// only when requested.
type HistoricalData struct {
	Date   []string  `json:"Date"`
	Time   []string  `json:"Time,omitempty"`
	Open   []float64 `json:"Open"`
	High   []float64 `json:"High"`
	Low    []float64 `json:"Low"`
	Close  []float64 `json:"Close"`
	Volume []float64 `json:"Volume"`

	SMA5           indicators.Column `json:"SMA5,omitempty"`
	SMA20          indicators.Column `json:"SMA20,omitempty"`
	SMA60          indicators.Column `json:"SMA60,omitempty"`
	SMA120         indicators.Column `json:"SMA120,omitempty"`
	RSI            indicators.Column `json:"RSI,omitempty"`
	BollingerBands *BollingerBands   `json:"BollingerBands,omitempty"`
}

func NewHistoricalData(series *models.Series, set *indicators.Set) HistoricalData {
	n := series.Len()
	h := HistoricalData{
		Date:   make([]string, n),
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	if series.Interval.IsIntraday() {
		h.Time = make([]string, n)
	}
	for i, b := range series.Bars {
		h.Date[i] = b.Time.Format(models.DateLayout)
		if h.Time != nil {
			h.Time[i] = b.Time.Format(models.HourLayout)
		}
		h.Open[i], h.High[i], h.Low[i], h.Close[i], h.Volume[i] = b.Open, b.High, b.Low, b.Close, b.Volume
	}

	h.SMA5 = set.Column(indicators.SMA5)
	h.SMA20 = set.Column(indicators.SMA20)
	h.SMA60 = set.Column(indicators.SMA60)
	h.SMA120 = set.Column(indicators.SMA120)
	h.RSI = set.Column(indicators.RSI)
	if set.Has(indicators.BBMiddle) {
		h.BollingerBands = &BollingerBands{
			High:   set.Column(indicators.BBHigh),
			Middle: set.Column(indicators.BBMiddle),
			Low:    set.Column(indicators.BBLow),
		}
	}
	return h
}

func (h *HistoricalData) Len() int { return len(h.Date) }

// Validate checks that every included array has one entry per bar.
func (h *HistoricalData) Validate() error {
	n := len(h.Date)
	lengths := map[string]int{
		"Open": len(h.Open), "High": len(h.High), "Low": len(h.Low),
		"Close": len(h.Close), "Volume": len(h.Volume),
	}
	if h.Time != nil {
		lengths["Time"] = len(h.Time)
	}
	for name, col := range map[string]indicators.Column{
		"SMA5": h.SMA5, "SMA20": h.SMA20, "SMA60": h.SMA60, "SMA120": h.SMA120, "RSI": h.RSI,
	} {
		if col != nil {
			lengths[name] = len(col)
		}
	}
	if bb := h.BollingerBands; bb != nil {
		lengths["BollingerBands.High"] = len(bb.High)
		lengths["BollingerBands.Middle"] = len(bb.Middle)
		lengths["BollingerBands.Low"] = len(bb.Low)
	}
	for name, l := range lengths {
		if l != n {
			return fmt.Errorf("historical %s has %d entries, Date has %d", name, l, n)
		}
	}
	return nil
}

// Highlight is one requested timestamp and the bar it resolved to.
type Highlight struct {
	Requested string   `json:"requested"`
	Match     string   `json:"match"`
	Date      string   `json:"date,omitempty"`
	Time      string   `json:"time,omitempty"`
	Open      *float64 `json:"open,omitempty"`
	High      *float64 `json:"high,omitempty"`
	Low       *float64 `json:"low,omitempty"`
	Close     *float64 `json:"close,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
	HourDiff  *int     `json:"hour_diff,omitempty"`
}

func NewHighlights(series *models.Series, resolutions []annotation.Resolution) []Highlight {
	out := make([]Highlight, 0, len(resolutions))
	for _, r := range resolutions {
		h := Highlight{Requested: r.Requested.Raw, Match: string(r.Match)}
		if r.Matched() {
			b := series.Bars[r.Index]
			h.Date = b.Time.Format(models.DateLayout)
			if series.Interval.IsIntraday() {
				h.Time = b.Time.Format(models.HourLayout)
			}
			h.Open, h.High, h.Low, h.Close, h.Volume = &b.Open, &b.High, &b.Low, &b.Close, &b.Volume
			if r.Requested.HasHour && series.Interval.IsIntraday() {
				diff := r.HourDiff
				h.HourDiff = &diff
			}
		}
		out = append(out, h)
	}
	return out
}

type AnalysisResult struct {
	Realtime         *models.Snapshot      `json:"realtime_data"`
	LatestIndicators indicators.Latest     `json:"latest_indicators"`
	Historical       HistoricalData        `json:"historical_data"`
	Highlights       []Highlight           `json:"highlighted_timestamps"`
	SupportLevels    []float64             `json:"support_levels"`
	ResistanceLevels []float64             `json:"resistance_levels"`
	RejectedLevels   []float64             `json:"rejected_levels"`
	PlotFile         null.String           `json:"plot_file"`
	PlotIndex        *int                  `json:"plot_index,omitempty"`
	IndicatorsShown  models.IndicatorFlags `json:"indicators_shown"`
	PlottedOverlays  []string              `json:"plotted_overlays"`
	Diagnostics      []models.Diagnostic   `json:"diagnostics"`
}

// SetLevels splits screened levels into the support and resistance price lists.
func (r *AnalysisResult) SetLevels(kept []annotation.Level, rejected []annotation.Level) {
	r.SupportLevels, r.ResistanceLevels, r.RejectedLevels = []float64{}, []float64{}, []float64{}
	for _, lv := range kept {
		if lv.Kind == annotation.Support {
			r.SupportLevels = append(r.SupportLevels, lv.Price)
		} else {
			r.ResistanceLevels = append(r.ResistanceLevels, lv.Price)
		}
	}
	for _, lv := range rejected {
		r.RejectedLevels = append(r.RejectedLevels, lv.Price)
	}
}

// Ordered maps symbol to value and keeps insertion order on the wire.
type Ordered[V any] struct {
	order   []string
	entries map[string]V
}

// Results is the analysis payload keyed by symbol.
type Results = Ordered[*AnalysisResult]

func NewResults() *Results {
	return NewOrdered[*AnalysisResult]()
}

func NewOrdered[V any]() *Ordered[V] {
	return &Ordered[V]{entries: make(map[string]V)}
}

func (r *Ordered[V]) Set(symbol string, v V) {
	if r.entries == nil {
		r.entries = make(map[string]V)
	}
	if _, ok := r.entries[symbol]; !ok {
		r.order = append(r.order, symbol)
	}
	r.entries[symbol] = v
}

func (r *Ordered[V]) Get(symbol string) (V, bool) {
	v, ok := r.entries[symbol]
	return v, ok
}

func (r *Ordered[V]) Symbols() []string {
	return append([]string(nil), r.order...)
}

func (r *Ordered[V]) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

func (r *Ordered[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sym := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sym)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.entries[sym])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sym, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Ordered[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("results: expected object, got %v", tok)
	}
	r.order, r.entries = nil, make(map[string]V)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		sym, ok := tok.(string)
		if !ok {
			return fmt.Errorf("results: expected symbol key, got %v", tok)
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("results %s: %w", sym, err)
		}
		r.Set(sym, v)
	}
	_, err = dec.Token()
	return err
}

// PriceResult is one symbol of the raw price dump: quote plus OHLCV, no indicators.
type PriceResult struct {
	Realtime   *models.Snapshot `json:"realtime_data"`
	Historical HistoricalData   `json:"historical_data"`
}
