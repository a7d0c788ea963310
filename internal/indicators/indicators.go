// Package indicators computes moving averages, RSI and Bollinger Bands over a
// close series. Bars inside an indicator's warm-up window carry no value.
package indicators

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/guregu/null/v6"
	"github.com/markcheno/go-talib"

	"github.com/dyike/cortexta/models"
)

// Name identifies an indicator column in results and charts.
type Name string

const (
	SMA5     Name = "SMA5"
	SMA20    Name = "SMA20"
	SMA60    Name = "SMA60"
	SMA120   Name = "SMA120"
	RSI      Name = "RSI"
	BBHigh   Name = "BB_High"
	BBMiddle Name = "BB_Middle"
	BBLow    Name = "BB_Low"
)

const (
	RSIPeriod       = 14
	BollingerPeriod = 20
	BollingerK      = 2.0
)

// Order is the canonical column order.
var Order = []Name{SMA5, SMA20, SMA60, SMA120, RSI, BBHigh, BBMiddle, BBLow}

// Window returns the look-back length of an indicator.
func Window(name Name) int {
	switch name {
	case SMA5:
		return 5
	case SMA20:
		return 20
	case SMA60:
		return 60
	case SMA120:
		return 120
	case RSI:
		return RSIPeriod
	default:
		return BollingerPeriod
	}
}

// Column holds one value per bar.
type Column []null.Float

// ValidCount returns the number of bars past the warm-up window.
func (c Column) ValidCount() int {
	n := 0
	for _, v := range c {
		if v.Valid {
			n++
		}
	}
	return n
}

// Last returns the value at the final bar, invalid for an empty column.
func (c Column) Last() null.Float {
	if len(c) == 0 {
		return null.Float{}
	}
	return c[len(c)-1]
}

// Set is the result of Compute: exactly the requested columns, each as long as the series.
type Set struct {
	n     int
	flags models.IndicatorFlags
	cols  map[Name]Column
}

// Compute evaluates the requested families over closes.
func Compute(closes []float64, flags models.IndicatorFlags) *Set {
	s := &Set{n: len(closes), flags: flags, cols: make(map[Name]Column)}

	for _, sma := range []struct {
		on   bool
		name Name
	}{
		{flags.SMA5, SMA5}, {flags.SMA20, SMA20}, {flags.SMA60, SMA60}, {flags.SMA120, SMA120},
	} {
		if sma.on {
			s.cols[sma.name] = movingAverage(closes, Window(sma.name))
		}
	}
	if flags.RSI {
		s.cols[RSI] = relativeStrength(closes)
	}
	if flags.Bollinger {
		s.cols[BBHigh], s.cols[BBMiddle], s.cols[BBLow] = bollinger(closes)
	}
	return s
}

func (s *Set) Len() int                     { return s.n }
func (s *Set) Flags() models.IndicatorFlags { return s.flags }

func (s *Set) Has(name Name) bool {
	_, ok := s.cols[name]
	return ok
}

// Column returns nil for indicators that were not requested.
func (s *Set) Column(name Name) Column {
	return s.cols[name]
}

// Names lists the present columns in canonical order.
func (s *Set) Names() []Name {
	var names []Name
	for _, n := range Order {
		if s.Has(n) {
			names = append(names, n)
		}
	}
	return names
}

// Latest is the last-bar value of each present indicator, in canonical order.
func (s *Set) Latest() Latest {
	var out Latest
	for _, n := range s.Names() {
		out = append(out, LatestValue{Name: n, Value: s.cols[n].Last()})
	}
	return out
}

type LatestValue struct {
	Name  Name
	Value null.Float
}

type Latest []LatestValue

func (l Latest) Get(name Name) (null.Float, bool) {
	for _, v := range l {
		if v.Name == name {
			return v.Value, true
		}
	}
	return null.Float{}, false
}

// MarshalJSON writes an object whose keys follow the canonical order.
func (l Latest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(string(v.Name))
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(v.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (l *Latest) UnmarshalJSON(data []byte) error {
	var m map[string]null.Float
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*l = (*l)[:0]
	for _, n := range Order {
		if v, ok := m[string(n)]; ok {
			*l = append(*l, LatestValue{Name: n, Value: v})
		}
	}
	return nil
}

// Reference is the latest value of a price-scale indicator (moving averages and
// Bollinger bands), used to screen support/resistance inputs.
type Reference struct {
	Name  Name
	Value float64
}

// References computes every price-scale indicator regardless of what was requested.
func References(closes []float64) []Reference {
	all := Compute(closes, models.IndicatorFlags{SMA5: true, SMA20: true, SMA60: true, SMA120: true, Bollinger: true})
	var refs []Reference
	for _, n := range all.Names() {
		if v := all.cols[n].Last(); v.Valid {
			refs = append(refs, Reference{Name: n, Value: v.Float64})
		}
	}
	return refs
}

func movingAverage(closes []float64, window int) Column {
	col := make(Column, len(closes))
	if len(closes) < window {
		return col
	}
	return mask(col, talib.Sma(closes, window), window-1)
}

func relativeStrength(closes []float64) Column {
	col := make(Column, len(closes))
	if len(closes) <= RSIPeriod {
		return col
	}
	return mask(col, talib.Rsi(closes, RSIPeriod), RSIPeriod)
}

func bollinger(closes []float64) (high, middle, low Column) {
	high, middle, low = make(Column, len(closes)), make(Column, len(closes)), make(Column, len(closes))
	if len(closes) < BollingerPeriod {
		return high, middle, low
	}
	upper, mid, lower := talib.BBands(closes, BollingerPeriod, BollingerK, BollingerK, talib.SMA)
	lookback := BollingerPeriod - 1
	return mask(high, upper, lookback), mask(middle, mid, lookback), mask(low, lower, lookback)
}

// mask copies values from index lookback on; earlier and non-finite cells stay empty.
func mask(col Column, values []float64, lookback int) Column {
	for i := lookback; i < len(values) && i < len(col); i++ {
		if v := values[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			col[i] = null.FloatFrom(v)
		}
	}
	return col
}
