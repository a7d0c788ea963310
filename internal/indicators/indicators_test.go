package indicators

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/dyike/cortexta/models"
)

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 10*math.Sin(float64(i)/3) + float64(i%7)
	}
	return out
}

func TestLeadingBarsHaveNoValue(t *testing.T) {
	set := Compute(ramp(250), models.AllIndicators())
	for _, name := range Order {
		col := set.Column(name)
		if len(col) != 250 {
			t.Fatalf("%s has %d values", name, len(col))
		}
		lead := Window(name) - 1
		if name == RSI {
			lead = RSIPeriod
		}
		for i := 0; i < lead; i++ {
			if col[i].Valid {
				t.Fatalf("%s bar %d should have no value", name, i)
			}
		}
		if !col[lead].Valid {
			t.Fatalf("%s bar %d should be defined", name, lead)
		}
		if got := col.ValidCount(); got != 250-lead {
			t.Fatalf("%s valid count = %d, want %d", name, got, 250-lead)
		}
	}
}

func TestSMAIsTrailingMean(t *testing.T) {
	closes := ramp(250)
	col := Compute(closes, models.IndicatorFlags{SMA20: true}).Column(SMA20)
	if got := col[19].Float64; math.Abs(got-10.5) > 1e-9 {
		t.Fatalf("SMA20 at bar 20 = %v, want 10.5", got)
	}
	for i := 19; i < len(closes); i++ {
		sum := 0.0
		for _, c := range closes[i-19 : i+1] {
			sum += c
		}
		if math.Abs(col[i].Float64-sum/20) > 1e-9 {
			t.Fatalf("SMA20 at %d = %v, want %v", i, col[i].Float64, sum/20)
		}
	}
}

func TestBollingerSymmetricAroundSMA20(t *testing.T) {
	closes := wave(120)
	set := Compute(closes, models.IndicatorFlags{SMA20: true, Bollinger: true})
	hi, mid, lo, sma := set.Column(BBHigh), set.Column(BBMiddle), set.Column(BBLow), set.Column(SMA20)
	for i := range closes {
		if !mid[i].Valid {
			continue
		}
		if math.Abs((hi[i].Float64-mid[i].Float64)-(mid[i].Float64-lo[i].Float64)) > 1e-9 {
			t.Fatalf("bands not symmetric at %d", i)
		}
		if math.Abs(mid[i].Float64-sma[i].Float64) > 1e-9 {
			t.Fatalf("middle band differs from SMA20 at %d", i)
		}
	}

	// population standard deviation of the last 20 closes
	window := closes[len(closes)-20:]
	mean := 0.0
	for _, c := range window {
		mean += c / 20
	}
	variance := 0.0
	for _, c := range window {
		variance += (c - mean) * (c - mean) / 20
	}
	want := mean + 2*math.Sqrt(variance)
	if got := hi[len(hi)-1].Float64; math.Abs(got-want) > 1e-6 {
		t.Fatalf("upper band = %v, want %v", got, want)
	}
}

func TestRSIBoundsAndTrend(t *testing.T) {
	col := Compute(wave(100), models.IndicatorFlags{RSI: true}).Column(RSI)
	for i, v := range col {
		if v.Valid && (v.Float64 < 0 || v.Float64 > 100) {
			t.Fatalf("RSI out of range at %d: %v", i, v.Float64)
		}
	}
	rising := Compute(ramp(40), models.IndicatorFlags{RSI: true}).Column(RSI)
	if got := rising.Last().Float64; math.Abs(got-100) > 1e-9 {
		t.Fatalf("RSI of a strictly rising series = %v, want 100", got)
	}
}

func TestShortSeriesHasNoValues(t *testing.T) {
	set := Compute(ramp(10), models.AllIndicators())
	for _, name := range []Name{SMA20, SMA60, SMA120, RSI, BBHigh, BBMiddle, BBLow} {
		if n := set.Column(name).ValidCount(); n != 0 {
			t.Fatalf("%s should be empty on 10 bars, has %d values", name, n)
		}
	}
	if n := set.Column(SMA5).ValidCount(); n != 6 {
		t.Fatalf("SMA5 valid count = %d", n)
	}
}

func TestUnrequestedIndicatorsAbsent(t *testing.T) {
	set := Compute(ramp(80), models.IndicatorFlags{SMA5: true, SMA60: true})
	if set.Has(RSI) || set.Has(BBHigh) || set.Has(SMA20) {
		t.Fatalf("unexpected columns: %v", set.Names())
	}

	data, err := json.Marshal(set.Latest())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"SMA5":78,"SMA60":50.5}` {
		t.Fatalf("latest = %s", data)
	}
}

func TestLatestUndefinedIsNull(t *testing.T) {
	data, err := json.Marshal(Compute(ramp(30), models.IndicatorFlags{SMA5: true, SMA60: true}).Latest())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"SMA60":null`) {
		t.Fatalf("undefined latest value should be null: %s", data)
	}

	var back Latest
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if v, ok := back.Get(SMA60); !ok || v.Valid {
		t.Fatalf("round trip lost the null: %+v", back)
	}
}

func TestReferencesCoverPriceIndicators(t *testing.T) {
	refs := References(ramp(130))
	names := make(map[Name]float64)
	for _, r := range refs {
		names[r.Name] = r.Value
	}
	if _, ok := names[RSI]; ok {
		t.Fatal("RSI is not a price level")
	}
	if math.Abs(names[SMA5]-128) > 1e-9 || len(refs) != 7 {
		t.Fatalf("references = %+v", refs)
	}
}
