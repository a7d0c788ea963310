package analysis

import (
	"fmt"
	"strings"

	"github.com/dyike/cortexta/models"
	"github.com/dyike/cortexta/pkg/dataflows"
)

// Preset bundles a fetch window with the indicators usually shown with it.
type Preset struct {
	Name   string
	Window models.Window
	// KoreanWindow replaces Window for .KS/.KQ listings when set.
	KoreanWindow *models.Window
	Flags        models.IndicatorFlags
}

func (p Preset) WindowFor(symbol string) models.Window {
	if p.KoreanWindow != nil && dataflows.IsKoreanSymbol(symbol) {
		return *p.KoreanWindow
	}
	return p.Window
}

var presets = map[string]Preset{
	"short": {
		Name:   "short",
		Window: models.Window{Interval: models.IntervalHourly, LookbackDays: 15},
		Flags:  models.IndicatorFlags{SMA5: true, SMA20: true, SMA60: true},
	},
	"swing": {
		Name:         "swing",
		Window:       models.Window{Interval: models.IntervalHourly, LookbackDays: 20},
		KoreanWindow: &models.Window{Interval: models.IntervalHourly, LookbackDays: 10},
		Flags:        models.IndicatorFlags{SMA20: true, SMA60: true, SMA120: true},
	},
	"daily": {
		Name:   "daily",
		Window: models.Window{Interval: models.IntervalDaily, LookbackDays: 250},
		Flags:  models.IndicatorFlags{SMA20: true, SMA60: true, SMA120: true, RSI: true, Bollinger: true},
	},
}

// LookupPreset returns the named preset; an empty name means "short".
func LookupPreset(name string) (Preset, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "short"
	}
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q (short, swing, daily)", name)
	}
	return p, nil
}

func PresetNames() []string {
	return []string{"short", "swing", "daily"}
}
