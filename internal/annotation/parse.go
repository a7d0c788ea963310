// Package annotation turns raw support/resistance and highlight strings into
// typed values and places highlights on a fetched series.
package annotation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dyike/cortexta/models"
)

type LevelKind string

const (
	Support    LevelKind = "support"
	Resistance LevelKind = "resistance"
)

// Level is a user-declared horizontal price line.
type Level struct {
	Price float64
	Kind  LevelKind
}

// Timestamp is a highlight request at date or date+hour granularity.
// Minutes and seconds are accepted on input but not used for matching.
type Timestamp struct {
	Raw     string
	Date    string
	Hour    int
	HasHour bool
}

func (ts Timestamp) String() string {
	if ts.HasHour {
		return fmt.Sprintf("%s %02d", ts.Date, ts.Hour)
	}
	return ts.Date
}

var timestampLayouts = []struct {
	layout  string
	hasHour bool
}{
	{"2006-01-02 15:04:05", true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02 15:04", true},
	{"2006-01-02 15", true},
	{"2006-01-02", false},
}

// Input is the parsed form of the three annotation strings.
type Input struct {
	Supports    []Level
	Resistances []Level
	Highlights  []Timestamp
	Diagnostics []models.Diagnostic
}

// Parse parses all annotation strings at once. Malformed items are dropped and reported.
func Parse(supports, resistances, highlights string) Input {
	var in Input
	var d []models.Diagnostic
	in.Supports, d = ParseLevels(supports, Support)
	in.Diagnostics = append(in.Diagnostics, d...)
	in.Resistances, d = ParseLevels(resistances, Resistance)
	in.Diagnostics = append(in.Diagnostics, d...)
	in.Highlights, d = ParseTimestamps(highlights)
	in.Diagnostics = append(in.Diagnostics, d...)
	return in
}

// Levels returns supports followed by resistances.
func (in Input) Levels() []Level {
	out := make([]Level, 0, len(in.Supports)+len(in.Resistances))
	out = append(out, in.Supports...)
	return append(out, in.Resistances...)
}

// ParseLevels reads a comma separated list of positive prices, keeping input order.
func ParseLevels(raw string, kind LevelKind) ([]Level, []models.Diagnostic) {
	var levels []Level
	var diags []models.Diagnostic
	seen := make(map[float64]bool)
	for _, part := range splitList(raw) {
		v, err := strconv.ParseFloat(part, 64)
		switch {
		case err != nil:
			diags = append(diags, models.Diagnostic{Kind: models.DiagMalformedLevel, Input: part,
				Message: fmt.Sprintf("%s level is not a number", kind)})
			continue
		case math.IsNaN(v) || math.IsInf(v, 0) || v <= 0:
			diags = append(diags, models.Diagnostic{Kind: models.DiagMalformedLevel, Input: part,
				Message: fmt.Sprintf("%s level must be a positive finite price", kind)})
			continue
		case seen[v]:
			diags = append(diags, models.Diagnostic{Kind: models.DiagDuplicateLevel, Input: part,
				Message: fmt.Sprintf("%s level listed more than once", kind)})
			continue
		}
		seen[v] = true
		levels = append(levels, Level{Price: v, Kind: kind})
	}
	return levels, diags
}

// ParseTimestamps reads YYYY-MM-DD or YYYY-MM-DD HH[:MM[:SS]] entries.
func ParseTimestamps(raw string) ([]Timestamp, []models.Diagnostic) {
	var out []Timestamp
	var diags []models.Diagnostic
	for _, part := range splitList(raw) {
		ts, ok := parseTimestamp(part)
		if !ok {
			diags = append(diags, models.Diagnostic{Kind: models.DiagMalformedTimestamp, Input: part,
				Message: "expected YYYY-MM-DD or YYYY-MM-DD HH"})
			continue
		}
		out = append(out, ts)
	}
	return out, diags
}

func parseTimestamp(s string) (Timestamp, bool) {
	for _, l := range timestampLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		ts := Timestamp{Raw: s, Date: t.Format(models.DateLayout), HasHour: l.hasHour}
		if l.hasHour {
			ts.Hour = t.Hour()
		}
		return ts, true
	}
	return Timestamp{}, false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
