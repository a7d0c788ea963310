package annotation

import (
	"fmt"
	"math"

	"github.com/dyike/cortexta/internal/indicators"
	"github.com/dyike/cortexta/models"
)

type Match string

const (
	// MatchExact: same date and hour, or same date on a daily series.
	MatchExact Match = "exact"
	// MatchNearest: same date, closest hour. Ties go to the earlier bar.
	MatchNearest Match = "nearest"
	// MatchDate: date-only request on an intraday series, first bar of the day.
	MatchDate Match = "date"
	// MatchUnmatched: no bar on that date in the fetched window.
	MatchUnmatched Match = "unmatched"
)

type Resolution struct {
	Requested Timestamp
	Match     Match
	Index     int
	HourDiff  int
}

func (r Resolution) Matched() bool { return r.Match != MatchUnmatched }

// Resolve places each highlight on the series. It never looks outside the
// requested date, so out-of-window requests come back unmatched.
func Resolve(series *models.Series, stamps []Timestamp) []Resolution {
	out := make([]Resolution, 0, len(stamps))
	for _, ts := range stamps {
		out = append(out, resolveOne(series, ts))
	}
	return out
}

func resolveOne(series *models.Series, ts Timestamp) Resolution {
	res := Resolution{Requested: ts, Match: MatchUnmatched, Index: -1}
	candidates := series.IndicesOn(ts.Date)
	if len(candidates) == 0 {
		return res
	}

	if !series.Interval.IsIntraday() {
		res.Match, res.Index = MatchExact, candidates[0]
		return res
	}
	if !ts.HasHour {
		res.Match, res.Index = MatchDate, candidates[0]
		return res
	}

	best, bestDiff := -1, math.MaxInt
	for _, i := range candidates {
		diff := series.Bars[i].Time.Hour() - ts.Hour
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	res.Index, res.HourDiff = best, bestDiff
	if bestDiff == 0 {
		res.Match = MatchExact
	} else {
		res.Match = MatchNearest
	}
	return res
}

// Unmatched turns unmatched resolutions into diagnostics for symbol.
func Unmatched(symbol string, resolutions []Resolution) []models.Diagnostic {
	var diags []models.Diagnostic
	for _, r := range resolutions {
		if r.Matched() {
			continue
		}
		diags = append(diags, models.Diagnostic{
			Kind:    models.DiagUnmatchedTimestamp,
			Symbol:  symbol,
			Input:   r.Requested.Raw,
			Message: fmt.Sprintf("no bar on %s in the fetched window", r.Requested.Date),
		})
	}
	return diags
}

// Guard drops levels that coincide with the latest moving-average or Bollinger
// value of the series, within tolerance. Such values are indicator outputs and
// must not be drawn as support or resistance.
func Guard(symbol string, levels []Level, refs []indicators.Reference, tolerance float64) ([]Level, []models.Diagnostic) {
	var kept []Level
	var diags []models.Diagnostic
	for _, lv := range levels {
		if ref, hit := collides(lv.Price, refs, tolerance); hit {
			diags = append(diags, models.Diagnostic{
				Kind:    models.DiagRejectedLevel,
				Symbol:  symbol,
				Input:   fmt.Sprintf("%g", lv.Price),
				Message: fmt.Sprintf("%s level equals latest %s (%.4f)", lv.Kind, ref.Name, ref.Value),
			})
			continue
		}
		kept = append(kept, lv)
	}
	return kept, diags
}

func collides(price float64, refs []indicators.Reference, tolerance float64) (indicators.Reference, bool) {
	const epsilon = 1e-9
	for _, ref := range refs {
		if math.Abs(price-ref.Value) <= tolerance+epsilon*math.Abs(ref.Value) {
			return ref, true
		}
	}
	return indicators.Reference{}, false
}
