package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/cortexta/internal/analysis"
	"github.com/dyike/cortexta/internal/storage"
	"github.com/dyike/cortexta/models"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	warnPanelStyle = panelStyle.
			BorderForeground(lipgloss.Color("#F59E0B"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(12)

	symbolStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	upStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981"))

	downStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

// renderReport prints one panel per analysed symbol, then the skipped ones.
func renderReport(w io.Writer, report *analysis.Report) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Technical analysis  %s", report.RunID)))

	if report.Empty() {
		fmt.Fprintln(w, warnStyle.Render("No symbol could be analysed; nothing was written."))
	}

	for _, sym := range report.Results.Symbols() {
		res, _ := report.Results.Get(sym)
		var b strings.Builder
		b.WriteString(symbolStyle.Render(sym))
		if res.Realtime != nil && res.Realtime.CompanyName.Valid {
			b.WriteString(" " + mutedStyle.Render(res.Realtime.CompanyName.String))
		}
		b.WriteString("\n")
		b.WriteString(row("price", formatQuote(res.Realtime)))
		b.WriteString(row("bars", fmt.Sprintf("%d", res.Historical.Len())))
		if len(res.PlottedOverlays) > 0 {
			b.WriteString(row("overlays", strings.Join(res.PlottedOverlays, ", ")))
		}
		if len(res.SupportLevels)+len(res.ResistanceLevels) > 0 {
			b.WriteString(row("levels", fmt.Sprintf("S %s  R %s", joinFloats(res.SupportLevels), joinFloats(res.ResistanceLevels))))
		}
		if len(res.RejectedLevels) > 0 {
			b.WriteString(row("rejected", warnStyle.Render(joinFloats(res.RejectedLevels))))
		}
		if res.PlotFile.Valid {
			b.WriteString(row("chart", res.PlotFile.String))
		}
		if n := len(res.Diagnostics); n > 0 {
			b.WriteString(row("notes", warnStyle.Render(fmt.Sprintf("%d diagnostics", n))))
		}
		fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
	}

	if len(report.Skipped) > 0 {
		var b strings.Builder
		b.WriteString(warnStyle.Render("Skipped") + "\n")
		for _, s := range report.Skipped {
			b.WriteString(row(s.Symbol, s.Reason))
		}
		fmt.Fprintln(w, warnPanelStyle.Render(strings.TrimRight(b.String(), "\n")))
	}

	if report.OutputFile != "" {
		fmt.Fprintln(w, successStyle.Render("Results written to "+report.OutputFile))
	}
}

func renderPrices(w io.Writer, report *analysis.PriceReport) {
	for _, sym := range report.Results.Symbols() {
		res, _ := report.Results.Get(sym)
		n := res.Historical.Len()
		span := ""
		if n > 0 {
			span = fmt.Sprintf("%s .. %s", res.Historical.Date[0], res.Historical.Date[n-1])
		}
		fmt.Fprintf(w, "%s  %s  %d bars  %s\n", symbolStyle.Render(sym), formatQuote(res.Realtime), n, mutedStyle.Render(span))
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(w, "%s  %s\n", warnStyle.Render(s.Symbol), s.Reason)
	}
	if report.OutputFile != "" {
		fmt.Fprintln(w, successStyle.Render("Prices written to "+report.OutputFile))
	}
}

func renderRuns(w io.Writer, runs []storage.RunWithMeta) {
	if len(runs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No runs recorded yet."))
		return
	}
	for _, r := range runs {
		status := successStyle.Render(r.Status)
		if r.Status != storage.StatusDone {
			status = warnStyle.Render(r.Status)
		}
		fmt.Fprintf(w, "%-5d %s  %s  %-6s %s %3dd  %s\n",
			r.RowID,
			r.StartedAt.Local().Format(models.DateTimeLayout),
			r.ID[:min(8, len(r.ID))],
			status,
			r.Interval,
			r.LookbackDays,
			r.Symbols,
		)
	}
}

func renderRunSymbols(w io.Writer, runID string, symbols []storage.SymbolRecord) {
	fmt.Fprintln(w, titleStyle.Render("Run "+runID))
	for _, s := range symbols {
		switch s.Status {
		case storage.SymbolOK:
			fmt.Fprintf(w, "%s  %d bars  close %s  %s\n",
				symbolStyle.Render(s.Symbol), s.Bars, formatNullFloat(s.LastClose.Valid, s.LastClose.Float64), s.PlotFile.String)
		default:
			fmt.Fprintf(w, "%s  %s\n", warnStyle.Render(s.Symbol), s.Reason)
		}
	}
}

func renderSettings(w io.Writer, settings map[string]any) {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(lipgloss.NewStyle().Width(24).Render(k))
		b.WriteString(fmt.Sprintf("%v\n", settings[k]))
	}
	fmt.Fprintln(w, titleStyle.Render("cortexta configuration"))
	fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func row(label, value string) string {
	return labelStyle.Render(label) + value + "\n"
}

func formatQuote(s *models.Snapshot) string {
	if s == nil || !s.CurrentPrice.Valid {
		return mutedStyle.Render("n/a")
	}
	price := fmt.Sprintf("%.2f", s.CurrentPrice.Float64)
	if !s.ChangePercent.Valid {
		return price
	}
	change := fmt.Sprintf("%+.2f%%", s.ChangePercent.Float64)
	if s.ChangePercent.Float64 < 0 {
		return price + " " + downStyle.Render(change)
	}
	return price + " " + upStyle.Render(change)
}

func formatNullFloat(valid bool, v float64) string {
	if !valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func joinFloats(values []float64) string {
	if len(values) == 0 {
		return "-"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, ", ")
}
