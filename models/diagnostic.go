package models

type DiagnosticKind string

const (
	DiagMalformedLevel     DiagnosticKind = "malformed_level"
	DiagDuplicateLevel     DiagnosticKind = "duplicate_level"
	DiagRejectedLevel      DiagnosticKind = "rejected_level"
	DiagMalformedTimestamp DiagnosticKind = "malformed_timestamp"
	DiagUnmatchedTimestamp DiagnosticKind = "unmatched_timestamp"
	DiagDuplicateSymbol    DiagnosticKind = "duplicate_symbol"
	DiagInvalidSymbol      DiagnosticKind = "invalid_symbol"
	DiagOverlayOmitted     DiagnosticKind = "overlay_omitted"
	DiagChartFailed        DiagnosticKind = "chart_failed"
	DiagExportFailed       DiagnosticKind = "export_failed"
	DiagHistoryFailed      DiagnosticKind = "history_failed"
)

// Diagnostic describes one input item or step that was skipped without failing the batch.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Symbol  string         `json:"symbol,omitempty"`
	Input   string         `json:"input,omitempty"`
	Message string         `json:"message"`
}
