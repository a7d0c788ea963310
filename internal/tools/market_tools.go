package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/cortexta/internal/analysis"
	"github.com/dyike/cortexta/internal/output"
	"github.com/dyike/cortexta/models"
)

const (
	AnalysisToolName = "stock_analysis_tool"
	PriceToolName    = "stock_price_tool"
)

// ListArg accepts either a comma separated string or a JSON array of strings
// and numbers, and keeps the comma separated form.
type ListArg string

func (l *ListArg) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*l = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = ListArg(s)
	case data[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				parts = append(parts, s)
				continue
			}
			parts = append(parts, string(bytes.TrimSpace(item)))
		}
		*l = ListArg(strings.Join(parts, ","))
	default:
		*l = ListArg(data)
	}
	return nil
}

// AnalysisInput mirrors the stock_analysis_tool parameters. A missing show_*
// switch means the indicator is not computed. support_level, resistance_level
// and show_bollinger are accepted as older spellings of the same parameters.
type AnalysisInput struct {
	Tickers             ListArg `json:"tickers"`
	SupportLevels       ListArg `json:"support_levels"`
	ResistanceLevels    ListArg `json:"resistance_levels"`
	HighlightTimestamps ListArg `json:"highlight_timestamps"`
	ShowSMA5            bool    `json:"show_sma5"`
	ShowSMA20           bool    `json:"show_sma20"`
	ShowSMA60           bool    `json:"show_sma60"`
	ShowSMA120          bool    `json:"show_sma120"`
	ShowRSI             bool    `json:"show_rsi"`
	ShowBollinger       bool    `json:"show_bollinger_bands"`
	Interval            string  `json:"interval"`
	LookbackDays        int     `json:"lookback_days"`
	Preset              string  `json:"preset"`

	SupportLevel       ListArg `json:"support_level"`
	ResistanceLevel    ListArg `json:"resistance_level"`
	ShowBollingerShort bool    `json:"show_bollinger"`
}

func (in AnalysisInput) Flags() models.IndicatorFlags {
	return models.IndicatorFlags{
		SMA5:      in.ShowSMA5,
		SMA20:     in.ShowSMA20,
		SMA60:     in.ShowSMA60,
		SMA120:    in.ShowSMA120,
		RSI:       in.ShowRSI,
		Bollinger: in.ShowBollinger || in.ShowBollingerShort,
	}
}

func joinLists(lists ...ListArg) string {
	parts := make([]string, 0, len(lists))
	for _, l := range lists {
		if s := strings.TrimSpace(string(l)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}

// Request converts the tool arguments into an analysis request.
func (in AnalysisInput) Request() (analysis.Request, error) {
	window, err := parseWindow(in.Interval, in.LookbackDays)
	if err != nil {
		return analysis.Request{}, err
	}
	return analysis.Request{
		Symbols:     string(in.Tickers),
		Supports:    joinLists(in.SupportLevels, in.SupportLevel),
		Resistances: joinLists(in.ResistanceLevels, in.ResistanceLevel),
		Highlights:  string(in.HighlightTimestamps),
		Flags:       in.Flags(),
		Preset:      in.Preset,
		Window:      window,
	}, nil
}

type PriceInput struct {
	Tickers      ListArg `json:"tickers"`
	Interval     string  `json:"interval"`
	LookbackDays int     `json:"lookback_days"`
}

func parseWindow(interval string, lookback int) (models.Window, error) {
	var w models.Window
	if strings.TrimSpace(interval) != "" {
		iv, err := models.ParseInterval(interval)
		if err != nil {
			return w, err
		}
		w.Interval = iv
	}
	if lookback < 0 {
		return w, fmt.Errorf("lookback_days must be positive, got %d", lookback)
	}
	w.LookbackDays = lookback
	return w, nil
}

var analysisParams = map[string]*schema.ParameterInfo{
	"tickers": {
		Type:     "string",
		Desc:     "Comma separated stock symbols, e.g. AAPL,MSFT,005930.KS",
		Required: true,
	},
	"support_levels": {
		Type: "string",
		Desc: "Comma separated support prices drawn as solid blue lines",
	},
	"resistance_levels": {
		Type: "string",
		Desc: "Comma separated resistance prices drawn as solid red lines",
	},
	"highlight_timestamps": {
		Type: "string",
		Desc: "Comma separated timestamps to mark, YYYY-MM-DD HH (nearest hourly bar), YYYY-MM-DD HH:MM, YYYY-MM-DD HH:MM:SS or YYYY-MM-DD",
	},
	"show_sma5":            {Type: "boolean", Desc: "Include SMA5 (default: false)"},
	"show_sma20":           {Type: "boolean", Desc: "Include SMA20 (default: false)"},
	"show_sma60":           {Type: "boolean", Desc: "Include SMA60 (default: false)"},
	"show_sma120":          {Type: "boolean", Desc: "Include SMA120 (default: false)"},
	"show_rsi":             {Type: "boolean", Desc: "Include RSI(14) and its panel (default: false)"},
	"show_bollinger_bands": {Type: "boolean", Desc: "Include Bollinger Bands 20/2 (default: false)"},
	"interval": {
		Type: "string",
		Desc: "Bar interval: 1h or 1d (default from preset)",
	},
	"lookback_days": {
		Type: "integer",
		Desc: "Calendar days of history to load (default from preset)",
	},
	"preset": {
		Type: "string",
		Desc: "Lookback preset: short, swing or daily",
	},
}

var priceParams = map[string]*schema.ParameterInfo{
	"tickers": {
		Type:     "string",
		Desc:     "Comma separated stock symbols",
		Required: true,
	},
	"interval":      {Type: "string", Desc: "Bar interval: 1h or 1d (default: 1d)"},
	"lookback_days": {Type: "integer", Desc: "Calendar days of history (default: 200)"},
}

type analysisTool struct {
	analyzer *analysis.Analyzer
}

// NewStockAnalysisTool exposes Analyzer.Run as an invokable tool. The result
// string is the same JSON document written to the results file.
func NewStockAnalysisTool(a *analysis.Analyzer) tool.InvokableTool {
	return &analysisTool{analyzer: a}
}

func (t *analysisTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        AnalysisToolName,
		Desc:        "Technical analysis for one or more stocks: price history, SMA, RSI and Bollinger Bands, support/resistance levels and a chart image per symbol",
		ParamsOneOf: schema.NewParamsOneOfByParams(analysisParams),
	}, nil
}

func (t *analysisTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in AnalysisInput
	if err := decodeArgs(argumentsInJSON, &in); err != nil {
		return string(output.ErrorPayload(err)), nil
	}
	req, err := in.Request()
	if err != nil {
		return string(output.ErrorPayload(err)), nil
	}
	report, err := t.analyzer.Run(ctx, req)
	return payloadOf(report.Payload, err), nil
}

type priceTool struct {
	analyzer *analysis.Analyzer
}

// NewStockPriceTool exposes Analyzer.Prices as an invokable tool.
func NewStockPriceTool(a *analysis.Analyzer) tool.InvokableTool {
	return &priceTool{analyzer: a}
}

func (t *priceTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        PriceToolName,
		Desc:        "Realtime quote and raw OHLCV history for one or more stocks, without indicators or charts",
		ParamsOneOf: schema.NewParamsOneOfByParams(priceParams),
	}, nil
}

func (t *priceTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in PriceInput
	if err := decodeArgs(argumentsInJSON, &in); err != nil {
		return string(output.ErrorPayload(err)), nil
	}
	window, err := parseWindow(in.Interval, in.LookbackDays)
	if err != nil {
		return string(output.ErrorPayload(err)), nil
	}
	report, err := t.analyzer.Prices(ctx, analysis.PriceRequest{Symbols: string(in.Tickers), Window: window})
	return payloadOf(report.Payload, err), nil
}

// Tools returns every tool backed by a.
func Tools(a *analysis.Analyzer) []tool.BaseTool {
	return []tool.BaseTool{NewStockAnalysisTool(a), NewStockPriceTool(a)}
}

func decodeArgs(args string, v any) error {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// payloadOf turns a run outcome into the string handed back to the caller. An
// empty symbol list is not an error for a tool call; it yields {}.
func payloadOf(payload []byte, err error) string {
	switch {
	case err == nil, errors.Is(err, analysis.ErrNoSymbols):
		if len(payload) == 0 {
			return string(output.EmptyPayload)
		}
		return string(payload)
	case errors.Is(err, output.ErrSerialization) && len(payload) > 0:
		return string(payload)
	default:
		return string(output.ErrorPayload(err))
	}
}
