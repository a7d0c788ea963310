package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/cortexta/internal/analysis"
	"github.com/dyike/cortexta/internal/annotation"
	"github.com/dyike/cortexta/models"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-^=]+$`)

// validateSymbols accepts a comma separated ticker list.
func validateSymbols(val interface{}) error {
	str, _ := val.(string)
	var n int
	for _, part := range strings.Split(str, ",") {
		sym := strings.TrimSpace(strings.ToUpper(part))
		if sym == "" {
			continue
		}
		if len(sym) > 15 {
			return fmt.Errorf("ticker %s is too long (max 15 characters)", sym)
		}
		if !symbolPattern.MatchString(sym) {
			return fmt.Errorf("invalid ticker %s (use letters, numbers, dots and hyphens)", sym)
		}
		n++
	}
	if n == 0 {
		return fmt.Errorf("enter at least one ticker symbol")
	}
	return nil
}

// validateLevels rejects input that would only produce diagnostics.
func validateLevels(val interface{}) error {
	str, _ := val.(string)
	if strings.TrimSpace(str) == "" {
		return nil
	}
	if _, diags := annotation.ParseLevels(str, annotation.Support); len(diags) > 0 {
		return fmt.Errorf("%s", diags[0].Message)
	}
	return nil
}

// PromptForSymbols prompts for one or more ticker symbols
func PromptForSymbols() (string, error) {
	var symbols string
	prompt := &survey.Input{
		Message: "Enter ticker symbols (e.g., AAPL, MSFT, 005930.KS):",
		Help:    "Comma separated. Korean listings use the .KS or .KQ suffix.",
	}
	if err := survey.AskOne(prompt, &symbols, survey.WithValidator(validateSymbols)); err != nil {
		return "", err
	}
	return strings.ToUpper(strings.TrimSpace(symbols)), nil
}

// PromptForPreset prompts for the lookback preset
func PromptForPreset(current string) (analysis.Preset, error) {
	var name string
	prompt := &survey.Select{
		Message: "Select a lookback preset:",
		Options: analysis.PresetNames(),
		Default: current,
		Description: func(value string, _ int) string {
			p, err := analysis.LookupPreset(value)
			if err != nil {
				return ""
			}
			return fmt.Sprintf("%s bars, %d days", p.Window.Interval, p.Window.LookbackDays)
		},
	}
	if err := survey.AskOne(prompt, &name); err != nil {
		return analysis.Preset{}, err
	}
	return analysis.LookupPreset(name)
}

var indicatorOptions = []string{"SMA5", "SMA20", "SMA60", "SMA120", "RSI", "Bollinger Bands"}

func flagsToOptions(f models.IndicatorFlags) []string {
	on := []bool{f.SMA5, f.SMA20, f.SMA60, f.SMA120, f.RSI, f.Bollinger}
	var out []string
	for i, v := range on {
		if v {
			out = append(out, indicatorOptions[i])
		}
	}
	return out
}

func optionsToFlags(selected []string) models.IndicatorFlags {
	var f models.IndicatorFlags
	for _, s := range selected {
		switch s {
		case "SMA5":
			f.SMA5 = true
		case "SMA20":
			f.SMA20 = true
		case "SMA60":
			f.SMA60 = true
		case "SMA120":
			f.SMA120 = true
		case "RSI":
			f.RSI = true
		case "Bollinger Bands":
			f.Bollinger = true
		}
	}
	return f
}

// PromptForIndicators prompts for the indicator families, preselecting defaults
func PromptForIndicators(defaults models.IndicatorFlags) (models.IndicatorFlags, error) {
	var selected []string
	prompt := &survey.MultiSelect{
		Message: "Select indicators:",
		Options: indicatorOptions,
		Default: flagsToOptions(defaults),
		Help:    "Use space to select, enter to confirm. An empty selection draws price and volume only.",
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return models.IndicatorFlags{}, err
	}
	return optionsToFlags(selected), nil
}

// PromptForAnnotations asks for optional support, resistance and highlight input
func PromptForAnnotations() (supports, resistances, highlights string, err error) {
	questions := []*survey.Question{
		{
			Name:     "supports",
			Prompt:   &survey.Input{Message: "Support levels (optional):", Help: "Comma separated prices, e.g. 150, 145.5"},
			Validate: validateLevels,
		},
		{
			Name:     "resistances",
			Prompt:   &survey.Input{Message: "Resistance levels (optional):", Help: "Comma separated prices"},
			Validate: validateLevels,
		},
		{
			Name:   "highlights",
			Prompt: &survey.Input{Message: "Timestamps to highlight (optional):", Help: "YYYY-MM-DD HH:MM:SS or YYYY-MM-DD, comma separated"},
		},
	}
	answers := struct {
		Supports    string `survey:"supports"`
		Resistances string `survey:"resistances"`
		Highlights  string `survey:"highlights"`
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return "", "", "", err
	}
	return answers.Supports, answers.Resistances, answers.Highlights, nil
}

// PromptForAnother asks whether to run another analysis
func PromptForAnother() (bool, error) {
	again := false
	prompt := &survey.Confirm{
		Message: "Analyze more symbols?",
		Default: true,
	}
	if err := survey.AskOne(prompt, &again); err != nil {
		return false, err
	}
	return again, nil
}
