package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/dyike/cortexta/internal/analysis"
)

// runInteractiveMode asks for symbols, preset, indicators and annotations,
// runs the analysis and repeats until the user stops.
func runInteractiveMode(ctx context.Context, a *app, out io.Writer) error {
	fmt.Fprintln(out, titleStyle.Render("cortexta  interactive analysis"))

	preset := a.cfg.Preset
	for {
		req, err := askRequest(preset)
		if errors.Is(err, terminal.InterruptErr) {
			return nil
		}
		if err != nil {
			return err
		}
		preset = req.Preset

		report, err := a.analyzer.Run(ctx, req)
		if err != nil {
			fmt.Fprintln(out, warnStyle.Render("analysis failed: "+err.Error()))
		} else {
			renderReport(out, report)
		}

		again, err := PromptForAnother()
		if err != nil || !again {
			return nil
		}
	}
}

func askRequest(defaultPreset string) (analysis.Request, error) {
	symbols, err := PromptForSymbols()
	if err != nil {
		return analysis.Request{}, err
	}
	preset, err := PromptForPreset(defaultPreset)
	if err != nil {
		return analysis.Request{}, err
	}
	flags, err := PromptForIndicators(preset.Flags)
	if err != nil {
		return analysis.Request{}, err
	}
	supports, resistances, highlights, err := PromptForAnnotations()
	if err != nil {
		return analysis.Request{}, err
	}
	return analysis.Request{
		Symbols:     symbols,
		Supports:    supports,
		Resistances: resistances,
		Highlights:  highlights,
		Flags:       flags,
		Preset:      preset.Name,
	}, nil
}
