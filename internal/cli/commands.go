package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/spf13/cobra"

	"github.com/dyike/cortexta/internal/analysis"
	"github.com/dyike/cortexta/internal/tools"
	"github.com/dyike/cortexta/models"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cortexta",
		Short: "cortexta - technical analysis charts and data for stocks",
		Long: `cortexta loads price history for one or more tickers, computes moving averages,
RSI and Bollinger Bands, draws an annotated chart per symbol and writes the
results as JSON for downstream tools.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				a.configPath = path
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: start interactive mode
			if err := a.setup(); err != nil {
				return err
			}
			return runInteractiveMode(cmd.Context(), a, cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(newAnalyzeCmd(a))
	rootCmd.AddCommand(newToolCmd(a))
	rootCmd.AddCommand(newPriceCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().String("config", "", "Configuration file path")

	return rootCmd
}

type analyzeFlags struct {
	support, resistance, highlight string
	sma5, sma20, sma60, sma120     bool
	rsi, bollinger                 bool
	interval                       string
	lookback                       int
	preset                         string
	outputDir                      string
	naming                         string
	exports                        []string
	noChart                        bool
	quiet                          bool
	json                           bool
}

var indicatorFlagNames = []string{"sma5", "sma20", "sma60", "sma120", "rsi", "bollinger"}

// newAnalyzeCmd creates the analyze command
func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze SYMBOL[,SYMBOL...]",
		Short: "Analyze one or more stock symbols",
		Long: `Analyze stock symbols and write stock_technical_analysis.json plus one chart per symbol.
Example: cortexta analyze AAPL,MSFT --support 150 --resistance 190 --preset daily`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			req, err := f.request(cmd, a.cfg.Preset, args)
			if err != nil {
				return err
			}
			report, err := a.analyzer.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.json {
				fmt.Fprintln(out, string(report.Payload))
			}
			if !f.quiet {
				renderReport(out, report)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.support, "support", "", "Comma separated support levels")
	cmd.Flags().StringVar(&f.resistance, "resistance", "", "Comma separated resistance levels")
	cmd.Flags().StringVar(&f.highlight, "highlight", "", "Comma separated timestamps to mark (YYYY-MM-DD[ HH:MM:SS])")
	cmd.Flags().BoolVar(&f.sma5, "sma5", false, "Show SMA5")
	cmd.Flags().BoolVar(&f.sma20, "sma20", false, "Show SMA20")
	cmd.Flags().BoolVar(&f.sma60, "sma60", false, "Show SMA60")
	cmd.Flags().BoolVar(&f.sma120, "sma120", false, "Show SMA120")
	cmd.Flags().BoolVar(&f.rsi, "rsi", false, "Show RSI(14)")
	cmd.Flags().BoolVar(&f.bollinger, "bollinger", false, "Show Bollinger Bands (20, 2)")
	cmd.Flags().StringVar(&f.interval, "interval", "", "Bar interval: 1h or 1d (preset default)")
	cmd.Flags().IntVar(&f.lookback, "lookback", 0, "Lookback in calendar days (preset default)")
	cmd.Flags().StringVar(&f.preset, "preset", "", "Window preset: "+strings.Join(analysis.PresetNames(), ", "))
	cmd.Flags().StringVar(&f.outputDir, "output-dir", "", "Directory for the JSON file and charts")
	cmd.Flags().StringVar(&f.naming, "naming", "", "Chart file naming: symbol or indexed")
	cmd.Flags().StringSliceVar(&f.exports, "export", nil, "Also save history as csv and/or parquet")
	cmd.Flags().BoolVar(&f.noChart, "no-chart", false, "Skip chart rendering")
	cmd.Flags().BoolVar(&f.quiet, "quiet", false, "Do not print the summary")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print the JSON payload")

	return cmd
}

// request builds the analysis request. Without any indicator flag the preset's
// indicators are used.
func (f *analyzeFlags) request(cmd *cobra.Command, defaultPreset string, args []string) (analysis.Request, error) {
	presetName := f.preset
	if presetName == "" {
		presetName = defaultPreset
	}
	preset, err := analysis.LookupPreset(presetName)
	if err != nil {
		return analysis.Request{}, err
	}

	flags := preset.Flags
	for _, name := range indicatorFlagNames {
		if cmd.Flags().Changed(name) {
			flags = models.IndicatorFlags{
				SMA5: f.sma5, SMA20: f.sma20, SMA60: f.sma60, SMA120: f.sma120,
				RSI: f.rsi, Bollinger: f.bollinger,
			}
			break
		}
	}

	var window models.Window
	if f.interval != "" {
		iv, err := models.ParseInterval(f.interval)
		if err != nil {
			return analysis.Request{}, err
		}
		window.Interval = iv
	}
	window.LookbackDays = f.lookback

	req := analysis.Request{
		Symbols:     strings.Join(args, ","),
		Supports:    f.support,
		Resistances: f.resistance,
		Highlights:  f.highlight,
		Flags:       flags,
		Preset:      preset.Name,
		Window:      window,
		OutputDir:   f.outputDir,
		Naming:      f.naming,
		SkipChart:   f.noChart,
	}
	if cmd.Flags().Changed("export") {
		req.Exports = append([]string{}, f.exports...)
	}
	return req, nil
}

// newToolCmd reads tool arguments as JSON from stdin and prints the tool result.
func newToolCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tool [NAME]",
		Short: "Invoke a tool with JSON arguments read from stdin",
		Long: `Invoke stock_analysis_tool (default) or stock_price_tool.
Example: echo '{"tickers":"AAPL","support_levels":"150"}' | cortexta tool`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			name := tools.AnalysisToolName
			if len(args) == 1 {
				name = args[0]
			}
			input, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read arguments: %w", err)
			}
			result, err := invokeTool(cmd.Context(), a.analyzer, name, string(input))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func invokeTool(ctx context.Context, a *analysis.Analyzer, name, args string) (string, error) {
	var names []string
	for _, t := range tools.Tools(a) {
		info, err := t.Info(ctx)
		if err != nil {
			return "", err
		}
		names = append(names, info.Name)
		if info.Name != name {
			continue
		}
		inv, ok := t.(tool.InvokableTool)
		if !ok {
			return "", fmt.Errorf("tool %s is not invokable", name)
		}
		return inv.InvokableRun(ctx, args)
	}
	return "", fmt.Errorf("unknown tool %q (%s)", name, strings.Join(names, ", "))
}

func newPriceCmd(a *app) *cobra.Command {
	var (
		interval  string
		lookback  int
		outputDir string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "price SYMBOL[,SYMBOL...]",
		Short: "Dump realtime quotes and raw OHLCV history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			var window models.Window
			if interval != "" {
				iv, err := models.ParseInterval(interval)
				if err != nil {
					return err
				}
				window.Interval = iv
			}
			window.LookbackDays = lookback

			report, err := a.analyzer.Prices(cmd.Context(), analysis.PriceRequest{
				Symbols:   strings.Join(args, ","),
				Window:    window,
				OutputDir: outputDir,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				fmt.Fprintln(out, string(report.Payload))
				return nil
			}
			renderPrices(out, report)
			return nil
		},
	}
	cmd.Flags().StringVar(&interval, "interval", "", "Bar interval: 1h or 1d (default 1d)")
	cmd.Flags().IntVar(&lookback, "lookback", 0, "Lookback in calendar days (default 200)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for stock_data.json")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the JSON payload")
	return cmd
}

var errHistoryDisabled = errors.New("run history is disabled (set history_enabled)")

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		before int64
		runID  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analysis runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			if a.store == nil {
				return errHistoryDisabled
			}
			out := cmd.OutOrStdout()
			if runID != "" {
				symbols, err := a.store.ListSymbols(cmd.Context(), runID)
				if err != nil {
					return err
				}
				renderRunSymbols(out, runID, symbols)
				return nil
			}
			runs, err := a.store.ListRuns(cmd.Context(), before, limit)
			if err != nil {
				return err
			}
			renderRuns(out, runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	cmd.Flags().Int64Var(&before, "before", 0, "Show runs older than this row id")
	cmd.Flags().StringVar(&runID, "run", "", "Show the symbols of one run")
	return cmd
}

// newConfigCmd creates the config command
func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			renderSettings(cmd.OutOrStdout(), a.cfg.Redacted())
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and provider setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(
				fmt.Sprintf("configuration ok (provider %s, preset %s)", a.provider.Name(), a.cfg.Preset)))
			return nil
		},
	})

	return configCmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cortexta %s\n", Version)
		},
	}
}
