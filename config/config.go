package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir  string `mapstructure:"project_dir" json:"project_dir"`
	OutputDir   string `mapstructure:"output_dir" json:"output_dir"`
	DataDir     string `mapstructure:"data_dir" json:"data_dir"`
	ResultsFile string `mapstructure:"results_file" json:"results_file"`
	PriceFile   string `mapstructure:"price_file" json:"price_file"`

	// Chart file naming: "indexed" (technical_analysisN.png) or "symbol".
	ChartNaming string `mapstructure:"chart_naming" json:"chart_naming"`
	ChartWidth  int    `mapstructure:"chart_width" json:"chart_width"`
	ChartHeight int    `mapstructure:"chart_height" json:"chart_height"`

	MinOverlayPoints    int     `mapstructure:"min_overlay_points" json:"min_overlay_points"`
	MinRSIPoints        int     `mapstructure:"min_rsi_points" json:"min_rsi_points"`
	LevelGuardTolerance float64 `mapstructure:"level_guard_tolerance" json:"level_guard_tolerance"`

	Provider  string `mapstructure:"provider" json:"provider"`
	Preset    string `mapstructure:"preset" json:"preset"`
	ProbeDays int    `mapstructure:"probe_days" json:"probe_days"`

	ExportFormats []string `mapstructure:"export_formats" json:"export_formats"`

	LogLevel  string `mapstructure:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" json:"log_format"`
	LogOutput string `mapstructure:"log_output" json:"log_output"`

	HistoryEnabled bool   `mapstructure:"history_enabled" json:"history_enabled"`
	HistoryDB      string `mapstructure:"history_db" json:"history_db"`

	RetryMax       int           `mapstructure:"retry_max" json:"retry_max"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" json:"retry_base_delay"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout" json:"http_timeout"`
	// CacheTTL keeps fetched history in memory for repeated runs; 0 disables it.
	CacheTTL       time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
	YahooChartURL  string        `mapstructure:"yahoo_chart_url" json:"yahoo_chart_url"`

	// Longport API Configuration
	LongportAppKey      string `mapstructure:"longport_app_key" json:"longport_app_key"`
	LongportAppSecret   string `mapstructure:"longport_app_secret" json:"longport_app_secret"`
	LongportAccessToken string `mapstructure:"longport_access_token" json:"longport_access_token"`
}

const (
	NamingIndexed = "indexed"
	NamingSymbol  = "symbol"
)

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot returns defaults rooted at dir without reading the environment.
func DefaultConfigWithRoot(dir string) *Config {
	return &Config{
		ProjectDir:  dir,
		OutputDir:   filepath.Join(dir, "results"),
		DataDir:     filepath.Join(dir, "data"),
		ResultsFile: "stock_technical_analysis.json",
		PriceFile:   "stock_data.json",

		ChartNaming: NamingIndexed,
		ChartWidth:  1400,
		ChartHeight: 1000,

		MinOverlayPoints:    5,
		MinRSIPoints:        10,
		LevelGuardTolerance: 0.005,

		Provider:  "yahoo",
		Preset:    "short",
		ProbeDays: 5,

		LogLevel:  "info",
		LogFormat: "text",
		LogOutput: "stderr",

		HistoryEnabled: true,
		HistoryDB:      filepath.Join(dir, "data", "cortexta.db"),

		RetryMax:       2,
		RetryBaseDelay: 500 * time.Millisecond,
		HTTPTimeout:    30 * time.Second,
		CacheTTL:       5 * time.Minute,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.OutputDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("MARKET_DATA_PROVIDER"); val != "" {
		c.Provider = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("HISTORY_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.HistoryEnabled = enabled
		}
	}
	if val := os.Getenv("RETRY_MAX"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.RetryMax = v
		}
	}

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if strings.TrimSpace(c.ResultsFile) == "" {
		errs = append(errs, errors.New("results_file is required"))
	}
	switch c.ChartNaming {
	case NamingIndexed, NamingSymbol:
	default:
		errs = append(errs, fmt.Errorf("chart_naming must be %q or %q, got %q", NamingIndexed, NamingSymbol, c.ChartNaming))
	}
	switch strings.ToLower(c.Provider) {
	case "yahoo", "yahoo-chart", "offline":
	case "longport":
		if c.LongportAppKey == "" || c.LongportAppSecret == "" || c.LongportAccessToken == "" {
			errs = append(errs, errors.New("longport provider needs LONGPORT_APP_KEY, LONGPORT_APP_SECRET and LONGPORT_ACCESS_TOKEN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	switch c.Preset {
	case "short", "swing", "daily":
	default:
		errs = append(errs, fmt.Errorf("preset must be short, swing or daily, got %q", c.Preset))
	}
	if c.ProbeDays <= 0 {
		errs = append(errs, fmt.Errorf("probe_days must be positive, got %d", c.ProbeDays))
	}
	if c.MinOverlayPoints <= 0 || c.MinRSIPoints <= 0 {
		errs = append(errs, errors.New("min_overlay_points and min_rsi_points must be positive"))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("cache_ttl must not be negative"))
	}
	if c.LevelGuardTolerance < 0 {
		errs = append(errs, errors.New("level_guard_tolerance must not be negative"))
	}
	if c.ChartWidth < 200 || c.ChartHeight < 200 {
		errs = append(errs, fmt.Errorf("chart size %dx%d is too small", c.ChartWidth, c.ChartHeight))
	}
	for _, f := range c.ExportFormats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "csv", "parquet":
		default:
			errs = append(errs, fmt.Errorf("unknown export format %q", f))
		}
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.OutputDir, c.DataDir}
	if c.HistoryEnabled && c.HistoryDB != "" {
		dirs = append(dirs, filepath.Dir(c.HistoryDB))
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
