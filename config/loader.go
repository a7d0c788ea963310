package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "CORTEXTA"

// Load layers defaults (including .env and the plain environment names read by
// DefaultConfig), an optional config file, and CORTEXTA_* variables, in that order.
// An empty path searches ./cortexta.{yaml,json,toml} and $HOME/.cortexta.
func Load(path string) (*Config, error) {
	base := DefaultConfig()

	v := viper.New()
	for key, val := range base.Settings() {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cortexta")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".cortexta"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ExportFormats = splitList(cfg.ExportFormats)
	return cfg, nil
}

// Settings lists every key with its current value, keyed as in config files.
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"project_dir":           c.ProjectDir,
		"output_dir":            c.OutputDir,
		"data_dir":              c.DataDir,
		"results_file":          c.ResultsFile,
		"price_file":            c.PriceFile,
		"chart_naming":          c.ChartNaming,
		"chart_width":           c.ChartWidth,
		"chart_height":          c.ChartHeight,
		"min_overlay_points":    c.MinOverlayPoints,
		"min_rsi_points":        c.MinRSIPoints,
		"level_guard_tolerance": c.LevelGuardTolerance,
		"provider":              c.Provider,
		"preset":                c.Preset,
		"probe_days":            c.ProbeDays,
		"export_formats":        append([]string{}, c.ExportFormats...),
		"log_level":             c.LogLevel,
		"log_format":            c.LogFormat,
		"log_output":            c.LogOutput,
		"history_enabled":       c.HistoryEnabled,
		"history_db":            c.HistoryDB,
		"retry_max":             c.RetryMax,
		"retry_base_delay":      c.RetryBaseDelay,
		"http_timeout":          c.HTTPTimeout,
		"cache_ttl":             c.CacheTTL,
		"yahoo_chart_url":       c.YahooChartURL,
		"longport_app_key":      c.LongportAppKey,
		"longport_app_secret":   c.LongportAppSecret,
		"longport_access_token": c.LongportAccessToken,
	}
}

// Redacted returns Settings with credentials masked, for display.
func (c *Config) Redacted() map[string]any {
	out := c.Settings()
	for _, key := range []string{"longport_app_key", "longport_app_secret", "longport_access_token"} {
		if s, _ := out[key].(string); s != "" {
			out[key] = "****"
		}
	}
	return out
}

// splitList flattens entries like "csv,parquet" coming from a single env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
