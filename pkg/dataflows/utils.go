package dataflows

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns sensible retry defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
	}
}

// NoRetry runs the call exactly once.
func NoRetry() *RetryConfig {
	return &RetryConfig{Multiplier: 1}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying (unknown symbol, bad request).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// WithRetry executes fn with exponential backoff until it succeeds, returns a
// permanent error, retries run out, or ctx is done.
func WithRetry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt-1)))
			if config.MaxDelay > 0 && delay > config.MaxDelay {
				delay = config.MaxDelay
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
	}

	if config.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// IsKoreanSymbol reports whether the ticker trades on KOSPI (.KS) or KOSDAQ (.KQ).
func IsKoreanSymbol(symbol string) bool {
	s := NormalizeSymbol(symbol)
	return strings.HasSuffix(s, ".KS") || strings.HasSuffix(s, ".KQ")
}

// ParseSymbols splits a comma separated ticker list. Blank entries are ignored
// and repeated tickers are reported once in duplicates.
func ParseSymbols(raw string) (symbols []string, duplicates []string) {
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		s := NormalizeSymbol(part)
		if s == "" {
			continue
		}
		if seen[s] {
			duplicates = append(duplicates, s)
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	return symbols, duplicates
}

func floatPtr(v float64) *float64 {
	return &v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
