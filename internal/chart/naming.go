package chart

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyike/cortexta/config"
)

// Namer picks the output path for a symbol's chart. Index is -1 when the
// strategy does not number its files.
type Namer interface {
	Next(dir, symbol string) (path string, index int, err error)
}

// SymbolNamer writes {SYMBOL}_technical_analysis.png and overwrites earlier runs.
type SymbolNamer struct{}

func (SymbolNamer) Next(dir, symbol string) (string, int, error) {
	name := fmt.Sprintf("%s_technical_analysis.png", safeName(symbol))
	return filepath.Join(dir, name), -1, nil
}

// IndexedNamer writes technical_analysisN.png using the first free N from 0.
// The file is created empty to reserve the name; the renderer overwrites it.
type IndexedNamer struct {
	Prefix string
	Limit  int
}

func (n IndexedNamer) Next(dir, _ string) (string, int, error) {
	prefix := n.Prefix
	if prefix == "" {
		prefix = "technical_analysis"
	}
	limit := n.Limit
	if limit <= 0 {
		limit = 100000
	}
	for i := 0; i < limit; i++ {
		path := filepath.Join(dir, fmt.Sprintf("%s%d.png", prefix, i))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", 0, fmt.Errorf("reserve chart file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", 0, err
		}
		return path, i, nil
	}
	return "", 0, fmt.Errorf("no free chart file name under %s after %d attempts", dir, limit)
}

// NewNamer maps the configured naming mode to a strategy.
func NewNamer(mode string) (Namer, error) {
	switch mode {
	case "", config.NamingIndexed:
		return IndexedNamer{}, nil
	case config.NamingSymbol:
		return SymbolNamer{}, nil
	}
	return nil, fmt.Errorf("unknown chart naming %q", mode)
}

func safeName(symbol string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, symbol)
}
