package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrSerialization = errors.New("serialization failed")

// EmptyPayload is returned when no symbol produced a result.
var EmptyPayload = []byte("{}")

type Writer struct {
	dir  string
	name string
}

func NewWriter(dir, name string) *Writer {
	if name == "" {
		name = "stock_technical_analysis.json"
	}
	return &Writer{dir: dir, name: name}
}

func (w *Writer) Path() string {
	return filepath.Join(w.dir, w.name)
}

// Write persists results as indented JSON and returns the same bytes. An empty
// result set writes nothing. When results cannot be encoded the payload is an
// {"error": ...} object, the error wraps ErrSerialization, and no file is touched.
func (w *Writer) Write(results *Results) ([]byte, string, error) {
	if results.Len() == 0 {
		return EmptyPayload, "", nil
	}

	payload, err := encode(results)
	if err != nil {
		return ErrorPayload(err), "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	path := w.Path()
	if err := writeAtomic(path, payload); err != nil {
		return payload, "", fmt.Errorf("write %s: %w", path, err)
	}
	return payload, path, nil
}

func encode(results *Results) ([]byte, error) {
	for _, sym := range results.Symbols() {
		res, _ := results.Get(sym)
		if err := res.Historical.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", sym, err)
		}
	}
	return json.MarshalIndent(results, "", "  ")
}

// ErrorPayload renders err as an {"error": ...} object.
func ErrorPayload(err error) []byte {
	data, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return []byte(`{"error":"serialization failed"}`)
	}
	return data
}

// writeAtomic replaces path so readers never observe a partial file.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteJSON writes v as indented JSON to path.
func WriteJSON(path string, v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorPayload(err), fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if err := writeAtomic(path, data); err != nil {
		return data, err
	}
	return data, nil
}
