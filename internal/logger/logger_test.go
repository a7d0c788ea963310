package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestTextFormatterLayout(t *testing.T) {
	f := &TextFormatter{TimestampFormat: "2006-01-02 15:04:05", DisableColors: true}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "skipping invalid symbol",
		Data:    logrus.Fields{"component": "fetcher", "symbol": "ZZZZ", "bars": 0},
	}
	out, err := f.Format(entry)
	if err != nil {
		t.Fatal(err)
	}
	want := "2024-03-15 14:00:00 WARNING [fetcher] skipping invalid symbol | bars=0 symbol=ZZZZ\n"
	if string(out) != want {
		t.Fatalf("got %q\nwant %q", out, want)
	}
}

func TestJSONFormatToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	log, err := New(Options{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	log.SetOutput(&buf)
	WithSymbol(WithComponent(log, "chart"), "AAPL").Debug("rendered")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not json: %v (%s)", err, buf.String())
	}
	if line["message"] != "rendered" || line["symbol"] != "AAPL" || line["component"] != "chart" {
		t.Fatalf("unexpected entry %v", line)
	}
	if !strings.Contains(buf.String(), "timestamp") {
		t.Fatal("timestamp field not renamed")
	}
}
