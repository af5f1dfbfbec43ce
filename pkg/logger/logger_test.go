package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerStampsServiceAndFields(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "stock-test", Level: zerolog.InfoLevel, Output: &buf})

	ctx := logg.WithProductID(context.Background(), "p-1")
	ctx = logg.WithField(ctx, "op", "reserve")
	logg.Info(ctx, "stock reserved")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "stock-test" {
		t.Fatalf("missing service field: %v", entry)
	}
	if entry["product_id"] != "p-1" || entry["op"] != "reserve" {
		t.Fatalf("missing context fields: %v", entry)
	}
	if entry["message"] != "stock reserved" {
		t.Fatalf("unexpected message: %v", entry)
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	t.Parallel()

	if lvl := ParseLevel("nonsense"); lvl != zerolog.InfoLevel {
		t.Fatalf("unexpected level: %v", lvl)
	}
	if lvl := ParseLevel("warn"); lvl != zerolog.WarnLevel {
		t.Fatalf("unexpected level: %v", lvl)
	}
}
