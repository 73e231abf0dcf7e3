package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/coinbase/pk11-go/pkg/pk11/logging"
)

func TestRedactedAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(slog.New(slog.NewTextHandler(&buf, nil)))

	logger.With("engine", "soft").Info(context.Background(), "token login", logging.Redacted("pin"))

	out := buf.String()
	if !strings.Contains(out, `pin=`+logging.Placeholder()) {
		t.Fatalf("expected redacted pin, got %q", out)
	}
	if !strings.Contains(out, "engine=soft") {
		t.Fatalf("expected With attributes, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := logging.ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := logging.ParseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
