package commands

import (
	"io"
	"log/slog"

	"github.com/natefinch/lumberjack"

	"github.com/coinbase/pk11-go/pkg/pk11"
	"github.com/coinbase/pk11-go/pkg/pk11/logging"
)

// newLogger logs as text to stderr, or as JSON to a rotating file when
// settings name one. The returned closer is nil for stderr.
func newLogger(settings pk11.LogSettings, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := logging.ParseLevel(settings.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if settings.File == "" {
		return slog.New(slog.NewTextHandler(stderr, opts)), nil, nil
	}

	writer := &lumberjack.Logger{
		Filename:   settings.File,
		MaxSize:    settings.MaxSizeMB,
		MaxBackups: settings.MaxBackups,
		MaxAge:     settings.MaxAgeDays,
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(writer, opts)), writer, nil
}
