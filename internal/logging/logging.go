package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// InitLogger makes a new logger writing to stdout and sets it as the default.
// format is "text" or "json".
func InitLogger(level, format string) *slog.Logger {
	l := slog.New(NewHandler(os.Stdout, level, format))
	slog.SetDefault(l)
	return l
}

// NewHandler builds the handler InitLogger uses. Records logged with a
// context carrying a span get trace_id and span_id attributes.
func NewHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return &traceHandler{next: h}
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "dbg":
		return slog.LevelDebug
	case "warn", "wrn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
