package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/config"
)

// ServiceName is attached to every log entry.
const ServiceName = "wbimport"

// Logger is a slog.Logger carrying the service and version attributes.
// It satisfies the narrow Logger interfaces of the mqtt, device and
// wbimport packages.
type Logger struct {
	*slog.Logger
}

// New logs to stdout, or stderr when cfg.Output says so.
func New(cfg config.LoggingConfig, version string) *Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}
	return NewWithWriter(cfg, version, w)
}

// NewWithWriter logs to w and ignores cfg.Output. Format "text" selects
// the human readable handler; anything else is JSON.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(h).With("service", ServiceName, "version", version)}
}

// parseLevel accepts the slog level names in any case, plus "warning".
// Anything unrecognised is info.
func parseLevel(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// With returns a Logger with extra default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component tags entries with the emitting component:
//
//	log.Component("mqtt").Info("connected") // component=mqtt
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default is used until the configuration has been loaded.
func Default() *Logger {
	return NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "dev", os.Stdout)
}
