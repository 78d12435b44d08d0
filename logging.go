package statepath

import (
	"context"
	"log/slog"
	"time"
)

// LogEvent describes one resolution, evaluation or invalidation step.
type LogEvent struct {
	Op        string
	Root      string
	Path      string
	ListIndex string
	Engine    string
	CacheHit  bool
	Duration  time.Duration
	Err       error
}

// Logger records engine events.
type Logger interface {
	LogResolution(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogResolution implements Logger.
func (f LoggerFunc) LogResolution(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogResolution(LogEvent) {}

// NewSlogLogger adapts a slog.Logger. Failed steps log at warn level, the
// rest at debug.
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) LogResolution(event LogEvent) {
	attrs := []slog.Attr{
		slog.String("op", event.Op),
		slog.String("root", event.Root),
		slog.String("path", event.Path),
		slog.Duration("duration", event.Duration),
	}
	if event.ListIndex != "" {
		attrs = append(attrs, slog.String("list_index", event.ListIndex))
	}
	if event.Engine != "" {
		attrs = append(attrs, slog.String("engine", event.Engine))
	}
	if event.Op == "get" {
		attrs = append(attrs, slog.Bool("cache_hit", event.CacheHit))
	}
	level := slog.LevelDebug
	if event.Err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	l.logger.LogAttrs(context.Background(), level, "statepath "+event.Op, attrs...)
}

// WithLogger attaches a logger to the engine.
func WithLogger(logger Logger) Option {
	return func(cfg *engineConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}
