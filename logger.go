package quiver

import (
	"log/slog"
	"os"

	"github.com/quiverdb/quiver/distance"
)

// Logger wraps slog.Logger with consistent field names for index events.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler falls
// back to a text handler on stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON records to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	}))}
}

// WithCollection tags every subsequent record with the collection name.
func (l *Logger) WithCollection(collection string) *Logger {
	return &Logger{Logger: l.Logger.With("collection", collection)}
}

// LogBuild logs the creation of an index.
func (l *Logger) LogBuild(backend, collection string, dimension int, metric distance.Metric) {
	l.Info("index created",
		"backend", backend,
		"collection", collection,
		"dimension", dimension,
		"metric", metric.String(),
	)
}

// LogRestore logs a snapshot restore.
func (l *Logger) LogRestore(backend, collection string, count int) {
	l.Info("index restored",
		"backend", backend,
		"collection", collection,
		"count", count,
	)
}
