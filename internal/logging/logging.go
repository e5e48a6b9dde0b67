package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Init configures the global slog default with the given level and format.
// If w is nil, os.Stderr is used. Format must be "text" or "json".
func Init(level slog.Level, format string, w ...io.Writer) {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// New returns a logger with a "component" attribute for module-scoped logging.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// Discard returns a logger that drops everything, so injected loggers never
// need nil checks.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// UnitLog writes timestamped leveled lines for one unit to its own file while
// also forwarding records to a parent logger. Close releases the file.
type UnitLog struct {
	*slog.Logger
	file *os.File
}

// NewUnitLog opens (creating parent directories) a per-unit log file and
// returns a logger that tees records to it and to parent. A nil parent means
// file-only.
func NewUnitLog(path string, level slog.Level, parent *slog.Logger) (*UnitLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open unit log: %w", err)
	}

	fileHandler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})
	var h slog.Handler = fileHandler
	if parent != nil {
		h = teeHandler{primary: fileHandler, secondary: parent.Handler()}
	}
	return &UnitLog{Logger: slog.New(h), file: f}, nil
}

// Close releases the underlying file. Safe on a nil receiver.
func (u *UnitLog) Close() error {
	if u == nil || u.file == nil {
		return nil
	}
	return u.file.Close()
}

// teeHandler duplicates records to two handlers. Enabled follows the primary
// (file) handler so the per-unit file stays authoritative.
type teeHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return t.primary.Enabled(ctx, level)
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	err := t.primary.Handle(ctx, r.Clone())
	if t.secondary.Enabled(ctx, r.Level) {
		_ = t.secondary.Handle(ctx, r.Clone())
	}
	return err
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{primary: t.primary.WithAttrs(attrs), secondary: t.secondary.WithAttrs(attrs)}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{primary: t.primary.WithGroup(name), secondary: t.secondary.WithGroup(name)}
}
