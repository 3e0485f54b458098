package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"platewatch/internal/config"
)

// LogFileName is the file written under the configured log directory.
const LogFileName = "platewatch.log"

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	// FilePath, when set, receives a JSON copy of every record regardless of
	// Format so the on-disk log is always machine readable.
	FilePath    string
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	outputWriter, err := openWriters(defaultSlice(opts.OutputPaths, []string{"stdout"}))
	if err != nil {
		return nil, err
	}

	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = newJSONHandler(outputWriter, levelVar, addSource)
	case "console":
		handler = newPrettyHandler(outputWriter, levelVar, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	if path := strings.TrimSpace(opts.FilePath); path != "" {
		fileWriter, err := openWriters([]string{path})
		if err != nil {
			return nil, err
		}
		handler = TeeHandler(handler, newJSONHandler(fileWriter, levelVar, addSource))
	}

	return slog.New(handler), nil
}

// NewFromConfig creates a logger using application config defaults. The base
// handler level is the most verbose of the global level and any component
// override; the global level is then re-applied through a level override so
// ForComponent can relax it per component.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}

	var filePath string
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		filePath = filepath.Join(cfg.Paths.LogDir, LogFileName)
	}

	global := parseLevel(cfg.Logging.Level)
	base := global
	for _, lvl := range cfg.Logging.ComponentOverrides {
		if parsed := parseLevel(lvl); parsed < base {
			base = parsed
		}
	}

	logger, err := New(Options{
		Level:       levelName(base),
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		FilePath:    filePath,
	})
	if err != nil {
		return nil, err
	}
	if base != global {
		logger = WithLevelOverride(logger, global)
	}
	return logger, nil
}

// ForComponent tags logger with the component name and applies any
// per-component level override from overrides (keys are lower-case).
func ForComponent(logger *slog.Logger, component string, overrides map[string]string) *slog.Logger {
	tagged := NewComponentLogger(logger, component)
	if lvl, ok := overrides[strings.ToLower(strings.TrimSpace(component))]; ok {
		return WithLevelOverride(tagged, parseLevel(lvl))
	}
	return tagged
}

// WithLevelOverride holds logger to level. An existing override is replaced
// rather than stacked, so a component can run more verbose than the global
// level as long as the handler below was built verbose enough.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	next := logger.Handler()
	if gate, ok := next.(levelGate); ok {
		next = gate.next
	}
	return slog.New(levelGate{next: next, min: level})
}

type levelGate struct {
	next slog.Handler
	min  slog.Level
}

func (g levelGate) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= g.min && g.next.Enabled(ctx, level)
}

func (g levelGate) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < g.min {
		return nil
	}
	return g.next.Handle(ctx, record)
}

func (g levelGate) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelGate{next: g.next.WithAttrs(attrs), min: g.min}
}

func (g levelGate) WithGroup(name string) slog.Handler {
	return levelGate{next: g.next.WithGroup(name), min: g.min}
}

// TeeHandler hands each record to every non-nil handler whose level accepts
// it, typically the console and the JSON log file.
func TeeHandler(handlers ...slog.Handler) slog.Handler {
	var sinks tee
	for _, h := range handlers {
		if h != nil {
			sinks = append(sinks, h)
		}
	}
	switch len(sinks) {
	case 0:
		return NoopHandler{}
	case 1:
		return sinks[0]
	}
	return sinks
}

type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t tee) WithGroup(name string) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

// ParseLevel exposes the level parser for CLI flag handling.
func ParseLevel(level string) slog.Level {
	return parseLevel(level)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelName(level slog.Level) string {
	return strings.ToLower(levelLabel(level))
}

func defaultSlice(value []string, fallback []string) []string {
	if len(value) == 0 {
		cp := make([]string, len(fallback))
		copy(cp, fallback)
		return cp
	}
	cp := make([]string, len(value))
	copy(cp, value)
	return cp
}

func openWriters(paths []string) (io.Writer, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer

	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := ensureLogDir(trimmed); err != nil {
				return nil, err
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			writers = append(writers, file)
		}
	}

	if len(writers) == 0 {
		return os.Stdout, nil
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
