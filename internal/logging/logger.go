package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"blaulicht/internal/config"
)

// RunLogPattern matches the per-run JSON log files written by NewFromConfig.
const RunLogPattern = "blaulicht-*.log"

// Options describes logger construction parameters.
type Options struct {
	Level              string
	Format             string
	OutputPaths        []string
	ErrorOutputPaths   []string
	Development        bool
	ComponentOverrides map[string]string
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)

	outputWriter, err := openWriters(
		defaultSlice(opts.OutputPaths, []string{"stdout"}),
		defaultSlice(opts.ErrorOutputPaths, []string{"stderr"}),
	)
	if err != nil {
		return nil, err
	}

	handler, err := newFormatHandler(outputWriter, opts.Format, handlerLevel(level, opts.ComponentOverrides), opts.Development || level <= slog.LevelDebug)
	if err != nil {
		return nil, err
	}
	return slog.New(newComponentLevelHandler(handler, level, opts.ComponentOverrides)), nil
}

// NewFromConfig creates the CLI logger: console or JSON output on stderr plus a
// JSON copy in a per-run file under log_dir. It returns the run log path so
// callers can report it and exclude it from retention pruning.
func NewFromConfig(cfg *config.Config) (*slog.Logger, string, error) {
	if cfg == nil {
		logger, err := New(Options{Level: "info", Format: "console"})
		return logger, "", err
	}

	level := parseLevel(cfg.Logging.Level)
	overrides := cfg.Logging.ComponentOverrides
	floor := handlerLevel(level, overrides)
	addSource := level <= slog.LevelDebug

	console, err := newFormatHandler(os.Stderr, cfg.Logging.Format, floor, addSource)
	if err != nil {
		return nil, "", err
	}

	var logPath string
	handlers := []slog.Handler{console}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", fmt.Errorf("ensure log directory: %w", err)
		}
		logPath = filepath.Join(dir, "blaulicht-"+time.Now().UTC().Format("20060102T150405")+".log")
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
		if err != nil {
			return nil, "", fmt.Errorf("open log file %s: %w", logPath, err)
		}
		fileHandler, err := newJSONHandler(file, floor, true)
		if err != nil {
			_ = file.Close()
			return nil, "", err
		}
		handlers = append(handlers, fileHandler)
	}

	handler := newComponentLevelHandler(newFanoutHandler(handlers...), level, overrides)
	return slog.New(handler), logPath, nil
}

func newFormatHandler(w io.Writer, format string, lvl *slog.LevelVar, addSource bool) (slog.Handler, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return newJSONHandler(w, lvl, addSource)
	case "console", "":
		return newPrettyHandler(w, lvl, addSource), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", format)
	}
}

// handlerLevel returns the most verbose level any component needs, so the
// underlying handlers never drop records a component override asked for.
func handlerLevel(base slog.Level, overrides map[string]string) *slog.LevelVar {
	floor := base
	for _, value := range overrides {
		if lvl := parseLevel(value); lvl < floor {
			floor = lvl
		}
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(floor)
	return levelVar
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
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

func openWriters(outputPaths []string, errorPaths []string) (io.Writer, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer
	combined := append([]string{}, outputPaths...)
	combined = append(combined, errorPaths...)

	for _, path := range combined {
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
