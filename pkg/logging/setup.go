// Package logging configures slog for the frrlab commands.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Options selects the handler installed by Setup.
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // text or json
	Output io.Writer // os.Stderr when nil
	// Keep is how many warning and error records the Recorder retains.
	Keep int
}

// DefaultKeep is the Recorder capacity when Options.Keep is zero.
const DefaultKeep = 64

// ParseLevel maps a level name to an slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// NewHandler builds the base handler: tint for text, slog's JSON handler
// for json. Colour is only used when the output is a terminal.
func NewHandler(opts Options) (slog.Handler, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}

	switch strings.ToLower(opts.Format) {
	case "", "text":
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(w),
		}), nil
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), nil
	}
	return nil, fmt.Errorf("unknown log format %q (want text or json)", opts.Format)
}

// Setup installs the default logger and returns the recorder wrapping it.
func Setup(opts Options) (*Recorder, error) {
	base, err := NewHandler(opts)
	if err != nil {
		return nil, err
	}
	keep := opts.Keep
	if keep <= 0 {
		keep = DefaultKeep
	}
	rec := NewRecorder(base, keep)
	slog.SetDefault(slog.New(rec))
	return rec, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
