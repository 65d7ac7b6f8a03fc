package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatColor = "color"
)

type Config struct {
	// Writer defaults to os.Stderr.
	Writer    io.Writer
	Level     string
	Format    string
	AddSource bool
}

// New builds the process logger. The color format uses tint and falls back to
// plain output when Writer is not a terminal.
func New(cfg Config) (*slog.Logger, error) {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{AddSource: cfg.AddSource, Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case FormatText, "":
		handler = slog.NewTextHandler(cfg.Writer, opts)
	case FormatJSON:
		handler = slog.NewJSONHandler(cfg.Writer, opts)
	case FormatColor:
		handler = tint.NewHandler(cfg.Writer, &tint.Options{
			Level:      level,
			AddSource:  cfg.AddSource,
			TimeFormat: "2006-01-02 15:04:05",
			NoColor:    !isTerminal(cfg.Writer),
		})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(handler), nil
}

func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
