// ABOUTME: slog setup shared by every command.
// ABOUTME: Picks a JSON or text handler and exposes a LevelVar for runtime level changes.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Logger bundles a logger with the level it filters on.
type Logger struct {
	*slog.Logger
	Level *slog.LevelVar
}

// New builds a logger writing to w in the given format. An empty format
// means JSON.
func New(w io.Writer, format string, level slog.Level) (*Logger, error) {
	lv := new(slog.LevelVar)
	lv.Set(level)
	opts := &slog.HandlerOptions{Level: lv}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (use json or text)", format)
	}

	return &Logger{Logger: slog.New(handler), Level: lv}, nil
}

// Setup is New followed by slog.SetDefault.
func Setup(w io.Writer, format string, level slog.Level) (*Logger, error) {
	l, err := New(w, format, level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l.Logger)
	return l, nil
}

// SetLevel changes the level and logs the transition.
func (l *Logger) SetLevel(level slog.Level) {
	old := l.Level.Level()
	if old == level {
		return
	}
	l.Level.Set(level)
	l.Info("log level changed", "from", old.String(), "to", level.String())
}
