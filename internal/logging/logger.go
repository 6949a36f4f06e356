// Package logging provides structured logging for the CLI and the terminal
// browser.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/prowessninja/smsctl/internal/config"
	"github.com/prowessninja/smsctl/internal/events"
)

// Mode selects where a Logger writes and how.
type Mode string

const (
	// ModeCLI writes human-readable lines to stdout. Stderr stays free for
	// progress bars.
	ModeCLI Mode = "cli"
	// ModeTUI writes JSON lines, normally to a file, while the browser owns
	// the terminal.
	ModeTUI Mode = "tui"
)

const consoleTimeFormat = "15:04:05"

// Logger wraps zerolog. Warnings and errors are mirrored onto an event bus
// when one is attached, so the browser can show them.
type Logger struct {
	zlog   zerolog.Logger
	mode   Mode
	bus    *events.EventBus
	output io.Writer
	file   *os.File
}

// NewLogger creates a logger for mode. bus may be nil.
func NewLogger(mode Mode, bus *events.EventBus) *Logger {
	out := os.Stderr
	if mode == ModeCLI {
		out = os.Stdout
	}
	l := &Logger{mode: mode, bus: bus}
	l.SetOutput(out)
	return l
}

// NewFileLogger opens name in the log directory for appending and returns a
// ModeTUI logger writing to it. Close releases the file.
func NewFileLogger(name string, bus *events.EventBus) (*Logger, error) {
	if err := config.EnsureLogDirectory(); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(config.LogDirectory(), name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l := &Logger{mode: ModeTUI, bus: bus, file: f}
	l.SetOutput(f)
	return l, nil
}

// NewDefaultCLILogger creates a CLI logger without a bus.
func NewDefaultCLILogger() *Logger {
	return NewLogger(ModeCLI, nil)
}

// SetOutput redirects the logger. CLI loggers keep console formatting.
func (l *Logger) SetOutput(w io.Writer) {
	if l.mode == ModeCLI {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat, NoColor: !isTerminal(w)}
	}
	l.output = w

	zl := zerolog.New(w).With().Timestamp().Logger()
	if l.bus != nil {
		zl = zl.Hook(busHook{bus: l.bus})
	}
	l.zlog = zl
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// busHook publishes warn and error entries as LogEvents.
type busHook struct {
	bus *events.EventBus
}

func (h busHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	switch level {
	case zerolog.WarnLevel:
		h.bus.PublishLog(events.WarnLevel, msg, "log", nil)
	case zerolog.ErrorLevel, zerolog.FatalLevel:
		h.bus.PublishLog(events.ErrorLevel, msg, "log", nil)
	}
}

func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zlog.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zlog.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// With creates a child logger context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Zerolog returns the underlying zerolog.Logger, for installing as log.Logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config/flag string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.DurationFieldUnit = time.Millisecond

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: consoleTimeFormat})
}
