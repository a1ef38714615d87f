package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const filePerm = 0o600

// Options selects where log lines go. The console owns the terminal, so the
// default sink is a file; "-" writes human-readable lines to stderr instead.
type Options struct {
	Level string
	File  string
}

// Logger wraps a zerolog.Logger with the file it writes to.
type Logger struct {
	zerolog.Logger
	file *os.File
}

func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func New(opts Options) (*Logger, error) {
	level := ParseLevel(opts.Level)
	var (
		w    io.Writer
		file *os.File
	)
	switch strings.TrimSpace(opts.File) {
	case "":
		w = io.Discard
	case "-":
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	default:
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
		if err != nil {
			return nil, err
		}
		file = f
		w = zerolog.SyncWriter(f)
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{Logger: zl, file: file}, nil
}

// FromWriter builds a logger over w; used by tests.
func FromWriter(w io.Writer, level string) *Logger {
	return &Logger{Logger: zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
