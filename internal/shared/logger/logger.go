package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is an alias used by services for dependency injection.
type Logger = zerolog.Logger

// Options controls sink and verbosity.
type Options struct {
	Level  string
	Pretty bool
	Out    io.Writer
}

// New returns a logger tagged with the service name at info level.
func New(service string) Logger {
	return NewWithOptions(service, Options{Level: "info"})
}

// NewWithOptions returns a logger tagged with the service name.
func NewWithOptions(service string, opts Options) Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// ParseLevel converts a config string to a zerolog level, defaulting to info.
// "warning" and "off" are accepted as aliases.
func ParseLevel(level string) zerolog.Level {
	switch s := strings.ToLower(strings.TrimSpace(level)); s {
	case "warning":
		return zerolog.WarnLevel
	case "off":
		return zerolog.Disabled
	case "":
		return zerolog.InfoLevel
	default:
		l, err := zerolog.ParseLevel(s)
		if err != nil {
			return zerolog.InfoLevel
		}
		return l
	}
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() Logger {
	return zerolog.Nop()
}
