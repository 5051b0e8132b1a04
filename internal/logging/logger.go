// Package logging provides structured logging for the CLI and for the
// long-lived serve process.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Modes accepted by NewLogger.
const (
	ModeCLI    = "cli"
	ModeDaemon = "daemon"
)

const timeFormat = "15:04:05"

// Logger wraps zerolog with mode-specific output.
type Logger struct {
	zlog      zerolog.Logger
	mode      string
	component string
}

// NewLogger creates a logger for mode. CLI output goes to stdout so it
// interleaves with command output; every other mode writes to stderr.
func NewLogger(mode string) *Logger {
	var out io.Writer = os.Stderr
	if mode == ModeCLI {
		out = os.Stdout
	}
	return newLogger(out, mode, "")
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger(ModeCLI)
}

// NewComponentLogger creates a stderr logger tagged with a component name,
// for types that are constructed without an explicit logger.
func NewComponentLogger(component string) *Logger {
	return newLogger(os.Stderr, ModeDaemon, component)
}

// NewWriterLogger creates a logger writing plain console lines to w.
func NewWriterLogger(w io.Writer, component string) *Logger {
	return newLogger(w, ModeDaemon, component)
}

func newLogger(w io.Writer, mode, component string) *Logger {
	ctx := zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: timeFormat,
		NoColor:    !isTerminal(w),
	}).With().Timestamp()
	if component != "" {
		ctx = ctx.Str("component", component)
	}
	return &Logger{zlog: ctx.Logger(), mode: mode, component: component}
}

// Component returns a child logger sharing l's output, tagged with name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{
		zlog:      l.zlog.With().Str("component", name).Logger(),
		mode:      l.mode,
		component: name,
	}
}

// Mode returns the mode the logger was created for.
func (l *Logger) Mode() string { return l.mode }

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// LevelFor maps the --verbose and --quiet flags to a global level.
// Verbose wins when both are set.
func LevelFor(verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
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

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: timeFormat,
	})
}
