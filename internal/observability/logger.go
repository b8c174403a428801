package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds a structured logger. Pretty output is meant for a terminal;
// otherwise each line is a JSON object.
func NewLogger(level string, pretty bool, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}

	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(logLevel).With().Timestamp().Logger()
}

// Logger adapts a zerolog.Logger to the key/value Logger used by the session
// and channels.
type Logger struct {
	zl zerolog.Logger
}

func NewSessionLogger(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(l.zl.Debug(), msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(l.zl.Info(), msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(l.zl.Warn(), msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(l.zl.Error(), msg, args) }

func (l *Logger) log(ev *zerolog.Event, msg string, args []interface{}) {
	if ev == nil {
		return
	}
	if len(args)%2 != 0 {
		args = append(args, "(missing)")
	}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = "field"
		}
		if err, isErr := args[i+1].(error); isErr {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}
