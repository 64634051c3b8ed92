// Package rflog adapts capture.Logger onto github.com/charmbracelet/log,
// giving capture sessions structured, leveled console output.
package rflog

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	charmlog "github.com/charmbracelet/log"
)

// placeholder matches a positional format placeholder like {0} or {1},
// the style capture.Logger callers use instead of fmt verbs so that
// argument order in a call reads naturally next to the message.
var placeholder = regexp.MustCompile(`\{(\d+)\}`)

// Logger adapts capture.Logger calls onto a charmbracelet/log.Logger.
type Logger struct {
	l *charmlog.Logger
}

// New returns a Logger writing to stderr at the given level name
// ("debug", "info", "warn", "error"); an unrecognized name defaults to
// info.
func New(level string) *Logger {
	l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
	})
	l.SetLevel(parseLevel(level))
	return &Logger{l: l}
}

func parseLevel(level string) charmlog.Level {
	switch level {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// expand rewrites a {0}/{1}-style format string into its substituted
// form using args in order, falling back to the literal placeholder if
// an index is out of range.
func expand(format string, args []interface{}) string {
	return placeholder.ReplaceAllStringFunc(format, func(m string) string {
		idxStr := placeholder.FindStringSubmatch(m)[1]
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 0 || idx >= len(args) {
			return m
		}
		return toString(args[idx])
	})
}

func toString(v interface{}) string {
	return fmt.Sprint(v)
}

// Trace logs at debug level.
func (a *Logger) Trace(format string, args ...interface{}) {
	a.l.Debug(expand(format, args))
}

// Info logs at info level.
func (a *Logger) Info(format string, args ...interface{}) {
	a.l.Info(expand(format, args))
}

// Warning logs at warn level.
func (a *Logger) Warning(format string, args ...interface{}) {
	a.l.Warn(expand(format, args))
}

// Error logs at error level.
func (a *Logger) Error(format string, args ...interface{}) {
	a.l.Error(expand(format, args))
}
