package rflog

import (
	"io"

	charmlog "github.com/charmbracelet/log"
)

// Discard returns a capture.Logger-compatible adapter that drops every
// message, backed by a charmbracelet/log logger writing to io.Discard.
func Discard() *Logger {
	return &Logger{l: charmlog.NewWithOptions(io.Discard, charmlog.Options{})}
}
