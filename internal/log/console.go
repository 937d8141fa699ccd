package log

import (
	"io"
	"log"
	"os"
	"sync"

	"charm.land/lipgloss/v2"
	"github.com/yaklabco/snowhook/pkg/ui"
)

// ConsolePrefix is prepended to plain console messages.
const ConsolePrefix = "[SNOWHOOK] "

// NewConsoleLogger returns an unstructured logger for short human-facing
// notices. Callers pass stderr; stdout carries the JSON record.
func NewConsoleLogger(w io.Writer) *log.Logger {
	prefix := lipgloss.NewStyle().Foreground(ui.GetFangScheme().Flag).Render(ConsolePrefix)
	return log.New(w, prefix, 0)
}

// SimpleConsoleLogger returns the shared stderr console logger. It is built
// on first use so the terminal is only probed when something is printed.
//
//nolint:gochecknoglobals // This is unchanged in the course of the process lifecycle.
var SimpleConsoleLogger = sync.OnceValue(func() *log.Logger {
	return NewConsoleLogger(os.Stderr)
})
