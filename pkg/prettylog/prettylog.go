// Package prettylog installs a charmbracelet/log handler as the slog default.
package prettylog

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// SetupPrettyLogger routes slog through a charmbracelet/log handler writing
// to w. Hooks pass stderr here; stdout is reserved for the JSON record.
func SetupPrettyLogger(w io.Writer, debug bool) *log.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}

	logHandler := log.NewWithOptions(
		w,
		log.Options{
			Level:           level,
			ReportTimestamp: true,
			ReportCaller:    debug,
			Prefix:          "snowhook",
		},
	)
	slog.SetDefault(slog.New(logHandler))

	return logHandler
}
