package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with a dual sink: human-readable console output plus
// a per-run log file. The file sink is best-effort; if it cannot be opened
// the logger degrades to console-only and the action carries on. Logging is
// never a reason for an action to fail.
type Logger struct {
	zerolog.Logger
	file     *os.File
	FilePath string
}

// NewLogger creates a logger for one action run. Every event carries the
// action kind and run id; cve is attached when non-empty for audit
// correlation.
func NewLogger(logDir, action, runID, cve string) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	sinks := []io.Writer{console}

	var file *os.File
	var filePath string
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create log dir %s: %v (console only)\n", logDir, err)
	} else {
		filePath = filepath.Join(logDir, fmt.Sprintf("quell-%s-%s.log", action, time.Now().Format("20060102-150405")))
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) // #nosec G304 -- path built from config
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot open log file %s: %v (console only)\n", filePath, err)
			filePath = ""
		} else {
			file = f
			sinks = append(sinks, f)
		}
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		With().
		Timestamp().
		Str("action", action).
		Str("run_id", runID)
	if cve != "" {
		ctx = ctx.Str("cve", cve)
	}

	return &Logger{Logger: ctx.Logger(), file: file, FilePath: filePath}
}

// Close flushes and closes the file sink if one was opened.
func (l *Logger) Close() {
	if l.file != nil {
		_ = l.file.Sync()
		_ = l.file.Close()
	}
}

// LogStep records a step outcome in a uniform shape.
func (l *Logger) LogStep(step, outcome, detail string) {
	l.Info().
		Str("step", step).
		Str("outcome", outcome).
		Str("detail", detail).
		Msg("step finished")
}

// LogStepError records a step that warned or failed.
func (l *Logger) LogStepError(step string, fatal bool, err error) {
	ev := l.Warn()
	if fatal {
		ev = l.Error()
	}
	ev.Err(err).Str("step", step).Bool("fatal", fatal).Msg("step failed")
}
