// Package logging provides structured, component-scoped logging for stackpilot.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog with a fixed component attribute so every package logs
// under its own name.
type Logger struct {
	logger    *slog.Logger
	component string
}

// New creates a logger for the given component. Level and format are taken
// from STACKPILOT_LOG_LEVEL and STACKPILOT_LOG_FORMAT (JSON or text).
func New(component string) *Logger {
	return &Logger{
		logger:    slog.New(createHandler(os.Stdout)),
		component: component,
	}
}

// NewWithWriter creates a logger writing to w; used by tests to capture output.
func NewWithWriter(component string, w io.Writer) *Logger {
	return &Logger{
		logger:    slog.New(createHandler(w)),
		component: component,
	}
}

func createHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       levelFromEnv(),
		AddSource:   false,
		ReplaceAttr: replaceAttr,
	}

	if strings.ToUpper(os.Getenv("STACKPILOT_LOG_FORMAT")) == "JSON" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func levelFromEnv() slog.Level {
	switch strings.ToUpper(os.Getenv("STACKPILOT_LOG_LEVEL")) {
	case "TRACE", "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// replaceAttr normalizes level names to the upper-case form used across logs.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		switch level {
		case slog.LevelDebug:
			return slog.Attr{Key: a.Key, Value: slog.StringValue("DEBUG")}
		case slog.LevelInfo:
			return slog.Attr{Key: a.Key, Value: slog.StringValue("INFO")}
		case slog.LevelWarn:
			return slog.Attr{Key: a.Key, Value: slog.StringValue("WARN")}
		case slog.LevelError:
			return slog.Attr{Key: a.Key, Value: slog.StringValue("ERROR")}
		}
	}
	return a
}

// Debug logs a debug message with optional key/value attributes.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.logger.Debug(msg, l.withComponent(args)...)
}

// Info logs an info message with optional key/value attributes.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.logger.Info(msg, l.withComponent(args)...)
}

// Warn logs a warning message with optional key/value attributes.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.logger.Warn(msg, l.withComponent(args)...)
}

// Error logs an error message with optional key/value attributes.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.logger.Error(msg, l.withComponent(args)...)
}

// WithRun returns a logger that tags every record with the pipeline run ID.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{
		logger:    l.logger.With("run_id", runID),
		component: l.component,
	}
}

// WithFields returns a logger with additional fixed fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		logger:    l.logger.With(args...),
		component: l.component,
	}
}

// StageStart logs the start of a pipeline stage.
func (l *Logger) StageStart(stage string, position, total int) {
	l.logger.Info("Starting stage",
		"component", l.component,
		"stage", stage,
		"position", position,
		"total", total)
}

// StageSuccess logs a successful pipeline stage.
func (l *Logger) StageSuccess(stage string) {
	l.logger.Info("Stage completed",
		"component", l.component,
		"stage", stage,
		"status", "success")
}

// StageSkipped logs a skipped pipeline stage.
func (l *Logger) StageSkipped(stage, reason string) {
	l.logger.Info("Stage skipped",
		"component", l.component,
		"stage", stage,
		"status", "skipped",
		"reason", reason)
}

// StageFailed logs a failed pipeline stage.
func (l *Logger) StageFailed(stage string, err error) {
	l.logger.Error("Stage failed",
		"component", l.component,
		"stage", stage,
		"status", "failed",
		"error", err)
}

// PipelineSummary logs the final per-run summary.
func (l *Logger) PipelineSummary(succeeded, failed, skipped int, overall string) {
	if failed == 0 {
		l.logger.Info("Pipeline completed",
			"component", l.component,
			"succeeded", succeeded,
			"skipped", skipped,
			"overall", overall)
		return
	}
	l.logger.Warn("Pipeline completed with failures",
		"component", l.component,
		"succeeded", succeeded,
		"failed", failed,
		"skipped", skipped,
		"overall", overall)
}

func (l *Logger) withComponent(args []interface{}) []interface{} {
	out := make([]interface{}, 0, len(args)+2)
	out = append(out, "component", l.component)
	out = append(out, args...)
	return out
}
