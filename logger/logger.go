// Package logger provides structured logging for the planner.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Reasoning-engine call logging (requests, responses, errors)
//   - Workflow stage-transition logging
//   - Level-based verbosity control
//
// All output goes to stderr: stdout is reserved for the CLI protocol.
// All exported functions use the global DefaultLogger which can be
// reconfigured with SetLevel / SetVerbose.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// DefaultLogger is the global structured logger instance.
// It is safe for concurrent use and initialized with slog.LevelInfo by default.
var DefaultLogger *slog.Logger

func init() {
	// Check LOG_LEVEL environment variable
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		switch strings.ToLower(envLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise
// sets info-level. Convenience wrapper for command-line verbose flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// Info logs an informational message with structured key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context and attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// EngineCall logs a reasoning-engine request with structured fields.
func EngineCall(provider, stage string, attempt int, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"provider", provider,
		"stage", stage,
		"attempt", attempt,
	)
	allAttrs = append(allAttrs, attrs...)
	Debug("engine call", allAttrs...)
}

// EngineResponse logs a reasoning-engine response with latency.
func EngineResponse(provider, stage string, latency time.Duration, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"provider", provider,
		"stage", stage,
		"latency", latency,
	)
	allAttrs = append(allAttrs, attrs...)
	Debug("engine response", allAttrs...)
}

// EngineError logs a reasoning-engine failure.
func EngineError(provider, stage string, err error, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"provider", provider,
		"stage", stage,
		"error", err,
	)
	allAttrs = append(allAttrs, attrs...)
	Error("engine call failed", allAttrs...)
}

// StageTransition logs a workflow state change.
func StageTransition(workflowID, from, to string, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"workflow_id", workflowID,
		"from", from,
		"to", to,
	)
	allAttrs = append(allAttrs, attrs...)
	Info("stage transition", allAttrs...)
}
