// Package observability provides logging, metrics and tracing for the
// goderiv tool server.
//
// Logging uses slog; metrics and tracing use OpenTelemetry with the global
// providers. Every feature has a no-op implementation for when it is off.
package observability

import (
	"io"
	"log/slog"
	"time"
)

// NewLogger returns a JSON logger writing to w at level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// EnrichLogger adds request_id and tool fields to a logger.
func EnrichLogger(logger *slog.Logger, requestID, tool string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("request_id", requestID),
		slog.String("tool", tool),
	)
}

// LogServerStart logs the listening address.
func LogServerStart(logger *slog.Logger, addr string) {
	if logger == nil {
		return
	}
	logger.Info("tool server listening", slog.String("addr", addr))
}

func LogToolCall(logger *slog.Logger) {
	if logger == nil {
		return
	}
	logger.Debug("tool call starting")
}

func LogToolComplete(logger *slog.Logger, durationMs float64, points int) {
	if logger == nil {
		return
	}
	logger.Info("tool call completed",
		slog.Float64("duration_ms", durationMs),
		slog.Int("points", points),
	)
}

func LogToolError(logger *slog.Logger, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Warn("tool call failed",
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogPanic logs a recovered panic with its stack.
func LogPanic(logger *slog.Logger, rec any, stack []byte) {
	if logger == nil {
		return
	}
	logger.Error("panic in tool handler",
		slog.Any("panic", rec),
		slog.String("stack", string(stack)),
	)
}

// TimedOperation returns a function reporting the time elapsed since the call.
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration { return time.Since(start) }
}

// Millis converts d to fractional milliseconds.
func Millis(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
