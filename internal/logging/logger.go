package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithRequest returns a logger with request context fields attached.
// Empty values are omitted.
func WithRequest(requestID, userID, chatID string) *slog.Logger {
	var attrs []any
	if requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	if userID != "" {
		attrs = append(attrs, "user_id", userID)
	}
	if chatID != "" {
		attrs = append(attrs, "chat_id", chatID)
	}
	return slog.With(attrs...)
}

// WithProvider returns a logger scoped to one provider attempt.
func WithProvider(logger *slog.Logger, provider string, attempt int) *slog.Logger {
	return logger.With(
		"provider", provider,
		"attempt", attempt,
	)
}
