package logger

import (
	"context"
	"log/slog"
)

type (
	requestIDKey struct{}
	taskIDKey    struct{}
)

// WithRequestID stores a request ID for RequestIDExtractor.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithTaskID stores a batch task ID for TaskIDExtractor.
func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDKey{}, id)
}

// TaskID returns the task ID stored in ctx, if any.
func TaskID(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey{}).(string)
	return id
}

// RequestIDExtractor adds "request_id" when present.
func RequestIDExtractor() ContextExtractor {
	return stringExtractor("request_id", RequestID)
}

// TaskIDExtractor adds "task_id" when present.
func TaskIDExtractor() ContextExtractor {
	return stringExtractor("task_id", TaskID)
}

func stringExtractor(key string, get func(context.Context) string) ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v := get(ctx); v != "" {
			return slog.String(key, v), true
		}
		return slog.Attr{}, false
	}
}
