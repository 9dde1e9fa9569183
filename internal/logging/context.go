package logging

import (
	"context"
	"log/slog"
)

type streamContextKey struct{}

type streamIdentity struct {
	label string
	index int
}

// WithStream returns a context carrying the stream label and index so every
// layer below the scheduler loop logs the same identity fields.
func WithStream(ctx context.Context, label string, index int) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, streamContextKey{}, streamIdentity{label: label, index: index})
}

// StreamFromContext returns the stream label and index stored by WithStream.
func StreamFromContext(ctx context.Context) (string, int, bool) {
	if ctx == nil {
		return "", 0, false
	}
	id, ok := ctx.Value(streamContextKey{}).(streamIdentity)
	if !ok {
		return "", 0, false
	}
	return id.label, id.index, true
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	label, index, ok := StreamFromContext(ctx)
	if !ok {
		return nil
	}
	return []slog.Attr{
		slog.String(FieldStream, label),
		slog.Int(FieldStreamIndex, index),
	}
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
