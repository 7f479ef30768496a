package auth

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
)

type subjectKey struct{}

// WithSubject records the authenticated caller, a user or a service name.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// LogAttrs returns the caller and chi request id as slog key/value pairs.
func LogAttrs(ctx context.Context) []any {
	return []any{"caller", SubjectFromContext(ctx), "request_id", middleware.GetReqID(ctx)}
}
