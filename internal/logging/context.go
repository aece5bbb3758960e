package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey string

const runIDKey contextKey = "run_id"

// FromContext returns the logger stored in ctx, or a disabled logger. If ctx
// carries a run ID the logger is tagged with it.
func FromContext(ctx context.Context) zerolog.Logger {
	l := *zerolog.Ctx(ctx)
	if id := RunIDFromContext(ctx); id != "" {
		l = l.With().Str("run_id", id).Logger()
	}
	return l
}

// ContextWithRunID stores the run identifier in ctx.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the run identifier stored in ctx, if any.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}
