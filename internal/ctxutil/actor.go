// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import (
	"context"
	"log/slog"
)

// Well-known actors. Chat users are identified as ChatActor(handle).
const (
	ActorCLI       = "cli"
	ActorScheduler = "scheduler"
	ActorAdmin     = "admin"
)

// ActorKey is the context key for actor ID.
// Exported so it can be used consistently across packages.
type ActorKey struct{}

// ChatActor returns the actor ID for a chat user.
func ChatActor(handle string) string {
	return "chat:" + handle
}

// WithActorID returns a context with the actor ID embedded.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorKey{}, actorID)
}

// ActorFromContext returns the actor ID from context, or empty string if not set.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ActorKey{}).(string); ok {
		return v
	}
	return ""
}

// Logger returns base annotated with the context's actor, if any.
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if actor := ActorFromContext(ctx); actor != "" {
		return base.With("actor", actor)
	}
	return base
}
