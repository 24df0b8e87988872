package middleware

import (
	"context"

	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
)

type contextKey string

const ctxActor contextKey = "actor"

// ActorFromContext returns the caller recorded by Actor, or nil for
// anonymous requests.
func ActorFromContext(ctx context.Context) *outbox.Actor {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxActor).(*outbox.Actor); ok {
		return v
	}
	return nil
}

// WithActor injects the calling actor into the context.
func WithActor(ctx context.Context, actor *outbox.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}
