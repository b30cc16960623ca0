// Package auth carries the acting user through a request. Identity itself
// is established upstream; this package only transports it.
package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrUnauthenticated is returned when a request carries no acting user.
var ErrUnauthenticated = errors.New("authentication required")

// Actor is the user a request acts for. Elevated actors may delete filters
// they do not own.
type Actor struct {
	ID       string
	Elevated bool
}

type contextKey string

const actorKey contextKey = "actor"

// ContextWithActor returns a new context that carries the acting user.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	actor.ID = strings.TrimSpace(actor.ID)
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext retrieves the acting user from the context, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey).(Actor)
	if !ok || actor.ID == "" {
		return Actor{}, false
	}
	return actor, true
}

// RequireActor is ActorFromContext returning ErrUnauthenticated when absent.
func RequireActor(ctx context.Context) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, ErrUnauthenticated
	}
	return actor, nil
}
