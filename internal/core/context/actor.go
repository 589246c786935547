// Package context carries per-request values (trace ids, acting operator)
// through context.Context.
package context

import (
	"context"
)

// Actor identifies the operator on whose behalf a movement is applied.
// The identity provider is trusted; the engine never re-validates it.
type Actor struct {
	// OperatorID is the badge/login of the warehouse operator.
	OperatorID string

	// Terminal is the PDA/terminal identifier, when known.
	Terminal string
}

type actorKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActor returns Actor from context, or nil.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetOperatorID returns the operator id from context or empty string.
func GetOperatorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.OperatorID
	}
	return ""
}
