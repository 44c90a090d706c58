package shared

import "context"

// Actor identifies who performs an operation, threaded explicitly through
// context rather than injected as an ambient singleton.
type Actor struct {
	UserID  int64
	TraceID string
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context, zero value when absent.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
