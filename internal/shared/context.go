package shared

import "context"

// Role names recognised by the order workflow.
const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleDriver   = "driver"
	RoleCustomer = "customer"
)

// Actor identifies who performs a request.
type Actor struct {
	ID   int64
	Role string
}

// IsStaff reports whether the actor operates the counter (admin or staff).
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleStaff
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
