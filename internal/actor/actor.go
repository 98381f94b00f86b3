// Package actor carries the authenticated caller through request contexts.
package actor

import "context"

// Role distinguishes clients from the practitioner.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleAdmin  Role = "ADMIN"
)

// Actor is the caller an operation acts on behalf of.
type Actor struct {
	ID    string
	Role  Role
	Email string
	Name  string
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether the actor is the given client.
func (a Actor) Owns(clientID string) bool { return a.ID != "" && a.ID == clientID }

// CanAccess reports whether the actor may see or act on the client's data.
func (a Actor) CanAccess(clientID string) bool { return a.IsAdmin() || a.Owns(clientID) }

// System is used by webhook and worker paths that act without a user.
var System = Actor{ID: "system", Role: RoleAdmin, Name: "system"}

type ctxKey string

const actorKey ctxKey = "radiestesia.actor"

// WithActor stores the actor in context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// FromContext extracts the actor if present.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok && a.ID != ""
}
