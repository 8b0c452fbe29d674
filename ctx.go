package claims

import (
	"context"

	"github.com/goliatone/go-router"
)

var principalCtxKey = &contextKey{"principal"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithContext sets the Principal in the given context
func WithContext(r context.Context, principal *Principal) context.Context {
	return context.WithValue(r, principalCtxKey, principal)
}

// FromContext finds the principal from the context.
func FromContext(ctx context.Context) (*Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*Principal)
	return raw, ok
}

// WithSessionContext sets the Session in the given context
func WithSessionContext(r context.Context, session *Session) context.Context {
	return context.WithValue(r, sessionCtxKey, session)
}

// SessionFromContext extracts the Session from the standard context
func SessionFromContext(ctx context.Context) (*Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*Session)
	return raw, ok
}

// SessionFromRouter extracts the Session from the router context
func SessionFromRouter(ctx router.Context, key string) (*Session, bool) {
	if key == "" {
		key = "session"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	session, ok := raw.(*Session)
	return session, ok
}

// ActorFromContext resolves the audit actor for the current request. Falls
// back to the system actor when no principal is present.
func ActorFromContext(ctx context.Context) ActorRef {
	if session, ok := SessionFromContext(ctx); ok && session.Principal != nil {
		return session.Actor()
	}
	if principal, ok := FromContext(ctx); ok && principal != nil {
		return ActorRef{ID: principal.ID, Role: principal.Role, Type: "user"}
	}
	return SystemActor()
}

// Can is a convenience check for a role requirement directly from the
// standard context.
func Can(ctx context.Context, required ...Role) bool {
	if session, ok := SessionFromContext(ctx); ok {
		return Decide(session, required...) == DecisionAllow
	}

	principal, ok := FromContext(ctx)
	if !ok || principal == nil {
		return false
	}
	return principal.Role.HasAny(required...)
}

// CanFromRouter is the router-context variant of Can.
func CanFromRouter(ctx router.Context, required ...Role) bool {
	session, ok := SessionFromRouter(ctx, "")
	if !ok {
		return false
	}
	return Decide(session, required...) == DecisionAllow
}
