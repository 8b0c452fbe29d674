package claims

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session holds a bearer token and the hydrated Principal snapshot for it.
// A token without a Principal is "loading", not "authenticated": route guards
// must not admit access while loading.
type Session struct {
	Token      string     `json:"-"`
	Principal  *Principal `json:"principal,omitempty"`
	HydratedAt *time.Time `json:"hydrated_at,omitempty"`
	// Fallback marks degraded hydration: the Principal came from the exchange
	// response because GET /auth/me failed with a retryable error. Role and
	// name data may be stale until the next successful hydration.
	Fallback bool `json:"fallback,omitempty"`
}

// IsLoading reports whether the session holds a token that has not hydrated.
func (s *Session) IsLoading() bool {
	return s != nil && s.Token != "" && s.Principal == nil
}

// IsAuthenticated reports whether the session holds a hydrated Principal.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Token != "" && s.Principal != nil
}

// Role returns the hydrated principal's role, or the empty role while loading.
func (s *Session) Role() Role {
	if !s.IsAuthenticated() {
		return ""
	}
	return s.Principal.Role
}

// Actor derives the audit actor for this session.
func (s *Session) Actor() ActorRef {
	if !s.IsAuthenticated() {
		return ActorRef{Type: "anonymous"}
	}
	return ActorRef{
		ID:   s.Principal.ID,
		Role: s.Principal.Role,
		Type: "user",
	}
}

// ExpiresAt peeks at the token's exp claim when the opaque server-issued
// token happens to be a JWT. The signature is never verified here; the
// collaborator remains the validation authority. Returns false for opaque
// tokens and tokens without an exp claim.
func (s *Session) ExpiresAt() (time.Time, bool) {
	if s == nil || s.Token == "" {
		return time.Time{}, false
	}

	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(s.Token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

// Stale reports whether the token is known to be past its exp claim. Opaque
// tokens are never reported stale.
func (s *Session) Stale(now time.Time) bool {
	exp, ok := s.ExpiresAt()
	if !ok {
		return false
	}
	return now.After(exp)
}

func (s Session) String() string {
	principal := "<loading>"
	if s.Principal != nil {
		principal = fmt.Sprintf("%s (%s)", s.Principal.ID, s.Principal.Role)
	}
	return fmt.Sprintf("principal=%s fallback=%v", principal, s.Fallback)
}
