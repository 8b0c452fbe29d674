package claims

import (
	"context"
	"fmt"
)

// Logger is the minimal logging surface this package needs.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Credentials is the payload for the email/password exchange used by admin
// and service-provider logins.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is the collaborator's response to a successful credential
// exchange or passcode verification. Principal, when present, is only a
// fallback snapshot: hydration against GET /auth/me remains the source of truth.
type AuthResult struct {
	Token     string     `json:"token"`
	Principal *Principal `json:"user,omitempty"`
}

// AuthAPI is the authentication surface of the REST collaborator.
type AuthAPI interface {
	Login(ctx context.Context, creds Credentials) (*AuthResult, error)
	SendOTP(ctx context.Context, mobile string) error
	VerifyOTP(ctx context.Context, mobile, code string) (*AuthResult, error)
	// Me hydrates the authoritative profile for a held token. Must surface
	// ErrUnauthorized/ErrForbidden for invalid or expired tokens.
	Me(ctx context.Context, token string) (*Principal, error)
}

// ClaimUpdate is the mutable subset of a claim accepted by the collaborator.
type ClaimUpdate struct {
	Status              ClaimStatus `json:"status,omitempty"`
	AssignedTo          string      `json:"assignedTo,omitempty"`
	AdminOverrideReason string      `json:"adminOverrideReason,omitempty"`
	ReassignTo          string      `json:"reassignTo,omitempty"`
}

// ClaimDraft is a farmer's claim submission payload.
type ClaimDraft struct {
	FarmerID    string `json:"farmer_id"`
	Description string `json:"description,omitempty"`
}

// ClaimsAPI is the claim surface of the REST collaborator.
type ClaimsAPI interface {
	GetClaim(ctx context.Context, id string) (*Claim, error)
	CreateClaim(ctx context.Context, draft ClaimDraft) (*Claim, error)
	UpdateClaim(ctx context.Context, id string, update ClaimUpdate) (*Claim, error)
	ForwardToSP(ctx context.Context, id, adminNotes string) (*Claim, error)
	RejectAIReport(ctx context.Context, id, reason, adminNotes string) (*Claim, error)
	AdminOverride(ctx context.Context, id, reason string, status ClaimStatus) (*Claim, error)
}

// AdminAPI is the user-administration surface of the REST collaborator.
type AdminAPI interface {
	ApproveUser(ctx context.Context, id string, approved bool, rejectionReason string) (*Principal, error)
}

// TokenStore persists the one durable piece of client state: the bearer
// token, under a single well-known key. Only the SessionStore reads or
// writes it; every other component consumes the current Principal instead.
type TokenStore interface {
	Get(ctx context.Context) (string, error)
	Put(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

// TokenSource exposes the current bearer token to the transport. Implemented
// by SessionStore; nothing else should hold the token.
type TokenSource interface {
	CurrentToken() (string, bool)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] CLAIMS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] CLAIMS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] CLAIMS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] CLAIMS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
