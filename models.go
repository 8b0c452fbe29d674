package claims

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// UserStatus is the principal's account status
type UserStatus string

const (
	// UserStatusActive may authenticate and act.
	UserStatusActive UserStatus = "active"
	// UserStatusBanned may not authenticate.
	UserStatusBanned UserStatus = "banned"
	// UserStatusPendingApproval awaits an admin decision; self-registered
	// service providers and insurers start here and cannot authenticate.
	UserStatusPendingApproval UserStatus = "pending_approval"
)

// ErrUserBanned is returned when a banned principal is hydrated into a session.
var ErrUserBanned = errors.New("account is banned", errors.CategoryAuth).
	WithTextCode("USER_BANNED").
	WithCode(errors.CodeForbidden)

// ErrUserPendingApproval is returned when a not-yet-approved principal is
// hydrated into a session.
var ErrUserPendingApproval = errors.New("account is pending approval", errors.CategoryAuth).
	WithTextCode("USER_PENDING_APPROVAL").
	WithCode(errors.CodeForbidden)

// statusAuthError maps a non-authenticatable status to its error.
func statusAuthError(status UserStatus) error {
	switch status {
	case UserStatusBanned:
		return ErrUserBanned
	case UserStatusPendingApproval:
		return ErrUserPendingApproval
	default:
		return nil
	}
}

// Principal is the authenticated actor associated with a session. It is a
// snapshot of the authoritative profile held by the collaborator; the
// collaborator remains the source of truth.
type Principal struct {
	ID          string     `json:"id,omitempty"`
	DisplayName string     `json:"name,omitempty"`
	Email       string     `json:"email,omitempty"`
	Mobile      string     `json:"mobile_number,omitempty"`
	Role        Role       `json:"role,omitempty"`
	Status      UserStatus `json:"status,omitempty"`
}

// EnsureStatus defaults an empty status to active.
func (p *Principal) EnsureStatus() {
	if p != nil && p.Status == "" {
		p.Status = UserStatusActive
	}
}

// CanAuthenticate reports whether the principal's status admits a session.
func (p *Principal) CanAuthenticate() error {
	if p == nil {
		return ErrInvalidCredentials
	}
	p.EnsureStatus()
	return statusAuthError(p.Status)
}

// ClaimStatus is the human/business-facing outcome of a claim.
type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusInReview ClaimStatus = "in_review"
	ClaimStatusApproved ClaimStatus = "approved"
	ClaimStatusRejected ClaimStatus = "rejected"
)

// IsValid checks if the status is one of the predefined values.
func (s ClaimStatus) IsValid() bool {
	switch s {
	case ClaimStatusPending, ClaimStatusInReview, ClaimStatusApproved, ClaimStatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is a terminal decision. Only terminal
// statuses are eligible for an admin override.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimStatusApproved || s == ClaimStatusRejected
}

// VerificationStatus is the machine-assist pipeline stage of a claim,
// orthogonal to ClaimStatus.
type VerificationStatus string

const (
	// VerificationUnset means the automated pipeline has not touched the claim.
	VerificationUnset VerificationStatus = ""
	// VerificationAdminReview is the only stage from which forward-to-sp and
	// reject-ai-report are legal.
	VerificationAdminReview VerificationStatus = "AI_Processed_Admin_Review"
	// VerificationForwardedToSP records that an admin forwarded the AI report.
	VerificationForwardedToSP VerificationStatus = "Forwarded_To_SP"
	// VerificationAIRejected records that an admin rejected the AI report and
	// human review resumed.
	VerificationAIRejected VerificationStatus = "AI_Rejected_Manual_Review"
)

// Processed reports whether the admin-review stage has already been consumed.
func (v VerificationStatus) Processed() bool {
	return v == VerificationForwardedToSP || v == VerificationAIRejected
}

// Claim is an insurance-damage claim record. Status and VerificationStatus
// form one joint state; every legal transition lives in ClaimStateMachine.
type Claim struct {
	ID                  string             `json:"id,omitempty"`
	FarmerID            string             `json:"farmer_id,omitempty"`
	AssignedTo          string             `json:"assigned_to,omitempty"`
	Status              ClaimStatus        `json:"status,omitempty"`
	VerificationStatus  VerificationStatus `json:"verification_status,omitempty"`
	AdminOverrideReason string             `json:"admin_override_reason,omitempty"`
	AdminNotes          string             `json:"admin_notes,omitempty"`
	Description         string             `json:"description,omitempty"`
	CreatedAt           *time.Time         `json:"created_at,omitempty"`
	UpdatedAt           *time.Time         `json:"updated_at,omitempty"`
}

// EnsureStatus defaults an empty status to pending.
func (c *Claim) EnsureStatus() {
	if c != nil && c.Status == "" {
		c.Status = ClaimStatusPending
	}
}

// AssignedProvider reports whether the given principal id is the service
// provider assigned to this claim.
func (c *Claim) AssignedProvider(principalID string) bool {
	if c == nil {
		return false
	}
	id := strings.TrimSpace(principalID)
	return id != "" && c.AssignedTo == id
}
