package claims

import (
	"github.com/goliatone/go-errors"
)

const (
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeInvalidMobile      = "INVALID_MOBILE"
	textCodeInvalidCode        = "INVALID_CODE"
	textCodeCodeExpired        = "CODE_EXPIRED"
	textCodeCooldownActive     = "COOLDOWN_ACTIVE"
	textCodeIllegalTransition  = "ILLEGAL_TRANSITION"
	textCodeAlreadyProcessed   = "ALREADY_PROCESSED"
	textCodeUnauthorized       = "UNAUTHORIZED"
	textCodeForbidden          = "FORBIDDEN"
	textCodeNetwork            = "NETWORK_ERROR"
)

// ErrInvalidCredentials is returned when the credential exchange is rejected,
// including the case where hydration of a freshly issued token comes back 401/403.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidMobile is returned when a mobile identifier fails the local shape check.
var ErrInvalidMobile = errors.New("mobile identifier must be 10 numeric digits", errors.CategoryValidation).
	WithTextCode(textCodeInvalidMobile).
	WithCode(errors.CodeBadRequest)

// ErrInvalidCode is returned when a passcode is rejected by the collaborator.
var ErrInvalidCode = errors.New("passcode is invalid", errors.CategoryValidation).
	WithTextCode(textCodeInvalidCode).
	WithCode(errors.CodeBadRequest)

// ErrCodeExpired is returned when a passcode is used outside its validity window.
// The caller must request a new challenge; there is no implicit resend.
var ErrCodeExpired = errors.New("passcode has expired", errors.CategoryValidation).
	WithTextCode(textCodeCodeExpired).
	WithCode(errors.CodeBadRequest)

// ErrCooldownActive is returned when a passcode send is attempted while the
// resend cooldown is still running.
var ErrCooldownActive = errors.New("passcode resend cooldown is active", errors.CategoryRateLimit).
	WithTextCode(textCodeCooldownActive).
	WithCode(errors.CodeBadRequest)

// ErrIllegalTransition is returned when a claim action is attempted outside
// its precondition. The claim is left untouched.
var ErrIllegalTransition = errors.New("illegal claim transition", errors.CategoryValidation).
	WithTextCode(textCodeIllegalTransition).
	WithCode(errors.CodeBadRequest)

// ErrAlreadyProcessed is returned when a single-use verification action is
// repeated. Distinct from ErrIllegalTransition so callers can tell "nothing
// happened" apart from "someone else already acted".
var ErrAlreadyProcessed = errors.New("claim verification stage already processed", errors.CategoryConflict).
	WithTextCode(textCodeAlreadyProcessed).
	WithCode(errors.CodeConflict)

// ErrUnauthorized mirrors a 401 from the collaborator. Any authenticated call
// surfacing it forces session invalidation.
var ErrUnauthorized = errors.New("authentication token rejected", errors.CategoryAuth).
	WithTextCode(textCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden mirrors a 403. The token is fine, the action is not permitted;
// it never invalidates the session.
var ErrForbidden = errors.New("action not permitted for this principal", errors.CategoryAuthz).
	WithTextCode(textCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrNetwork wraps transport failures. Always retryable by the caller; the
// core never retries the primary operation on its own.
var ErrNetwork = errors.New("collaborator request failed", errors.CategoryOperation).
	WithTextCode(textCodeNetwork).
	WithCode(errors.CodeInternal)

// withMetadata clones a sentinel and attaches context while keeping errors.Is
// matching against the sentinel.
func withMetadata(base *errors.Error, meta map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	return clone.WithMetadata(meta)
}

// IsAuthRejection reports whether err represents a 401/403 from the
// collaborator, the pair that invalidates a session during hydration.
func IsAuthRejection(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsBenignRace reports whether err is an expected concurrent-use outcome that
// should be presented as informational rather than as a failure.
func IsBenignRace(err error) bool {
	return errors.Is(err, ErrIllegalTransition) || errors.Is(err, ErrAlreadyProcessed)
}
