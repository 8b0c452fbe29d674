package claims

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// UserApprovals handles the admin workflow that activates or rejects
// pending service-provider accounts. Approval is admin-only; rejection
// additionally requires a reason, which is retained in the audit record.
type UserApprovals struct {
	api    AdminAPI
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

// ApprovalsOption customizes UserApprovals construction.
type ApprovalsOption func(*UserApprovals)

// WithApprovalsActivitySink sets the audit sink for approval decisions.
func WithApprovalsActivitySink(sink ActivitySink) ApprovalsOption {
	return func(a *UserApprovals) {
		a.sink = normalizeActivitySink(sink)
	}
}

// WithApprovalsLogger overrides the logger.
func WithApprovalsLogger(logger Logger) ApprovalsOption {
	return func(a *UserApprovals) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithApprovalsClock injects a custom clock.
func WithApprovalsClock(clock func() time.Time) ApprovalsOption {
	return func(a *UserApprovals) {
		if clock != nil {
			a.now = clock
		}
	}
}

// NewUserApprovals returns the approval workflow over the collaborator's
// admin surface.
func NewUserApprovals(api AdminAPI, opts ...ApprovalsOption) *UserApprovals {
	a := &UserApprovals{
		api:    api,
		sink:   noopActivitySink{},
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// Approve activates a pending account.
func (a *UserApprovals) Approve(ctx context.Context, actor ActorRef, userID string) (*Principal, error) {
	return a.decide(ctx, actor, userID, true, "")
}

// Reject declines a pending account. The reason is mandatory.
func (a *UserApprovals) Reject(ctx context.Context, actor ActorRef, userID, reason string) (*Principal, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, goerrors.New("a reason is required to reject an account", goerrors.CategoryBadInput).
			WithTextCode("REASON_REQUIRED").
			WithCode(goerrors.CodeBadRequest)
	}
	return a.decide(ctx, actor, userID, false, reason)
}

func (a *UserApprovals) decide(ctx context.Context, actor ActorRef, userID string, approved bool, reason string) (*Principal, error) {
	if !actor.Role.HasAny(RoleAdmin) {
		return nil, withMetadata(ErrForbidden, map[string]any{
			"role":   actor.Role,
			"reason": "only administrators decide account approvals",
		})
	}

	decision := "approved"
	if !approved {
		decision = "rejected"
	}

	principal, err := a.api.ApproveUser(ctx, userID, approved, reason)
	if err != nil {
		a.emit(ctx, actor, userID, "failure", map[string]any{
			"decision": decision,
			"error":    err.Error(),
		})
		return nil, err
	}

	meta := map[string]any{"decision": decision}
	if reason != "" {
		meta["reason"] = reason
	}
	a.emit(ctx, actor, userID, "success", meta)

	return principal, nil
}

func (a *UserApprovals) emit(ctx context.Context, actor ActorRef, subjectID, outcome string, meta map[string]any) {
	event := ActivityEvent{
		EventType: ActivityEventUserApproval,
		Actor:     actor,
		SubjectID: subjectID,
		Outcome:   outcome,
		Metadata:  meta,
	}
	fillEventDefaults(&event, a.now)

	if err := normalizeActivitySink(a.sink).Record(ctx, event); err != nil {
		a.logger.Warn("approvals activity sink error: %v", err)
	}
}
