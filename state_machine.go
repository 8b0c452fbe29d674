package claims

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ClaimAction names a trigger in the claim transition table.
type ClaimAction string

const (
	ActionSubmit           ClaimAction = "submit"
	ActionAIProcess        ClaimAction = "ai_process"
	ActionForwardToSP      ClaimAction = "forward_to_sp"
	ActionRejectAIReport   ClaimAction = "reject_ai_report"
	ActionProviderDecision ClaimAction = "sp_decide"
	ActionAdminOverride    ClaimAction = "admin_override"
	ActionAdminEdit        ClaimAction = "admin_edit"
)

// ClaimStateMachine centralizes the joint (status, verificationStatus)
// transition table: which action is legal from which state, who may trigger
// it, and what changes. Screens never re-derive these rules.
//
// Every action validates locally first and only touches the claim after the
// collaborator call succeeds, so a failed action never leaves a partially
// applied state. Concurrent admin sessions may race; ErrAlreadyProcessed and
// ErrIllegalTransition are expected, recoverable outcomes of that, not bugs.
type ClaimStateMachine struct {
	api    ClaimsAPI
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*ClaimStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *ClaimStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish
// transition events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *ClaimStateMachine) {
		sm.sink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *ClaimStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// NewClaimStateMachine returns a machine backed by the collaborator's claims
// surface.
func NewClaimStateMachine(api ClaimsAPI, opts ...StateMachineOption) *ClaimStateMachine {
	sm := &ClaimStateMachine{
		api:    api,
		sink:   noopActivitySink{},
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

// Submit creates a claim for a farmer. New claims start (pending, unset).
func (sm *ClaimStateMachine) Submit(ctx context.Context, actor ActorRef, draft ClaimDraft) (*Claim, error) {
	if !actor.Role.HasAny(RoleFarmer) {
		return nil, sm.rejectRole(ctx, ActionSubmit, actor, "")
	}

	if draft.FarmerID == "" {
		draft.FarmerID = actor.ID
	}

	created, err := sm.api.CreateClaim(ctx, draft)
	if err != nil {
		sm.emitTransition(ctx, ActionSubmit, actor, "", "failure", map[string]any{"error": err.Error()})
		return nil, err
	}

	created.EnsureStatus()
	sm.emitTransition(ctx, ActionSubmit, actor, created.ID, "success", nil)
	return created, nil
}

// MarkAIProcessed records the automated assessment producer's hand-off into
// admin review. The producer itself is external; this applies its transition
// to the local snapshot and audits it under the system actor.
func (sm *ClaimStateMachine) MarkAIProcessed(ctx context.Context, claim *Claim) (*Claim, error) {
	if claim == nil {
		return nil, withMetadata(ErrIllegalTransition, map[string]any{"reason": "claim is nil"})
	}

	claim.EnsureStatus()
	if claim.VerificationStatus != VerificationUnset {
		return nil, sm.rejectState(ctx, ActionAIProcess, SystemActor(), claim)
	}
	if claim.Status != ClaimStatusPending && claim.Status != ClaimStatusInReview {
		return nil, sm.rejectState(ctx, ActionAIProcess, SystemActor(), claim)
	}

	claim.VerificationStatus = VerificationAdminReview
	sm.emitTransition(ctx, ActionAIProcess, SystemActor(), claim.ID, "success", nil)
	return claim, nil
}

// ForwardToSP forwards an AI-processed claim to its service provider.
// Legal only from AI_Processed_Admin_Review and single-use: a repeat fails
// with ErrAlreadyProcessed so the caller can tell a benign race from a no-op.
// The business status is unchanged.
func (sm *ClaimStateMachine) ForwardToSP(ctx context.Context, actor ActorRef, claim *Claim, adminNotes string) (*Claim, error) {
	if err := sm.requireAdminReview(ctx, ActionForwardToSP, actor, claim); err != nil {
		return nil, err
	}

	updated, err := sm.api.ForwardToSP(ctx, claim.ID, adminNotes)
	if err != nil {
		sm.emitTransition(ctx, ActionForwardToSP, actor, claim.ID, "failure", map[string]any{"error": err.Error()})
		return nil, err
	}

	sm.apply(claim, updated, func(c *Claim) {
		c.VerificationStatus = VerificationForwardedToSP
		if adminNotes != "" {
			c.AdminNotes = adminNotes
		}
	})

	sm.emitTransition(ctx, ActionForwardToSP, actor, claim.ID, "success", map[string]any{
		"admin_notes": adminNotes,
	})
	return claim, nil
}

// RejectAIReport rejects the automated report and resumes human review.
// Same precondition and single-use rule as ForwardToSP; a reason is required.
func (sm *ClaimStateMachine) RejectAIReport(ctx context.Context, actor ActorRef, claim *Claim, reason, adminNotes string) (*Claim, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, goerrors.New("a reason is required to reject the assessment report", goerrors.CategoryBadInput).
			WithTextCode("REASON_REQUIRED").
			WithCode(goerrors.CodeBadRequest)
	}

	if err := sm.requireAdminReview(ctx, ActionRejectAIReport, actor, claim); err != nil {
		return nil, err
	}

	updated, err := sm.api.RejectAIReport(ctx, claim.ID, reason, adminNotes)
	if err != nil {
		sm.emitTransition(ctx, ActionRejectAIReport, actor, claim.ID, "failure", map[string]any{"error": err.Error()})
		return nil, err
	}

	sm.apply(claim, updated, func(c *Claim) {
		c.VerificationStatus = VerificationAIRejected
		if adminNotes != "" {
			c.AdminNotes = adminNotes
		}
	})

	sm.emitTransition(ctx, ActionRejectAIReport, actor, claim.ID, "success", map[string]any{
		"reason": reason,
	})
	return claim, nil
}

// ProviderDecision lets the assigned service provider set a terminal status
// on an open claim. The verification sub-state is unchanged.
func (sm *ClaimStateMachine) ProviderDecision(ctx context.Context, actor ActorRef, claim *Claim, decision ClaimStatus) (*Claim, error) {
	if claim == nil {
		return nil, withMetadata(ErrIllegalTransition, map[string]any{"reason": "claim is nil"})
	}
	if !actor.Role.HasAny(RoleServiceProvider) || !claim.AssignedProvider(actor.ID) {
		return nil, sm.rejectRole(ctx, ActionProviderDecision, actor, claim.ID)
	}
	if !decision.IsTerminal() {
		return nil, withMetadata(ErrIllegalTransition, map[string]any{
			"action": ActionProviderDecision,
			"status": decision,
			"reason": "decision must be approved or rejected",
		})
	}

	claim.EnsureStatus()
	if claim.Status != ClaimStatusPending && claim.Status != ClaimStatusInReview {
		return nil, sm.rejectState(ctx, ActionProviderDecision, actor, claim)
	}

	updated, err := sm.api.UpdateClaim(ctx, claim.ID, ClaimUpdate{Status: decision})
	if err != nil {
		sm.emitTransition(ctx, ActionProviderDecision, actor, claim.ID, "failure", map[string]any{"error": err.Error()})
		return nil, err
	}

	sm.apply(claim, updated, func(c *Claim) {
		c.Status = decision
	})

	sm.emitTransition(ctx, ActionProviderDecision, actor, claim.ID, "success", map[string]any{
		"decision": decision,
	})
	return claim, nil
}

// AdminOverride resets a terminal decision back to pending. The reason is
// mandatory and permanently retained for audit; the verification sub-state
// is unchanged. Recorded at critical severity.
func (sm *ClaimStateMachine) AdminOverride(ctx context.Context, actor ActorRef, claim *Claim, reason string) (*Claim, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, goerrors.New("a reason is required to override a claim decision", goerrors.CategoryBadInput).
			WithTextCode("REASON_REQUIRED").
			WithCode(goerrors.CodeBadRequest)
	}

	if claim == nil {
		return nil, withMetadata(ErrIllegalTransition, map[string]any{"reason": "claim is nil"})
	}
	if !actor.Role.HasAny(RoleAdmin) {
		return nil, sm.rejectRole(ctx, ActionAdminOverride, actor, claim.ID)
	}

	claim.EnsureStatus()
	if !claim.Status.IsTerminal() {
		return nil, sm.rejectState(ctx, ActionAdminOverride, actor, claim)
	}

	overridden := claim.Status
	updated, err := sm.api.AdminOverride(ctx, claim.ID, reason, ClaimStatusPending)
	if err != nil {
		sm.emitCritical(ctx, ActivityEventClaimOverride, actor, claim.ID, "failure", map[string]any{
			"reason": reason,
			"error":  err.Error(),
		})
		return nil, err
	}

	sm.apply(claim, updated, func(c *Claim) {
		c.Status = ClaimStatusPending
		c.AdminOverrideReason = reason
	})

	sm.emitCritical(ctx, ActivityEventClaimOverride, actor, claim.ID, "success", map[string]any{
		"reason":     reason,
		"overridden": overridden,
	})
	return claim, nil
}

// AdminEdit sets the business status directly, bypassing the verification
// sub-state rules. Intentional escape hatch; audited at critical severity so
// downstream review can separate it from structured transitions.
func (sm *ClaimStateMachine) AdminEdit(ctx context.Context, actor ActorRef, claim *Claim, status ClaimStatus) (*Claim, error) {
	if claim == nil {
		return nil, withMetadata(ErrIllegalTransition, map[string]any{"reason": "claim is nil"})
	}
	if !actor.Role.HasAny(RoleAdmin) {
		return nil, sm.rejectRole(ctx, ActionAdminEdit, actor, claim.ID)
	}
	if !status.IsValid() {
		return nil, withMetadata(ErrIllegalTransition, map[string]any{
			"action": ActionAdminEdit,
			"status": status,
			"reason": "unknown status",
		})
	}

	claim.EnsureStatus()
	from := claim.Status

	updated, err := sm.api.UpdateClaim(ctx, claim.ID, ClaimUpdate{Status: status})
	if err != nil {
		sm.emitCritical(ctx, ActivityEventClaimEdit, actor, claim.ID, "failure", map[string]any{
			"from":  from,
			"to":    status,
			"error": err.Error(),
		})
		return nil, err
	}

	sm.apply(claim, updated, func(c *Claim) {
		c.Status = status
	})

	sm.emitCritical(ctx, ActivityEventClaimEdit, actor, claim.ID, "success", map[string]any{
		"from": from,
		"to":   status,
	})
	return claim, nil
}

// requireAdminReview enforces the shared precondition of the two single-use
// verification actions.
func (sm *ClaimStateMachine) requireAdminReview(ctx context.Context, action ClaimAction, actor ActorRef, claim *Claim) error {
	if claim == nil {
		return withMetadata(ErrIllegalTransition, map[string]any{"reason": "claim is nil"})
	}
	if !actor.Role.HasAny(RoleAdmin) {
		return sm.rejectRole(ctx, action, actor, claim.ID)
	}

	if claim.VerificationStatus.Processed() {
		return withMetadata(ErrAlreadyProcessed, map[string]any{
			"action":              action,
			"verification_status": claim.VerificationStatus,
		})
	}

	if claim.VerificationStatus != VerificationAdminReview {
		return sm.rejectState(ctx, action, actor, claim)
	}

	return nil
}

// apply updates the local claim from the collaborator's response, falling
// back to the computed transition when the response body is empty.
func (sm *ClaimStateMachine) apply(claim *Claim, updated *Claim, fallback func(*Claim)) {
	if updated != nil {
		*claim = *updated
		claim.EnsureStatus()
		return
	}
	fallback(claim)
}

func (sm *ClaimStateMachine) rejectRole(ctx context.Context, action ClaimAction, actor ActorRef, subjectID string) error {
	return withMetadata(ErrIllegalTransition, map[string]any{
		"action": action,
		"role":   actor.Role,
		"reason": "actor role may not trigger this action",
	})
}

func (sm *ClaimStateMachine) rejectState(ctx context.Context, action ClaimAction, actor ActorRef, claim *Claim) error {
	return withMetadata(ErrIllegalTransition, map[string]any{
		"action":              action,
		"status":              claim.Status,
		"verification_status": claim.VerificationStatus,
	})
}

func (sm *ClaimStateMachine) emitTransition(ctx context.Context, action ClaimAction, actor ActorRef, subjectID, outcome string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["action"] = string(action)

	sm.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventClaimTransition,
		Actor:     actor,
		SubjectID: subjectID,
		Outcome:   outcome,
		Metadata:  meta,
	})
}

func (sm *ClaimStateMachine) emitCritical(ctx context.Context, eventType ActivityEventType, actor ActorRef, subjectID, outcome string, meta map[string]any) {
	sm.recordActivity(ctx, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		SubjectID: subjectID,
		Outcome:   outcome,
		Severity:  SeverityCritical,
		Metadata:  meta,
	})
}

func (sm *ClaimStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	fillEventDefaults(&event, sm.now)
	sink := normalizeActivitySink(sm.sink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}
