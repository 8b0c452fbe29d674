package claims

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSessionAcquired   ActivityEventType = "session.acquire.success"
	ActivityEventSessionRejected   ActivityEventType = "session.acquire.failure"
	ActivityEventSessionRestored   ActivityEventType = "session.restore.success"
	ActivityEventSessionReleased   ActivityEventType = "session.release"
	ActivityEventSessionInvalid    ActivityEventType = "session.invalidated"
	ActivityEventPasscodeRequested ActivityEventType = "challenge.request"
	ActivityEventPasscodeVerified  ActivityEventType = "challenge.verify.success"
	ActivityEventPasscodeRejected  ActivityEventType = "challenge.verify.failure"
	ActivityEventClaimTransition   ActivityEventType = "claim.transition"
	ActivityEventClaimOverride     ActivityEventType = "claim.admin_override"
	ActivityEventClaimEdit         ActivityEventType = "claim.admin_edit"
	ActivityEventUserApproval      ActivityEventType = "user.approval"
)

// ActivitySeverity ranks events for downstream filtering. Escape-hatch
// actions (admin-edit, admin-override) record critical severity.
type ActivitySeverity string

const (
	SeverityInfo     ActivitySeverity = "info"
	SeverityWarning  ActivitySeverity = "warning"
	SeverityCritical ActivitySeverity = "critical"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Role Role
	Type string
}

// SystemActor is the actor recorded for machine-initiated transitions.
func SystemActor() ActorRef {
	return ActorRef{Type: "system"}
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	SubjectID  string
	Outcome    string
	Severity   ActivitySeverity
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: a failing sink never blocks or rolls back the
// operation that emitted the event.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// fillEventDefaults stamps actor, severity, and time on an event.
func fillEventDefaults(event *ActivityEvent, now func() time.Time) {
	if event.Actor == (ActorRef{}) {
		event.Actor = SystemActor()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}
	if event.Outcome == "" {
		event.Outcome = "success"
	}
	if event.OccurredAt.IsZero() {
		if now != nil {
			event.OccurredAt = now()
		} else {
			event.OccurredAt = time.Now()
		}
	}
}
