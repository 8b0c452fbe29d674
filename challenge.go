package claims

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
)

// ChallengeState tracks the passcode challenge lifecycle.
type ChallengeState string

const (
	// ChallengeIdle means no passcode has been requested.
	ChallengeIdle ChallengeState = "idle"
	// ChallengeSent means a passcode is out and awaiting verification.
	ChallengeSent ChallengeState = "sent"
	// ChallengeVerified means the challenge has been consumed.
	ChallengeVerified ChallengeState = "verified"
)

// PasscodeCooldown is the fixed window after a send during which resend is
// disabled. It doubles as the passcode validity window.
var PasscodeCooldown = 120 * time.Second

// ChallengeFlow manages the request/verify/resend sequence for passcode
// login. A new send invalidates the previous window and restarts the
// cooldown; verification consumes the challenge.
type ChallengeFlow struct {
	api      AuthAPI
	sessions *SessionStore
	logger   Logger
	sink     ActivitySink
	now      func() time.Time
	cooldown time.Duration
	notifier func(remaining time.Duration)

	mu        sync.Mutex
	state     ChallengeState
	mobile    string
	subjectID string
	sentAt    time.Time
	done      chan struct{}
}

// ChallengeOption customizes a ChallengeFlow.
type ChallengeOption func(*ChallengeFlow)

// WithChallengeLogger overrides the logger.
func WithChallengeLogger(logger Logger) ChallengeOption {
	return func(f *ChallengeFlow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithChallengeActivitySink sets the ActivitySink for challenge events.
func WithChallengeActivitySink(sink ActivitySink) ChallengeOption {
	return func(f *ChallengeFlow) {
		f.sink = normalizeActivitySink(sink)
	}
}

// WithChallengeClock injects a custom clock (useful for tests).
func WithChallengeClock(clock func() time.Time) ChallengeOption {
	return func(f *ChallengeFlow) {
		if clock != nil {
			f.now = clock
		}
	}
}

// WithChallengeCooldown overrides the cooldown/validity window.
func WithChallengeCooldown(d time.Duration) ChallengeOption {
	return func(f *ChallengeFlow) {
		if d > 0 {
			f.cooldown = d
		}
	}
}

// WithCooldownNotifier registers a callback invoked roughly once per second
// with the remaining cooldown while a challenge is pending. The ticker is
// torn down on Close and when the cooldown reaches zero.
func WithCooldownNotifier(fn func(remaining time.Duration)) ChallengeOption {
	return func(f *ChallengeFlow) {
		f.notifier = fn
	}
}

// NewChallengeFlow returns a flow that finalizes verified challenges through
// the given SessionStore.
func NewChallengeFlow(api AuthAPI, sessions *SessionStore, opts ...ChallengeOption) *ChallengeFlow {
	f := &ChallengeFlow{
		api:      api,
		sessions: sessions,
		logger:   defLogger{},
		sink:     noopActivitySink{},
		now:      time.Now,
		cooldown: PasscodeCooldown,
		state:    ChallengeIdle,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	return f
}

// Request asks the collaborator to send a passcode to the mobile identifier.
// While a previous send's cooldown is still running the call is rejected
// with ErrCooldownActive rather than silently resent.
func (f *ChallengeFlow) Request(ctx context.Context, mobile string) error {
	normalized, err := NormalizeMobile(mobile)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == ChallengeSent {
		if remaining := f.remainingLocked(); remaining > 0 {
			return withMetadata(ErrCooldownActive, map[string]any{
				"remaining_seconds": int(remaining.Seconds()),
			})
		}
	}

	if err := f.api.SendOTP(ctx, normalized); err != nil {
		f.emit(ctx, ActivityEvent{
			EventType: ActivityEventPasscodeRequested,
			SubjectID: f.subjectFor(normalized),
			Outcome:   "failure",
			Metadata:  map[string]any{"error": err.Error()},
		})
		return err
	}

	f.beginWindowLocked(normalized)

	f.emit(ctx, ActivityEvent{
		EventType: ActivityEventPasscodeRequested,
		SubjectID: f.subjectID,
	})

	return nil
}

// Resend re-sends the passcode for the current challenge. Permitted only once
// the cooldown reaches zero; the cooldown resets to the full window
// regardless of outcome.
func (f *ChallengeFlow) Resend(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != ChallengeSent || f.mobile == "" {
		return withMetadata(ErrCodeExpired, map[string]any{
			"reason": "no challenge to resend",
		})
	}

	if remaining := f.remainingLocked(); remaining > 0 {
		return withMetadata(ErrCooldownActive, map[string]any{
			"remaining_seconds": int(remaining.Seconds()),
		})
	}

	mobile := f.mobile
	f.beginWindowLocked(mobile)

	err := f.api.SendOTP(ctx, mobile)

	event := ActivityEvent{
		EventType: ActivityEventPasscodeRequested,
		SubjectID: f.subjectID,
		Metadata:  map[string]any{"resend": true},
	}
	if err != nil {
		event.Outcome = "failure"
		event.Metadata["error"] = err.Error()
	}
	f.emit(ctx, event)

	return err
}

// Verify checks the passcode with the collaborator, consumes the challenge,
// and finalizes the session. An expired window rejects locally with
// ErrCodeExpired; the caller must Request again.
func (f *ChallengeFlow) Verify(ctx context.Context, code string) (*Session, error) {
	f.mu.Lock()

	if f.state != ChallengeSent {
		f.mu.Unlock()
		return nil, withMetadata(ErrCodeExpired, map[string]any{
			"reason": "no pending challenge",
		})
	}

	if f.now().Sub(f.sentAt) > f.cooldown {
		f.mu.Unlock()
		return nil, withMetadata(ErrCodeExpired, map[string]any{
			"sent_at": f.sentAt,
		})
	}

	mobile := f.mobile
	subject := f.subjectID
	f.mu.Unlock()

	result, err := f.api.VerifyOTP(ctx, mobile, code)
	if err != nil {
		f.emit(ctx, ActivityEvent{
			EventType: ActivityEventPasscodeRejected,
			SubjectID: subject,
			Outcome:   "failure",
			Metadata:  map[string]any{"error": err.Error()},
		})
		return nil, err
	}

	f.mu.Lock()
	f.state = ChallengeVerified
	f.stopNotifierLocked()
	f.mu.Unlock()

	f.emit(ctx, ActivityEvent{
		EventType: ActivityEventPasscodeVerified,
		SubjectID: subject,
	})

	return f.sessions.CompleteChallenge(ctx, result)
}

// State returns the current challenge state.
func (f *ChallengeFlow) State() ChallengeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Remaining returns the cooldown left before resend becomes available.
func (f *ChallengeFlow) Remaining() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remainingLocked()
}

// Close tears the flow down, cancelling the cooldown ticker. The flow must
// not be reused afterwards.
func (f *ChallengeFlow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopNotifierLocked()
	f.state = ChallengeIdle
	f.mobile = ""
}

func (f *ChallengeFlow) remainingLocked() time.Duration {
	if f.state != ChallengeSent || f.sentAt.IsZero() {
		return 0
	}
	remaining := f.cooldown - f.now().Sub(f.sentAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// beginWindowLocked restarts the cooldown window for mobile and, when a
// notifier is registered, (re)starts the countdown ticker.
func (f *ChallengeFlow) beginWindowLocked(mobile string) {
	f.mobile = mobile
	f.subjectID = f.subjectFor(mobile)
	f.sentAt = f.now()
	f.state = ChallengeSent

	if f.notifier == nil {
		return
	}

	f.stopNotifierLocked()
	done := make(chan struct{})
	f.done = done

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				remaining := f.Remaining()
				f.notifier(remaining)
				if remaining == 0 {
					return
				}
			}
		}
	}()
}

func (f *ChallengeFlow) stopNotifierLocked() {
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
}

// subjectFor derives a stable audit subject id from the mobile identifier so
// audit events correlate without recording the raw number as the id.
func (f *ChallengeFlow) subjectFor(mobile string) string {
	if id, err := hashid.NewUUID(mobile); err == nil {
		return id.String()
	}
	return "challenge"
}

func (f *ChallengeFlow) emit(ctx context.Context, event ActivityEvent) {
	fillEventDefaults(&event, f.now)
	sink := normalizeActivitySink(f.sink)
	if err := sink.Record(ctx, event); err != nil {
		f.logger.Warn("challenge activity sink error: %v", err)
	}
}
