package claims

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"golang.org/x/sync/singleflight"
)

// WellKnownTokenKey is the single storage key under which the bearer token is
// persisted. No other durable client-side state exists in this core.
const WellKnownTokenKey = "claims.auth.token"

// SessionStore exclusively owns the bearer token and the current Session.
// Identical concurrent hydrations collapse into one profile round trip, and
// a hydration result for a token that is no longer current is discarded, so
// a stale hydration can never overwrite a fresher session.
type SessionStore struct {
	api    AuthAPI
	tokens TokenStore
	logger Logger
	sink   ActivitySink
	now    func() time.Time

	// flight serializes the state mutations around hydration; group collapses
	// identical concurrent hydrations of the same token into one round trip.
	// The Me call itself runs outside flight so waiters share a single
	// request instead of queueing their own.
	flight sync.Mutex
	group  singleflight.Group

	mu      sync.RWMutex
	current *Session
}

// SessionStoreOption customizes a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithSessionLogger overrides the logger.
func WithSessionLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionActivitySink sets the ActivitySink used for session events.
func WithSessionActivitySink(sink ActivitySink) SessionStoreOption {
	return func(s *SessionStore) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewSessionStore returns a store bound to the collaborator's auth surface
// and a token store.
func NewSessionStore(api AuthAPI, tokens TokenStore, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		api:    api,
		tokens: tokens,
		logger: defLogger{},
		sink:   noopActivitySink{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Acquire exchanges credentials for a token, persists it, and hydrates the
// authoritative profile. A 401/403 during hydration discards the just-issued
// token entirely and surfaces ErrInvalidCredentials.
func (s *SessionStore) Acquire(ctx context.Context, creds Credentials) (*Session, error) {
	result, err := s.api.Login(ctx, creds)
	if err != nil {
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventSessionRejected,
			Outcome:   "failure",
			Metadata:  map[string]any{"identifier": creds.Email, "error": err.Error()},
		})
		return nil, err
	}

	return s.complete(ctx, result, "password")
}

// CompleteChallenge finalizes a session from a verified passcode exchange.
// Used by ChallengeFlow; shares Acquire's hydration and invalidation rules.
func (s *SessionStore) CompleteChallenge(ctx context.Context, result *AuthResult) (*Session, error) {
	return s.complete(ctx, result, "otp")
}

func (s *SessionStore) complete(ctx context.Context, result *AuthResult, method string) (*Session, error) {
	if result == nil || result.Token == "" {
		return nil, withMetadata(ErrInvalidCredentials, map[string]any{
			"reason": "exchange returned no token",
			"method": method,
		})
	}

	s.flight.Lock()
	if err := s.tokens.Put(ctx, result.Token); err != nil {
		s.logger.Warn("failed to persist token, session will not survive restart: %v", err)
	}
	s.flight.Unlock()

	principal, err := s.hydrate(ctx, result.Token)

	s.flight.Lock()
	defer s.flight.Unlock()

	if err != nil {
		if IsAuthRejection(err) {
			s.discardToken(ctx)
			s.setCurrent(nil)
			s.emit(ctx, ActivityEvent{
				EventType: ActivityEventSessionRejected,
				Outcome:   "failure",
				Metadata:  map[string]any{"method": method, "error": err.Error()},
			})
			return nil, withMetadata(ErrInvalidCredentials, map[string]any{"method": method})
		}

		if result.Principal == nil {
			// Token is presumed good; a later Restore retries hydration.
			s.emit(ctx, ActivityEvent{
				EventType: ActivityEventSessionRejected,
				Outcome:   "failure",
				Metadata:  map[string]any{"method": method, "error": err.Error()},
			})
			return nil, err
		}

		// Degraded hydration: complete with the exchange's fallback snapshot.
		s.logger.Warn("hydration failed, completing session with fallback principal: %v", err)
		principal = result.Principal
	}

	if err := principal.CanAuthenticate(); err != nil {
		s.discardToken(ctx)
		s.setCurrent(nil)
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventSessionRejected,
			Actor:     ActorRef{ID: principal.ID, Role: principal.Role, Type: "user"},
			Outcome:   "failure",
			Metadata:  map[string]any{"method": method, "status": principal.Status},
		})
		return nil, err
	}

	hydratedAt := s.now()
	session := &Session{
		Token:      result.Token,
		Principal:  principal,
		HydratedAt: &hydratedAt,
		Fallback:   principal == result.Principal,
	}
	s.setCurrent(session)

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventSessionAcquired,
		Actor:     session.Actor(),
		SubjectID: principal.ID,
		Metadata:  map[string]any{"method": method, "fallback": session.Fallback},
	})

	return session, nil
}

// Restore re-hydrates a persisted token on process start. A 401/403 clears
// the token and returns (nil, nil). Any other transport error leaves the
// token in place and returns the loading session alongside the error, so the
// caller can retry later instead of treating the user as unauthenticated.
func (s *SessionStore) Restore(ctx context.Context) (*Session, error) {
	s.flight.Lock()
	token, err := s.tokens.Get(ctx)
	s.flight.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read persisted token")
	}

	if token == "" {
		return nil, nil
	}

	principal, err := s.hydrate(ctx, token)

	s.flight.Lock()
	defer s.flight.Unlock()

	// A fresher session may have been published while the round trip ran;
	// its state wins over this hydration's.
	if !s.tokenStillCurrent(token) {
		return s.Current(), nil
	}

	if err != nil {
		if IsAuthRejection(err) {
			s.discardToken(ctx)
			s.setCurrent(nil)
			s.emit(ctx, ActivityEvent{
				EventType: ActivityEventSessionInvalid,
				Outcome:   "failure",
				Metadata:  map[string]any{"during": "restore"},
			})
			return nil, nil
		}

		loading := &Session{Token: token}
		s.setCurrent(loading)
		return loading, err
	}

	if err := principal.CanAuthenticate(); err != nil {
		s.discardToken(ctx)
		s.setCurrent(nil)
		return nil, err
	}

	hydratedAt := s.now()
	session := &Session{Token: token, Principal: principal, HydratedAt: &hydratedAt}
	s.setCurrent(session)

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventSessionRestored,
		Actor:     session.Actor(),
		SubjectID: principal.ID,
	})

	return session, nil
}

// Refresh re-runs hydration against the existing token. Used after any
// mutation that might change the principal's own role or approval status.
// On a retryable failure the previous snapshot stays in place.
func (s *SessionStore) Refresh(ctx context.Context) (*Session, error) {
	token, ok := s.CurrentToken()
	if !ok {
		return nil, withMetadata(ErrUnauthorized, map[string]any{"reason": "no session to refresh"})
	}

	principal, err := s.hydrate(ctx, token)

	s.flight.Lock()
	defer s.flight.Unlock()

	if !s.tokenStillCurrent(token) {
		return s.Current(), nil
	}

	if err != nil {
		if IsAuthRejection(err) {
			s.invalidate(ctx, "refresh")
			return nil, err
		}
		return s.Current(), err
	}

	if err := principal.CanAuthenticate(); err != nil {
		s.invalidate(ctx, "refresh")
		return nil, err
	}

	hydratedAt := s.now()
	session := &Session{Token: token, Principal: principal, HydratedAt: &hydratedAt}
	s.setCurrent(session)

	return session, nil
}

// Release clears the token and Principal unconditionally. No network call is
// required for it to succeed.
func (s *SessionStore) Release(ctx context.Context) {
	s.flight.Lock()
	defer s.flight.Unlock()

	actor := s.Current().Actor()
	s.discardToken(ctx)
	s.setCurrent(nil)

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventSessionReleased,
		Actor:     actor,
	})
}

// Invalidate discards the session after a 401 from any authenticated call.
// Wired as the transport's unauthorized hook; safe to call concurrently.
func (s *SessionStore) Invalidate(ctx context.Context) {
	s.invalidate(ctx, "unauthorized response")
}

func (s *SessionStore) invalidate(ctx context.Context, reason string) {
	s.discardToken(ctx)
	s.setCurrent(nil)
	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventSessionInvalid,
		Outcome:   "failure",
		Metadata:  map[string]any{"reason": reason},
	})
}

// Current returns the session as last hydrated, which may be nil or loading.
func (s *SessionStore) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CurrentToken implements TokenSource.
func (s *SessionStore) CurrentToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.Token == "" {
		return "", false
	}
	return s.current.Token, true
}

// tokenStillCurrent reports whether a hydration result for token may still
// be published. Caller holds flight.
func (s *SessionStore) tokenStillCurrent(token string) bool {
	current, ok := s.CurrentToken()
	return !ok || current == token
}

// hydrate runs the profile round trip through the singleflight group so
// concurrent callers waiting on the same token share one request. Must not
// be called with flight held.
func (s *SessionStore) hydrate(ctx context.Context, token string) (*Principal, error) {
	v, err, _ := s.group.Do(token, func() (any, error) {
		return s.api.Me(ctx, token)
	})
	if err != nil {
		return nil, err
	}

	principal, ok := v.(*Principal)
	if !ok || principal == nil {
		return nil, errors.New("hydration returned no principal", errors.CategoryInternal)
	}
	return principal, nil
}

func (s *SessionStore) setCurrent(session *Session) {
	s.mu.Lock()
	s.current = session
	s.mu.Unlock()
}

func (s *SessionStore) discardToken(ctx context.Context) {
	if err := s.tokens.Delete(ctx); err != nil {
		s.logger.Warn("failed to delete persisted token: %v", err)
	}
}

func (s *SessionStore) emit(ctx context.Context, event ActivityEvent) {
	fillEventDefaults(&event, s.now)
	sink := normalizeActivitySink(s.sink)
	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("session activity sink error: %v", err)
	}
}
