// Package claims implements the core of an insurance-claims portal: the claim
// verification state machine, role-based authorization gate, session
// lifecycle, and passcode challenge flow, all specified against a REST
// collaborator that owns persistence and rendering.
//
// Claim lifecycle:
//   - Claims carry a business Status and an orthogonal VerificationStatus.
//     ClaimStateMachine centralizes the joint transition table, actor role
//     checks, and the no-partial-application rule. Single-use verification
//     actions fail with ErrAlreadyProcessed on repeat so concurrent admin
//     sessions can tell a benign race from a no-op.
//
// Sessions:
//   - SessionStore exclusively owns the bearer token. Acquire/Restore/Refresh
//     hydrate the authoritative Principal via GET /auth/me; hydration calls
//     are serialized per store so a stale response never overwrites a fresher
//     one. A token without a hydrated Principal is "loading", never
//     "authenticated".
//
// Authorization:
//   - Decide is the single table-driven decision function mapping a session
//     and a required role set to allow/redirect outcomes. SUPER_ADMIN
//     subsumes ADMIN; the reverse never holds. RouteGuard renders the
//     decisions over go-router.
//
// Audit:
//   - Every state-changing operation emits an ActivityEvent. Sinks run
//     best-effort so emission never blocks the primary operation; QueuedSink
//     retries failures and can spool them durably, because audit completeness
//     is a compliance requirement for claim overrides.
package claims
