package claims

import (
	"net/http"
	"time"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// GuardConfig carries the routing surface of the authorization gate.
type GuardConfig struct {
	// LoginRoute receives unauthenticated callers.
	LoginRoute string
	// HomeRoute receives authenticated-but-forbidden callers. The portal
	// deliberately sends them home rather than rendering a 403.
	HomeRoute string
	// RejectedRouteKey is the cookie remembering the route that was rejected
	// so login can return the caller there.
	RejectedRouteKey string
}

func (c GuardConfig) withDefaults() GuardConfig {
	if c.LoginRoute == "" {
		c.LoginRoute = "/login"
	}
	if c.HomeRoute == "" {
		c.HomeRoute = "/"
	}
	if c.RejectedRouteKey == "" {
		c.RejectedRouteKey = "rejected_route"
	}
	return c
}

// RouteGuard renders gate decisions over go-router. One guard instance
// serves every protected subtree; handlers supply only the required role set.
type RouteGuard struct {
	sessions *SessionStore
	cfg      GuardConfig
	Logger   Logger
	// LoadingHandler runs when a session is still hydrating. Guards must not
	// admit while loading; the default answers 503 with Retry-After.
	LoadingHandler func(c router.Context) error
}

// NewRouteGuard builds a guard over the session store.
func NewRouteGuard(sessions *SessionStore, cfg GuardConfig) *RouteGuard {
	g := &RouteGuard{
		sessions: sessions,
		cfg:      cfg.withDefaults(),
		Logger:   defLogger{},
	}
	g.LoadingHandler = g.defaultLoadingHandler
	return g
}

// RequireRoles guards a route with a required role set.
func (g *RouteGuard) RequireRoles(required ...Role) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session := g.sessions.Current()

			if session.IsLoading() {
				return g.LoadingHandler(ctx)
			}

			switch decision := Decide(session, required...); decision {
			case DecisionAllow:
				return hf(ctx)
			case DecisionRedirectForbidden:
				g.Logger.Info(
					"Forbidden route, redirecting home",
					"path", ctx.OriginalURL(),
					"role", session.Role(),
					"required", print.MaybePrettyJSON(required),
				)
				return ctx.Redirect(g.cfg.HomeRoute, redirectStatus(ctx))
			default:
				g.SetRedirect(ctx)
				return ctx.Redirect(g.cfg.LoginRoute, redirectStatus(ctx))
			}
		}
	}
}

// Protect applies a RouteTable: the required set comes from the request path.
func (g *RouteGuard) Protect(table *RouteTable) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			required, protected := table.RequiredFor(ctx.Path())
			if !protected {
				return hf(ctx)
			}
			return g.RequireRoles(required...)(hf)(ctx)
		}
	}
}

// SetRedirect remembers the rejected route so login can send the caller back.
func (g *RouteGuard) SetRedirect(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     g.cfg.RejectedRouteKey,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirect pops the remembered rejected route, falling back to def.
func (g *RouteGuard) GetRedirect(ctx router.Context, def string) string {
	r := ctx.Cookies(g.cfg.RejectedRouteKey)
	if r == "" {
		return def
	}
	g.cookieDel(ctx, g.cfg.RejectedRouteKey)
	return r
}

func (g *RouteGuard) defaultLoadingHandler(ctx router.Context) error {
	return ctx.SetHeader("Retry-After", "1").NoContent(http.StatusServiceUnavailable)
}

func (g *RouteGuard) cookieDel(ctx router.Context, name string) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func redirectStatus(ctx router.Context) int {
	if ctx.Method() == string(router.GET) {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
