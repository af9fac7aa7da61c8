// ABOUTME: Route guards deciding whether a navigation renders or redirects
// ABOUTME: Pure decision functions plus a profile-bound Guard and HTTP middleware

package guard

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/2389/console-session/internal/metrics"
	"github.com/2389/console-session/internal/session"
)

// Guard names used in metrics.
const (
	KindProtected  = "protected"
	KindPublicOnly = "public_only"
	KindRole       = "role"
)

// Decision is the outcome of a guard: render the target, or redirect.
type Decision struct {
	Allow      bool
	RedirectTo string
}

// Protected admits authenticated sessions and sends everyone else to loginPath.
func Protected(authenticated bool, loginPath string) Decision {
	if !authenticated {
		return Decision{RedirectTo: loginPath}
	}
	return Decision{Allow: true}
}

// PublicOnly keeps authenticated sessions out of the auth forms by sending
// them to homePath.
func PublicOnly(authenticated bool, homePath string) Decision {
	if authenticated {
		return Decision{RedirectTo: homePath}
	}
	return Decision{Allow: true}
}

// Source is the session a Guard consults. *session.Manager implements it.
type Source interface {
	State() session.State
}

// Guard evaluates navigations for one application. It holds no decision
// state; every call reads the session afresh.
type Guard struct {
	profile session.Profile
	source  Source
	logger  *slog.Logger
}

// New creates a Guard for profile. A nil source is treated as a signed-out
// session.
func New(profile session.Profile, source Source, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		profile: profile,
		source:  source,
		logger:  logger.With("component", "guard", "app", profile.Name),
	}
}

func (g *Guard) state() session.State {
	if g.source == nil {
		return session.State{}
	}
	return g.source.State()
}

// Evaluate applies PublicOnly to the profile's public-only paths and
// Protected to every other path.
func (g *Guard) Evaluate(path string) Decision {
	authenticated := g.state().Authenticated()
	if g.profile.IsPublicOnly(path) {
		return g.record(KindPublicOnly, path, PublicOnly(authenticated, g.profile.HomePath))
	}
	return g.record(KindProtected, path, Protected(authenticated, g.profile.LoginPath))
}

// RequireRole admits authenticated sessions whose role is one of roles.
// Signed-out sessions go to the login path and other roles go home, so the
// home route must not itself be role-gated.
func (g *Guard) RequireRole(roles ...session.Role) Decision {
	st := g.state()
	if !st.Authenticated() {
		return g.record(KindRole, "", Decision{RedirectTo: g.profile.LoginPath})
	}
	if !slices.Contains(roles, st.Identity.Role) {
		return g.record(KindRole, "", Decision{RedirectTo: g.profile.HomePath})
	}
	return g.record(KindRole, "", Decision{Allow: true})
}

func (g *Guard) record(kind, path string, d Decision) Decision {
	outcome := metrics.OutcomeAllow
	if !d.Allow {
		outcome = metrics.OutcomeRedirect
		g.logger.Debug("redirecting", "guard", kind, "path", path, "to", d.RedirectTo)
	}
	metrics.RecordGuardDecision(g.profile.Name, kind, outcome)
	return d
}

type contextKey struct{}

// Middleware guards every request by path. Allowed requests carry the
// signed-in identity in their context when there is one.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Evaluate(r.URL.Path)
		if !d.Allow {
			http.Redirect(w, r, d.RedirectTo, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, g.withIdentity(r))
	})
}

// RoleMiddleware returns middleware admitting only the given roles.
func (g *Guard) RoleMiddleware(roles ...session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.RequireRole(roles...)
			if !d.Allow {
				http.Redirect(w, r, d.RedirectTo, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, g.withIdentity(r))
		})
	}
}

func (g *Guard) withIdentity(r *http.Request) *http.Request {
	st := g.state()
	if st.Identity == nil {
		return r
	}
	return r.WithContext(context.WithValue(r.Context(), contextKey{}, st.Identity))
}

// IdentityFromContext returns the identity stored by the guard middleware.
func IdentityFromContext(ctx context.Context) (*session.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*session.Identity)
	return id, ok
}
