// ABOUTME: Tests for route guard decisions and the HTTP middleware
// ABOUTME: Uses real session managers over in-memory storage

package guard

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/console-session/internal/session"
	"github.com/2389/console-session/internal/storage"
)

func newManager(t *testing.T, profile session.Profile, role session.Role) *session.Manager {
	t.Helper()
	ctx := t.Context()
	m := session.NewManager(ctx, profile, storage.NewMemoryStorage())
	if role != "" {
		id := session.Identity{ID: "u-1", Email: "u@x.com", FirstName: "U", LastName: "Ser", Role: role}
		require.NoError(t, m.SetAuth(ctx, id, session.Credentials{AccessToken: "tok"}, nil))
	}
	return m
}

func TestProtected(t *testing.T) {
	assert.Equal(t, Decision{RedirectTo: "/login"}, Protected(false, "/login"))
	assert.Equal(t, Decision{Allow: true}, Protected(true, "/login"))
}

func TestPublicOnly(t *testing.T) {
	assert.Equal(t, Decision{RedirectTo: "/dashboard"}, PublicOnly(true, "/dashboard"))
	assert.Equal(t, Decision{RedirectTo: "/"}, PublicOnly(true, "/"))
	assert.Equal(t, Decision{Allow: true}, PublicOnly(false, "/"))
}

func TestGuard_Evaluate(t *testing.T) {
	tests := []struct {
		name    string
		profile session.Profile
		role    session.Role
		path    string
		want    Decision
	}{
		{"partner signed out protected", session.PartnerProfile(), "", "/dashboard", Decision{RedirectTo: "/login"}},
		{"partner signed out login", session.PartnerProfile(), "", "/login", Decision{Allow: true}},
		{"partner signed out register", session.PartnerProfile(), "", "/register", Decision{Allow: true}},
		{"partner signed in forgot password", session.PartnerProfile(), session.RoleStaff, "/forgot-password", Decision{RedirectTo: "/dashboard"}},
		{"partner signed in protected", session.PartnerProfile(), session.RoleStaff, "/orders", Decision{Allow: true}},
		{"admin signed out root", session.AdminProfile(), "", "/", Decision{RedirectTo: "/login"}},
		{"admin signed in login", session.AdminProfile(), session.RoleSupport, "/login", Decision{RedirectTo: "/"}},
		{"admin register is protected", session.AdminProfile(), "", "/register", Decision{RedirectTo: "/login"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.profile, newManager(t, tt.profile, tt.role), nil)
			assert.Equal(t, tt.want, g.Evaluate(tt.path))
		})
	}
}

func TestGuard_NilSourceIsSignedOut(t *testing.T) {
	g := New(session.AdminProfile(), nil, nil)
	assert.Equal(t, Decision{RedirectTo: "/login"}, g.Evaluate("/users"))
	assert.Equal(t, Decision{Allow: true}, g.Evaluate("/login"))
}

func TestGuard_NoCachedDecision(t *testing.T) {
	ctx := t.Context()
	m := newManager(t, session.PartnerProfile(), session.RoleViewer)
	g := New(session.PartnerProfile(), m, nil)

	assert.True(t, g.Evaluate("/dashboard").Allow)
	m.Logout(ctx)
	assert.Equal(t, Decision{RedirectTo: "/login"}, g.Evaluate("/dashboard"))
}

func TestGuard_RequireRole(t *testing.T) {
	profile := session.PartnerProfile()

	signedOut := New(profile, newManager(t, profile, ""), nil)
	assert.Equal(t, Decision{RedirectTo: "/login"}, signedOut.RequireRole(session.RoleAdmin))

	viewer := New(profile, newManager(t, profile, session.RoleViewer), nil)
	assert.Equal(t, Decision{RedirectTo: "/dashboard"}, viewer.RequireRole(session.RoleAdmin, session.RoleManager))

	manager := New(profile, newManager(t, profile, session.RoleManager), nil)
	assert.Equal(t, Decision{Allow: true}, manager.RequireRole(session.RoleAdmin, session.RoleManager))
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, found := IdentityFromContext(r.Context())
		if found {
			w.Header().Set("X-User", id.ID)
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("signed out is redirected", func(t *testing.T) {
		g := New(session.PartnerProfile(), newManager(t, session.PartnerProfile(), ""), nil)
		rec := httptest.NewRecorder()
		g.Middleware(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("signed in passes identity", func(t *testing.T) {
		g := New(session.PartnerProfile(), newManager(t, session.PartnerProfile(), session.RoleStaff), nil)
		rec := httptest.NewRecorder()
		g.Middleware(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u-1", rec.Header().Get("X-User"))
	})

	t.Run("signed in login redirects home", func(t *testing.T) {
		g := New(session.AdminProfile(), newManager(t, session.AdminProfile(), session.RoleAdmin), nil)
		rec := httptest.NewRecorder()
		g.Middleware(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	})

	t.Run("role middleware", func(t *testing.T) {
		g := New(session.AdminProfile(), newManager(t, session.AdminProfile(), session.RoleSupport), nil)
		h := g.RoleMiddleware(session.RoleSuperAdmin)(ok)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admins", nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	})
}
