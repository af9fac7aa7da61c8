// ABOUTME: http.RoundTripper attaching the stored access token as a bearer credential
// ABOUTME: Reads durable storage per request and reports 401 responses to a hook

package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2389/console-session/internal/dedupe"
	"github.com/2389/console-session/internal/storage"
)

// rejectionWindow bounds how often one credential can trigger onUnauthorized.
const rejectionWindow = 30 * time.Second

// BearerTransport sets "Authorization: Bearer <token>" from storage on every
// request. The token is read when the request is sent, so the header always
// matches what the session persisted.
type BearerTransport struct {
	base   http.RoundTripper
	store  storage.Storage
	key    string
	logger *slog.Logger

	now            func() time.Time // nil disables the expiry check
	fallback       func() (string, bool)
	onUnauthorized func(context.Context)
	rejected       *dedupe.Cache
}

// Option configures a BearerTransport.
type Option func(*BearerTransport)

// WithBase sets the underlying RoundTripper. Defaults to http.DefaultTransport.
func WithBase(rt http.RoundTripper) Option {
	return func(t *BearerTransport) {
		t.base = rt
	}
}

// WithExpiryCheck withholds JWT access tokens whose exp claim is not after
// now(). Tokens that are not JWTs, or carry no exp, are always sent.
func WithExpiryCheck(now func() time.Time) Option {
	return func(t *BearerTransport) {
		t.now = now
	}
}

// WithFallback supplies the token to send when storage cannot be read, such
// as the session manager's in-memory copy.
func WithFallback(fn func() (string, bool)) Option {
	return func(t *BearerTransport) {
		t.fallback = fn
	}
}

// WithOnUnauthorized registers fn to run when a request made with a stored
// credential comes back 401. Concurrent rejections of the same credential
// run fn once.
func WithOnUnauthorized(fn func(context.Context)) Option {
	return func(t *BearerTransport) {
		t.onUnauthorized = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *BearerTransport) {
		t.logger = logger
	}
}

// NewBearerTransport reads the access token under key from store.
func NewBearerTransport(store storage.Storage, key string, opts ...Option) *BearerTransport {
	t := &BearerTransport{
		base:     http.DefaultTransport,
		store:    store,
		key:      key,
		logger:   slog.Default(),
		rejected: dedupe.New(rejectionWindow, 16),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "transport")
	return t
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// modified.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	stored := t.storedToken(req.Context())
	attach := stored
	if attach != "" && t.now != nil && Expired(attach, t.now()) {
		t.logger.Debug("withholding expired access token", "key", t.key)
		attach = ""
	}

	out := req.Clone(req.Context())
	if attach != "" {
		out.Header.Set("Authorization", "Bearer "+attach)
	} else {
		out.Header.Del("Authorization")
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if stored == "" || t.onUnauthorized == nil {
		return resp, nil
	}
	fp := dedupe.Fingerprint(stored)
	if resp.StatusCode != http.StatusUnauthorized {
		// Accepted again, so a later rejection is news.
		t.rejected.Forget(fp)
		return resp, nil
	}
	if t.rejected.First(fp) {
		t.logger.Info("credential rejected by server", "url", req.URL.Redacted())
		t.onUnauthorized(req.Context())
	}
	return resp, nil
}

func (t *BearerTransport) storedToken(ctx context.Context) string {
	token, ok, err := t.store.Get(ctx, t.key)
	if err != nil {
		t.logger.Warn("reading access token", "key", t.key, "error", err)
		if t.fallback != nil {
			if token, ok := t.fallback(); ok {
				return token
			}
		}
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

// Expired reports whether token is a JWT whose exp claim is at or before now.
// The signature is not verified; only the server can do that.
func Expired(token string, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	return ok && !now.Before(exp)
}

// ExpiresAt returns the exp claim of a JWT without verifying it.
func ExpiresAt(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
