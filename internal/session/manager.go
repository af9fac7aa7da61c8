// ABOUTME: Manager owns one application's session state and mirrors it to durable storage
// ABOUTME: Mutations validate first, update memory, persist, then notify subscribers outside the lock

package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/2389/console-session/internal/metrics"
	"github.com/2389/console-session/internal/storage"
)

// Manager is the session container for a single application. It is safe for
// concurrent use.
type Manager struct {
	profile Profile
	store   storage.Storage
	logger  *slog.Logger

	mu    sync.RWMutex
	state State

	subMu      sync.Mutex
	subs       map[int]func(State)
	nextSubID  int
	notifyLock sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for storage and lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager builds a Manager and hydrates it from store. Unreadable or
// malformed snapshots yield the empty session, never an error. Stray
// credential keys left without a matching snapshot are cleared.
func NewManager(ctx context.Context, profile Profile, store storage.Storage, opts ...Option) *Manager {
	m := &Manager{
		profile: profile,
		store:   store,
		logger:  slog.Default(),
		subs:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session", "app", profile.Name)

	st, ok := m.load(ctx)
	m.state = st
	if ok {
		m.reconcileLocked(ctx)
	}
	if st.Authenticated() {
		m.logger.Info("session restored", "user_id", st.Identity.ID, "role", st.Identity.Role)
	}
	return m
}

// Profile returns the application profile this manager serves.
func (m *Manager) Profile() Profile {
	return m.profile
}

// State returns a copy of the current session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// IsAuthenticated reports whether an identity and access token are present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Authenticated()
}

// AccessToken returns the in-memory access token.
func (m *Manager) AccessToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Credentials.AccessToken, m.state.Credentials.AccessToken != ""
}

// SetAuth replaces the session with a freshly authenticated one and clears
// the loading flag. Nothing changes if validation fails. org is only accepted by profiles with
// organizations and may be nil.
func (m *Manager) SetAuth(ctx context.Context, identity Identity, creds Credentials, org *Organization) error {
	if err := m.profile.validateAuth(identity, creds, org); err != nil {
		metrics.RecordMutation(m.profile.Name, "set_auth", metrics.OutcomeInvalid)
		m.logger.Warn("rejected credentials", "error", err)
		return err
	}

	next := State{
		Identity:    &identity,
		Credentials: creds,
	}
	if org != nil {
		o := *org
		next.Organization = &o
	}

	m.mu.Lock()
	m.state = next
	m.persistLocked(ctx)
	m.mu.Unlock()

	metrics.RecordMutation(m.profile.Name, "set_auth", metrics.OutcomeOK)
	m.logger.Info("session established", "user_id", identity.ID, "role", identity.Role, "credentials", creds)
	m.notify()
	return nil
}

// Logout clears the session and its durable keys. Calling it on an empty
// session is harmless.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	was := m.state.Authenticated()
	m.state = State{}
	m.persistLocked(ctx)
	m.mu.Unlock()

	metrics.RecordMutation(m.profile.Name, "logout", metrics.OutcomeOK)
	if was {
		m.logger.Info("session cleared")
	}
	m.notify()
}

// UpdateIdentity merges patch into the current identity.
func (m *Manager) UpdateIdentity(ctx context.Context, patch IdentityPatch) error {
	m.mu.Lock()
	if m.state.Identity == nil {
		m.mu.Unlock()
		metrics.RecordMutation(m.profile.Name, "update_identity", metrics.OutcomeRejected)
		return ErrNoActiveSession
	}
	merged := patch.apply(*m.state.Identity)
	if err := m.profile.validateIdentity(merged); err != nil {
		m.mu.Unlock()
		metrics.RecordMutation(m.profile.Name, "update_identity", metrics.OutcomeInvalid)
		return err
	}
	m.state.Identity = &merged
	m.persistLocked(ctx)
	m.mu.Unlock()

	metrics.RecordMutation(m.profile.Name, "update_identity", metrics.OutcomeOK)
	m.notify()
	return nil
}

// UpdateOrganization merges patch into the current organization.
func (m *Manager) UpdateOrganization(ctx context.Context, patch OrganizationPatch) error {
	if !m.profile.HasOrganization {
		metrics.RecordMutation(m.profile.Name, "update_organization", metrics.OutcomeRejected)
		return ErrOrganizationUnsupported
	}

	m.mu.Lock()
	if m.state.Organization == nil {
		m.mu.Unlock()
		metrics.RecordMutation(m.profile.Name, "update_organization", metrics.OutcomeRejected)
		return ErrNoActiveSession
	}
	merged := patch.apply(*m.state.Organization)
	if err := m.profile.validateOrganization(merged); err != nil {
		m.mu.Unlock()
		metrics.RecordMutation(m.profile.Name, "update_organization", metrics.OutcomeInvalid)
		return err
	}
	m.state.Organization = &merged
	m.persistLocked(ctx)
	m.mu.Unlock()

	metrics.RecordMutation(m.profile.Name, "update_organization", metrics.OutcomeOK)
	m.notify()
	return nil
}

// SetLoading toggles the transient loading flag. It is never persisted and
// is ignored by profiles without one.
func (m *Manager) SetLoading(loading bool) {
	if !m.profile.HasLoading {
		return
	}
	m.mu.Lock()
	if m.state.Loading == loading {
		m.mu.Unlock()
		return
	}
	m.state.Loading = loading
	m.mu.Unlock()

	m.notify()
}

// Subscribe registers fn to receive the state after every change. The
// returned function removes the subscription. Deliveries are serialized, so
// fn must not call mutating methods on the same Manager.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

// notify delivers the current state to subscribers in registration order.
// Reading the state under notifyLock means the last delivery of a burst of
// concurrent mutations always carries the final state.
func (m *Manager) notify() {
	m.notifyLock.Lock()
	defer m.notifyLock.Unlock()

	snap := m.State()

	m.subMu.Lock()
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	fns := make([]func(State), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, m.subs[id])
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(snap.clone())
	}
}

// load reads the snapshot. ok is false when storage could not be read, in
// which case the durable keys must be left alone.
func (m *Manager) load(ctx context.Context) (State, bool) {
	raw, found, err := m.store.Get(ctx, m.profile.SnapshotKey)
	if err != nil {
		m.storageFailed("read", m.profile.SnapshotKey, err)
		return State{}, false
	}
	if !found {
		return State{}, true
	}
	st, err := decodeSnapshot(m.profile, raw)
	if err != nil {
		if errors.Is(err, ErrMalformedSnapshot) {
			m.logger.Warn("ignoring stored session", "error", err)
		} else {
			m.logger.Error("decoding stored session", "error", err)
		}
		return State{}, true
	}
	return st, true
}

// persistLocked mirrors m.state to durable storage: token keys first, then
// the snapshot. An unauthenticated state removes every key. Failures are
// logged and counted; the in-memory state stays authoritative.
func (m *Manager) persistLocked(ctx context.Context) {
	st := m.state
	if !st.Authenticated() {
		for _, key := range m.profile.Keys() {
			m.remove(ctx, key)
		}
		return
	}

	m.set(ctx, m.profile.AccessTokenKey, st.Credentials.AccessToken)
	if m.profile.HasRefreshToken() {
		if st.Credentials.RefreshToken != "" {
			m.set(ctx, m.profile.RefreshTokenKey, st.Credentials.RefreshToken)
		} else {
			m.remove(ctx, m.profile.RefreshTokenKey)
		}
	}

	snapshot, err := encodeSnapshot(m.profile, st)
	if err != nil {
		m.logger.Error("encoding session snapshot", "error", err)
		return
	}
	m.set(ctx, m.profile.SnapshotKey, snapshot)
}

// reconcileLocked brings the token keys in line with a freshly loaded state
// and drops snapshots that did not yield a session.
func (m *Manager) reconcileLocked(ctx context.Context) {
	st := m.state
	want := make(map[string]string)
	if st.Authenticated() {
		want[m.profile.AccessTokenKey] = st.Credentials.AccessToken
		if m.profile.HasRefreshToken() && st.Credentials.RefreshToken != "" {
			want[m.profile.RefreshTokenKey] = st.Credentials.RefreshToken
		}
	}

	for _, key := range m.profile.Keys() {
		if key == m.profile.SnapshotKey && st.Authenticated() {
			continue
		}
		current, found, err := m.store.Get(ctx, key)
		if err != nil {
			m.storageFailed("read", key, err)
			continue
		}
		value, keep := want[key]
		switch {
		case keep && (!found || current != value):
			m.set(ctx, key, value)
		case !keep && found:
			m.remove(ctx, key)
		}
	}
}

func (m *Manager) set(ctx context.Context, key, value string) {
	if err := m.store.Set(ctx, key, value); err != nil {
		m.storageFailed("write", key, err)
	}
}

func (m *Manager) remove(ctx context.Context, key string) {
	if err := m.store.Remove(ctx, key); err != nil {
		m.storageFailed("remove", key, err)
	}
}

func (m *Manager) storageFailed(op, key string, err error) {
	metrics.RecordStorageFailure(m.profile.Name, op)
	m.logger.Warn("session storage unavailable", "op", op, "key", key, "error", err)
}
