// ABOUTME: Cross-view reconciliation: reload the session when another view rewrites its snapshot
// ABOUTME: Storage is last-write-wins, so every view converges on whatever the store holds

package session

import (
	"context"

	"github.com/2389/console-session/internal/storage"
)

// Watcher delivers changes made to shared storage by other views.
type Watcher interface {
	Watch(ctx context.Context) <-chan storage.Event
}

// Sync subscribes to w and, until ctx is cancelled or the event stream ends,
// reloads the session whenever the snapshot key changes. The subscription is
// in place when Sync returns; the returned channel closes when the
// background loop exits.
func (m *Manager) Sync(ctx context.Context, w Watcher) <-chan struct{} {
	events := w.Watch(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Key != m.profile.SnapshotKey {
					continue
				}
				m.reload(ctx)
			}
		}
	}()

	return done
}

// reload replaces the in-memory session with the stored one without writing
// back. The transient loading flag is kept. The read happens under m.mu so a
// local mutation cannot land between the read and the assignment.
func (m *Manager) reload(ctx context.Context) {
	m.mu.Lock()
	st, ok := m.load(ctx)
	if !ok {
		m.mu.Unlock()
		return
	}
	st.Loading = m.state.Loading
	changed := !sameSession(m.state, st)
	m.state = st
	m.mu.Unlock()

	if !changed {
		return
	}
	if st.Authenticated() {
		m.logger.Debug("session updated by another view", "user_id", st.Identity.ID)
	} else {
		m.logger.Debug("session cleared by another view")
	}
	m.notify()
}

func sameSession(a, b State) bool {
	if a.Credentials != b.Credentials {
		return false
	}
	if (a.Identity == nil) != (b.Identity == nil) || (a.Identity != nil && *a.Identity != *b.Identity) {
		return false
	}
	if (a.Organization == nil) != (b.Organization == nil) || (a.Organization != nil && *a.Organization != *b.Organization) {
		return false
	}
	return true
}
