// ABOUTME: Poller reports changes made to a storage by other processes
// ABOUTME: It diffs a fixed key set on an interval and emits the same Events as a Hub

package storage

import (
	"context"
	"log/slog"
	"time"
)

// Poller watches a fixed set of keys by reading them on an interval. It
// stands in for a Hub when the writers live in other processes sharing the
// same SQLite file.
type Poller struct {
	store    Storage
	keys     []string
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller creates a poller over keys. Pass nil logger for default.
func NewPoller(store Storage, keys []string, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		store:    store,
		keys:     append([]string(nil), keys...),
		interval: interval,
		logger:   logger.With("component", "storage_poller"),
	}
}

// Watch returns changes observed after the call until ctx is cancelled, at
// which point the channel is closed.
func (p *Poller) Watch(ctx context.Context) <-chan Event {
	ch := make(chan Event, subscriberBufferSize)
	last, _ := p.read(ctx)

	go func() {
		defer close(ch)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			cur, ok := p.read(ctx)
			if !ok {
				continue
			}
			for _, ev := range diff(p.keys, last, cur) {
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
			last = cur
		}
	}()

	return ch
}

// read returns the present keys and their values. ok is false if any read
// failed, so a flaky store never looks like a removal.
func (p *Poller) read(ctx context.Context) (map[string]string, bool) {
	values := make(map[string]string, len(p.keys))
	for _, key := range p.keys {
		v, found, err := p.store.Get(ctx, key)
		if err != nil {
			p.logger.Debug("poll read failed", "key", key, "error", err)
			return nil, false
		}
		if found {
			values[key] = v
		}
	}
	return values, true
}

func diff(keys []string, before, after map[string]string) []Event {
	var events []Event
	for _, key := range keys {
		old, had := before[key]
		cur, has := after[key]
		switch {
		case has && (!had || old != cur):
			events = append(events, Event{Key: key, OldValue: old, NewValue: cur})
		case had && !has:
			events = append(events, Event{Key: key, OldValue: old, Removed: true})
		}
	}
	return events
}
