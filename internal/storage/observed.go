// ABOUTME: Per-tab view over a shared Storage that publishes its writes to a Hub
// ABOUTME: Other views receive the change; the writing view does not

package storage

import (
	"context"

	"github.com/google/uuid"
)

// Observed is one view (one "tab") of a Storage shared with other views.
// Closing an Observed only ends its subscription; the shared Storage belongs to
// whoever created it.
type Observed struct {
	Storage
	hub *Hub
	id  string
}

// NewObserved creates a view over shared that publishes writes to hub.
func NewObserved(shared Storage, hub *Hub) *Observed {
	return &Observed{
		Storage: shared,
		hub:     hub,
		id:      uuid.New().String(),
	}
}

// ID returns the view's subscriber id.
func (o *Observed) ID() string {
	return o.id
}

// Watch returns the changes made by other views until ctx is cancelled.
func (o *Observed) Watch(ctx context.Context) <-chan Event {
	ch, _ := o.hub.Subscribe(ctx, o.id)
	return ch
}

// Set implements Storage and publishes the change to other views.
func (o *Observed) Set(ctx context.Context, key, value string) error {
	old, _, _ := o.Storage.Get(ctx, key)
	if err := o.Storage.Set(ctx, key, value); err != nil {
		return err
	}
	o.hub.Publish(Event{Key: key, OldValue: old, NewValue: value}, o.id)
	return nil
}

// Remove implements Storage and publishes the removal to other views.
func (o *Observed) Remove(ctx context.Context, key string) error {
	old, existed, _ := o.Storage.Get(ctx, key)
	if err := o.Storage.Remove(ctx, key); err != nil {
		return err
	}
	if existed {
		o.hub.Publish(Event{Key: key, OldValue: old, Removed: true}, o.id)
	}
	return nil
}

// Close ends this view's subscription without closing the shared storage.
func (o *Observed) Close() error {
	o.hub.Unsubscribe(o.id)
	return nil
}
