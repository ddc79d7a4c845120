// Package widget implements the support chat widget: the feed subscription,
// the send and simulated reply flow, and the view state derived from them.
package widget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nfrund/supportchat/internal/docstore"
	"github.com/nfrund/supportchat/internal/domain"
)

// FeedSubscriber opens live subscriptions on a user's chat feed.
type FeedSubscriber struct {
	store docstore.Store
	query docstore.Query
}

// NewFeedSubscriber creates a subscriber reading from store.
func NewFeedSubscriber(store docstore.Store) *FeedSubscriber {
	return &FeedSubscriber{store: store, query: docstore.FeedQuery()}
}

// FeedHandle is a running feed subscription.
type FeedHandle struct {
	path string
	sub  docstore.Subscription
	once sync.Once
}

// Path returns the collection the handle is subscribed to.
func (h *FeedHandle) Path() string {
	if h == nil {
		return ""
	}
	return h.path
}

// Stop releases the subscription. No snapshot is delivered after it
// returns. It is safe on a nil handle and idempotent.
func (h *FeedHandle) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.sub.Unsubscribe()
		slog.Debug("Feed subscription stopped", "event", "feed_stop", "feed", h.path)
	})
}

// Start subscribes to the feed of id. Every snapshot is the full current
// window, oldest first. A nil identity is not an error: Start returns a nil
// handle and delivers nothing.
func (f *FeedSubscriber) Start(ctx context.Context, id *domain.Identity, onSnapshot docstore.SnapshotFunc) (*FeedHandle, error) {
	if id == nil {
		slog.Debug("No identity, feed not started", "event", "feed_skip")
		return nil, nil
	}

	path := domain.FeedPath(*id)
	sub, err := f.store.Subscribe(ctx, path, f.query, onSnapshot)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", path, err)
	}

	slog.Debug("Feed subscription started", "event", "feed_start", "feed", path)
	return &FeedHandle{path: path, sub: sub}, nil
}

// Stop releases h. It is equivalent to h.Stop.
func (f *FeedSubscriber) Stop(h *FeedHandle) {
	h.Stop()
}
