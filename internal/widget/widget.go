package widget

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nfrund/supportchat/internal/domain"
	"github.com/nfrund/supportchat/internal/eventloop"
	"github.com/nfrund/supportchat/internal/identity"
)

// ChangeKind tells a listener what happened.
type ChangeKind string

const (
	// ChangeState means the view state changed and should be re-rendered.
	ChangeState ChangeKind = "state"
	// ChangeScroll asks the view to scroll to the latest message.
	ChangeScroll ChangeKind = "scroll"
)

// Change is delivered to a Listener after every view update.
type Change struct {
	Kind  ChangeKind
	State ViewState
}

// Listener observes a widget. It runs on the widget's event loop and must
// not block or call Unmount.
type Listener func(Change)

// Dependencies holds the collaborators a Widget needs.
type Dependencies struct {
	Feeds       *FeedSubscriber
	Coordinator *Coordinator
	Identity    identity.Provider
}

// Widget is one mounted chat panel. All state changes run on a private event
// loop, so store deliveries, timers and user actions never interleave.
type Widget struct {
	ctx      context.Context
	deps     Dependencies
	listener Listener
	loop     *eventloop.Loop

	// Owned by the loop.
	state ViewState
	feed  *FeedHandle
	gen   uint64

	mu       sync.RWMutex
	snapshot ViewState

	// Handles started off the loop and not yet adopted by it. Unmount stops
	// whatever is left once the loop has exited.
	feedMu    sync.Mutex
	inflight  map[*FeedHandle]struct{}
	unmounted bool

	unmount sync.Once
}

// New mounts a widget. ctx scopes identity lookups and subscriptions; the
// widget stays mounted until Unmount.
func New(ctx context.Context, deps Dependencies, listener Listener) *Widget {
	if deps.Identity == nil {
		deps.Identity = identity.Static(nil)
	}
	w := &Widget{
		ctx:      ctx,
		deps:     deps,
		listener: listener,
		loop:     eventloop.New("widget").Start(),
	}
	return w
}

// State returns a copy of the latest view state.
func (w *Widget) State() ViewState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot.Clone()
}

// Open shows the panel, requests a scroll to the latest message and starts
// the feed subscription. Opening an open panel does nothing.
func (w *Widget) Open() {
	w.loop.Post(func() {
		if w.state.PanelOpen {
			return
		}
		w.state.PanelOpen = true
		w.state.ScrollSeq++
		w.emit(ChangeState)
		w.emit(ChangeScroll)
		w.startFeed()
	})
}

// Close hides the panel and releases the feed subscription. The last
// snapshot is kept but no further updates arrive until the panel reopens.
func (w *Widget) Close() {
	w.loop.Post(func() {
		if !w.state.PanelOpen {
			return
		}
		w.state.PanelOpen = false
		w.stopFeed()
		w.emit(ChangeState)
	})
}

// SetDraft replaces the text being composed.
func (w *Widget) SetDraft(text string) {
	w.loop.Post(func() {
		if w.state.Draft == text {
			return
		}
		w.state.Draft = text
		w.emit(ChangeState)
	})
}

// Submit sends the current draft. A blank draft or a signed out user leaves
// the state untouched. Otherwise the typing indicator turns on, the draft is
// cleared right away, and typing turns off when the support reply settles.
func (w *Widget) Submit() {
	w.loop.Post(func() {
		id := w.deps.Identity.CurrentIdentity(w.ctx)
		accepted := w.deps.Coordinator.Submit(w.ctx, w.state.Draft, id, func() {
			w.loop.Post(func() {
				w.state.Typing = false
				w.emit(ChangeState)
			})
		})
		if !accepted {
			return
		}
		w.state.Typing = true
		w.state.Draft = ""
		w.emit(ChangeState)
	})
}

// Unmount tears the widget down: the subscription is released, pending
// updates are dropped and the listener is not called again once Unmount
// returns. Replies already scheduled still get written. Unmount must not be
// called from the listener.
func (w *Widget) Unmount() {
	w.unmount.Do(func() {
		w.loop.Post(func() {
			w.stopFeed()
			w.loop.Stop()
		})
		<-w.loop.Done()

		w.feedMu.Lock()
		w.unmounted = true
		pending := w.inflight
		w.inflight = nil
		w.feedMu.Unlock()
		for h := range pending {
			h.Stop()
		}
		slog.Debug("Widget unmounted", "event", "widget_unmount")
	})
}

func (w *Widget) startFeed() {
	w.gen++
	gen := w.gen
	id := w.deps.Identity.CurrentIdentity(w.ctx)
	if id == nil {
		return
	}

	onSnapshot := func(msgs []domain.Message) {
		w.loop.Post(func() { w.applySnapshot(gen, msgs) })
	}

	// Subscribing may wait on the network, so it runs off the loop and the
	// handle is adopted only if the panel is still open for this generation.
	go func() {
		h, err := w.deps.Feeds.Start(w.ctx, id, onSnapshot)
		if err != nil {
			slog.Error("Failed to start feed subscription",
				"event", "feed_failed",
				"feed", domain.FeedPath(*id),
				"error", err)
			return
		}
		if !w.hold(h) {
			h.Stop()
			return
		}
		// A queued adoption can still be discarded by Unmount. The handle then
		// stays held and Unmount stops it.
		posted := w.loop.Post(func() {
			w.release(h)
			if gen != w.gen || !w.state.PanelOpen {
				go h.Stop()
				return
			}
			w.feed = h
		})
		if !posted && w.release(h) {
			h.Stop()
		}
	}()
}

// hold records h as started but not yet adopted by the loop. It reports
// false once the widget is unmounted.
func (w *Widget) hold(h *FeedHandle) bool {
	w.feedMu.Lock()
	defer w.feedMu.Unlock()
	if w.unmounted {
		return false
	}
	if w.inflight == nil {
		w.inflight = make(map[*FeedHandle]struct{})
	}
	w.inflight[h] = struct{}{}
	return true
}

// release forgets h and reports whether it was still held.
func (w *Widget) release(h *FeedHandle) bool {
	w.feedMu.Lock()
	defer w.feedMu.Unlock()
	_, ok := w.inflight[h]
	delete(w.inflight, h)
	return ok
}

func (w *Widget) stopFeed() {
	w.gen++
	if w.feed != nil {
		w.feed.Stop()
		w.feed = nil
	}
}

func (w *Widget) applySnapshot(gen uint64, msgs []domain.Message) {
	if gen != w.gen || !w.state.PanelOpen {
		return
	}
	w.state.Messages = msgs
	w.state.ScrollSeq++
	w.emit(ChangeState)
	w.emit(ChangeScroll)
}

func (w *Widget) emit(kind ChangeKind) {
	snap := w.state.Clone()
	if kind == ChangeState {
		w.mu.Lock()
		w.snapshot = snap
		w.mu.Unlock()
	}
	if w.listener != nil {
		w.listener(Change{Kind: kind, State: snap})
	}
}
