package widget

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nfrund/supportchat/internal/docstore"
	"github.com/nfrund/supportchat/internal/domain"
)

// DefaultWriteTimeout bounds each store write made by the Coordinator.
const DefaultWriteTimeout = 10 * time.Second

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithReplyDelay overrides the delay between a submit and its reply write.
func WithReplyDelay(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.replyDelay = d
		}
	}
}

// WithWriteTimeout overrides the per-write timeout.
func WithWriteTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// Coordinator writes user messages and their scripted support replies.
//
// Submits are independent: each one writes its own message and schedules
// its own reply, and nothing serializes overlapping submits. Write failures
// are logged and never retried.
type Coordinator struct {
	store        docstore.Store
	replyDelay   time.Duration
	writeTimeout time.Duration

	inflight sync.WaitGroup
}

// NewCoordinator creates a coordinator writing to store.
func NewCoordinator(store docstore.Store, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:        store,
		replyDelay:   domain.ReplyDelay,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReplyDelay returns the configured reply delay.
func (c *Coordinator) ReplyDelay() time.Duration {
	return c.replyDelay
}

// Submit sends draft as a message from id and schedules the support reply
// ReplyDelay after the call, whether or not the first write has finished.
// onSettled runs once the reply write has succeeded or failed.
//
// A blank draft or a nil identity is ignored: nothing is written and Submit
// reports false. Submit never blocks on the store. Writes are detached from
// ctx cancellation, so a reply still lands after its caller has gone away.
func (c *Coordinator) Submit(ctx context.Context, draft string, id *domain.Identity, onSettled func()) bool {
	if strings.TrimSpace(draft) == "" || id == nil {
		return false
	}

	path := domain.FeedPath(*id)
	writeCtx := context.WithoutCancel(ctx)

	c.inflight.Add(2)
	go func() {
		defer c.inflight.Done()
		c.write(writeCtx, path, domain.UserRecord(*id, draft), "message")
	}()
	time.AfterFunc(c.replyDelay, func() {
		defer c.inflight.Done()
		c.write(writeCtx, path, domain.SupportRecord(), "reply")
		if onSettled != nil {
			onSettled()
		}
	})

	return true
}

func (c *Coordinator) write(ctx context.Context, path string, rec domain.Record, kind string) {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	id, err := c.store.Append(ctx, path, rec)
	if err != nil {
		slog.Error("Failed to write chat record",
			"event", "write_failed",
			"kind", kind,
			"feed", path,
			"error", err)
		return
	}
	slog.Debug("Chat record written", "event", "write_ok", "kind", kind, "feed", path, "id", id)
}

// Wait blocks until every write started by Submit has settled, including
// replies that are still waiting for their delay.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}
