// Package docstore provides the Document Store capability used by the chat
// widget: durable, ordered, subscribable collections of message records.
package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/nfrund/supportchat/internal/domain"
)

// SnapshotFunc receives the full current window of a collection. The slice
// is owned by the receiver.
type SnapshotFunc func(msgs []domain.Message)

// Subscription is a live subscription handle.
type Subscription interface {
	// Unsubscribe stops delivery. No SnapshotFunc call starts after it
	// returns. It is idempotent.
	Unsubscribe()
}

// Query describes the window a subscription delivers.
type Query struct {
	OrderKey  string
	Ascending bool
	Limit     int
}

// FeedQuery is the window used for chat feeds: ascending by timestamp, the
// most recent FeedLimit records.
func FeedQuery() Query {
	return Query{OrderKey: domain.OrderKey, Ascending: true, Limit: domain.FeedLimit}
}

// Store is a durable, subscribable record store keyed by collection path.
type Store interface {
	// Append durably inserts rec into the collection at path and returns the
	// store-assigned ID. The store stamps the creation time.
	Append(ctx context.Context, path string, rec domain.Record) (string, error)

	// Subscribe delivers the current window of the collection at path and a
	// fresh window after every change until the subscription is released.
	Subscribe(ctx context.Context, path string, q Query, onSnapshot SnapshotFunc) (Subscription, error)
}

// validatePath checks a slash separated collection path.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", domain.ErrInvalidPath)
	}
	for _, seg := range strings.Split(path, "/") {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("%w: %q has an empty segment", domain.ErrInvalidPath, path)
		}
	}
	return nil
}

func validateQuery(q Query) (Query, error) {
	if q.OrderKey == "" {
		q.OrderKey = domain.OrderKey
	}
	if q.OrderKey != domain.OrderKey {
		return q, fmt.Errorf("unsupported order key %q", q.OrderKey)
	}
	if q.Limit <= 0 {
		q.Limit = domain.FeedLimit
	}
	return q, nil
}
