package docstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/supportchat/internal/domain"
	"github.com/nfrund/supportchat/internal/eventloop"
)

// AppendHook runs before a record is stored. A non-nil error rejects the write.
type AppendHook func(ctx context.Context, path string, rec domain.Record) error

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the clock used to stamp records.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithAckDelay makes the store resolve timestamps d after the write. Until
// then the record is delivered with a pending timestamp.
func WithAckDelay(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.ackDelay = d }
}

// WithAppendHook installs a hook that can observe or reject writes.
func WithAppendHook(h AppendHook) MemoryOption {
	return func(s *MemoryStore) { s.hook = h }
}

// MemoryStore is an in-process Store. Each subscription gets its own
// ordered delivery loop.
type MemoryStore struct {
	now      func() time.Time
	ackDelay time.Duration
	hook     AppendHook

	mu     sync.Mutex
	feeds  map[string][]domain.Message
	subs   map[string]map[*memorySubscription]struct{}
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:   time.Now,
		feeds: make(map[string][]domain.Message),
		subs:  make(map[string]map[*memorySubscription]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append stores rec and notifies subscribers of path.
func (s *MemoryStore) Append(ctx context.Context, path string, rec domain.Record) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}
	if err := ValidateRecord(rec); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.hook != nil {
		if err := s.hook(ctx, path, rec); err != nil {
			return "", err
		}
	}

	msg := domain.Message{
		ID:           uuid.NewString(),
		Text:         rec.Text,
		Sender:       rec.Sender,
		IsAccountant: rec.IsAccountant,
	}
	if s.ackDelay <= 0 {
		ts := s.now().UTC()
		msg.Timestamp = &ts
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", domain.ErrStoreClosed
	}
	s.feeds[path] = append(s.feeds[path], msg)
	s.notifyLocked(path)
	s.mu.Unlock()

	if s.ackDelay > 0 {
		time.AfterFunc(s.ackDelay, func() { s.resolve(path, msg.ID) })
	}
	return msg.ID, nil
}

// resolve stamps the pending record id.
func (s *MemoryStore) resolve(path, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := s.feeds[path]
	for i := range feed {
		if feed[i].ID == id {
			ts := s.now().UTC()
			feed[i].Timestamp = &ts
			s.notifyLocked(path)
			return
		}
	}
}

// Subscribe delivers the current window immediately and after every change.
func (s *MemoryStore) Subscribe(ctx context.Context, path string, q Query, onSnapshot SnapshotFunc) (Subscription, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	q, err := validateQuery(q)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySubscription{
		store: s,
		path:  path,
		query: q,
		fn:    onSnapshot,
		loop:  eventloop.New("memory-subscription:" + path).Start(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		sub.loop.Stop()
		return nil, domain.ErrStoreClosed
	}
	if s.subs[path] == nil {
		s.subs[path] = make(map[*memorySubscription]struct{})
	}
	s.subs[path][sub] = struct{}{}
	sub.push(Window(s.feeds[path], q))

	slog.Debug("Memory subscription opened", "feed", path)
	return sub, nil
}

// Messages returns every stored message of path in feed order.
func (s *MemoryStore) Messages(path string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Window(s.feeds[path], Query{Ascending: true})
}

// Subscribers returns the number of live subscriptions on path.
func (s *MemoryStore) Subscribers(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[path])
}

// Close releases every subscription and rejects further writes.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	var all []*memorySubscription
	for _, subs := range s.subs {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	s.closed = true
	s.mu.Unlock()

	for _, sub := range all {
		sub.Unsubscribe()
	}
	return nil
}

func (s *MemoryStore) notifyLocked(path string) {
	for sub := range s.subs[path] {
		sub.push(Window(s.feeds[path], sub.query))
	}
}

func (s *MemoryStore) remove(sub *memorySubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[sub.path], sub)
	if len(s.subs[sub.path]) == 0 {
		delete(s.subs, sub.path)
	}
}

type memorySubscription struct {
	store *MemoryStore
	path  string
	query Query
	fn    SnapshotFunc
	loop  *eventloop.Loop

	// mu is held while fn runs so Unsubscribe can wait for an in-flight call.
	mu      sync.Mutex
	stopped bool
}

func (m *memorySubscription) push(snapshot []domain.Message) {
	m.loop.Post(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.stopped {
			return
		}
		m.fn(snapshot)
	})
}

// Unsubscribe stops delivery. It must not be called from inside the
// subscription's own SnapshotFunc.
func (m *memorySubscription) Unsubscribe() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	m.loop.Stop()
	m.store.remove(m)
	slog.Debug("Memory subscription closed", "feed", m.path)
}
