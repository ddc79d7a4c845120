package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nfrund/supportchat/internal/database"
	"github.com/nfrund/supportchat/internal/domain"
	"github.com/nfrund/supportchat/internal/eventloop"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const messageTable = "chat_message"

// messageRow is the stored shape of a message. Every feed shares one table
// and is told apart by the feed field.
type messageRow struct {
	ID           *surrealmodels.RecordID       `json:"id,omitempty"`
	Feed         string                        `json:"feed"`
	Text         string                        `json:"text"`
	Sender       string                        `json:"sender"`
	IsAccountant bool                          `json:"isAccountant"`
	Timestamp    *surrealmodels.CustomDateTime `json:"timestamp,omitempty"`
}

func (r messageRow) toMessage() domain.Message {
	msg := domain.Message{
		Text:         r.Text,
		Sender:       r.Sender,
		IsAccountant: r.IsAccountant,
	}
	if r.ID != nil {
		msg.ID = r.ID.String()
	}
	if r.Timestamp != nil && !r.Timestamp.Time.IsZero() {
		ts := r.Timestamp.Time.UTC()
		msg.Timestamp = &ts
	}
	return msg
}

// SurrealStore is a Store backed by SurrealDB. Subscriptions are live queries
// on the feed; each notification triggers a re-read of the window.
type SurrealStore struct {
	conn database.DBConnection
	live database.LiveQueryService
}

var _ Store = (*SurrealStore)(nil)

// NewSurrealStore creates a store over a managed connection.
func NewSurrealStore(conn database.DBConnection, live database.LiveQueryService) *SurrealStore {
	return &SurrealStore{conn: conn, live: live}
}

// Append creates a message row. The database assigns id and timestamp.
func (s *SurrealStore) Append(ctx context.Context, path string, rec domain.Record) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}
	if err := ValidateRecord(rec); err != nil {
		return "", err
	}

	ctx, cancel := database.WithTimeout(ctx, s.conn.GetDBExecuteTimeout(), database.ContextKeyExecuteTimeout)
	defer cancel()

	query := fmt.Sprintf("CREATE %s SET feed = $feed, text = $text, sender = $sender, isAccountant = $isAccountant, timestamp = time::now()", messageTable)
	params := map[string]any{
		"feed":         path,
		"text":         rec.Text,
		"sender":       rec.Sender,
		"isAccountant": rec.IsAccountant,
	}

	var created *messageRow
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		row, err := database.QueryOne[messageRow](ctx, db, query, params)
		created = row
		return err
	})
	if err != nil {
		return "", database.WrapError(err, "failed to append message")
	}
	if created == nil || created.ID == nil {
		return "", database.NewDBError(database.ErrQueryFailed, "message was not created")
	}
	return created.ID.String(), nil
}

// Subscribe opens a live query on the feed and delivers a window on start and
// after every notification.
func (s *SurrealStore) Subscribe(ctx context.Context, path string, q Query, onSnapshot SnapshotFunc) (Subscription, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	q, err := validateQuery(q)
	if err != nil {
		return nil, err
	}

	sub := &reloadSubscription{
		fn:   onSnapshot,
		loop: eventloop.New("surreal-subscription:" + path).Start(),
		load: func(ctx context.Context) ([]domain.Message, error) { return s.load(ctx, path, q) },
		path: path,
	}

	filter := &database.LiveQueryFilter{
		Where:  "feed = $feed",
		Params: map[string]any{"feed": path},
	}
	liveSub, err := s.live.Subscribe(ctx, messageTable, filter, func(_ context.Context, action database.LiveQueryAction, _ any) {
		if action == database.ActionClose {
			slog.Warn("Feed live query closed by server, keeping last snapshot", "feed", path)
			return
		}
		sub.reload()
	})
	if err != nil {
		sub.loop.Stop()
		return nil, fmt.Errorf("subscribe to %s: %w", path, err)
	}

	sub.release = func() {
		if err := s.live.Unsubscribe(liveSub.ID); err != nil {
			slog.Warn("Failed to release feed live query", "feed", path, "error", err)
		}
	}
	sub.reload()
	return sub, nil
}

func (s *SurrealStore) load(ctx context.Context, path string, q Query) ([]domain.Message, error) {
	ctx, cancel := database.WithTimeout(ctx, s.conn.GetDBQueryTimeout(), database.ContextKeyQueryTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT * FROM %s WHERE feed = $feed ORDER BY timestamp DESC LIMIT $limit", messageTable)
	params := map[string]any{"feed": path, "limit": q.Limit}

	var rows []messageRow
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		rows, err = database.Query[messageRow](ctx, db, query, params)
		return err
	})
	if err != nil {
		return nil, database.WrapError(err, "failed to load feed window")
	}

	msgs := make([]domain.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		msgs = append(msgs, rows[i].toMessage())
	}
	return Window(msgs, q), nil
}

// reloadSubscription re-reads a window on demand and delivers it from a
// dedicated loop, so reloads never overlap and arrive in request order.
type reloadSubscription struct {
	fn      SnapshotFunc
	loop    *eventloop.Loop
	load    func(ctx context.Context) ([]domain.Message, error)
	release func()
	path    string

	mu      sync.Mutex
	stopped bool
	once    sync.Once
}

func (r *reloadSubscription) reload() {
	r.loop.Post(func() {
		msgs, err := r.load(context.Background())
		if err != nil {
			slog.Error("Failed to reload feed, keeping last snapshot", "feed", r.path, "error", err)
			return
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.stopped {
			return
		}
		r.fn(msgs)
	})
}

// Unsubscribe stops delivery and releases the underlying live resource.
func (r *reloadSubscription) Unsubscribe() {
	r.once.Do(func() {
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()

		r.loop.Stop()
		if r.release != nil {
			r.release()
		}
		slog.Debug("Feed subscription closed", "feed", r.path)
	})
}
