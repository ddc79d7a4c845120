package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nfrund/supportchat/internal/domain"
	"github.com/nfrund/supportchat/internal/eventloop"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis streams. Each feed is one stream, so
// the server-assigned entry ID doubles as the creation timestamp. Writers
// publish a change notice that subscribers answer by re-reading the window.
type RedisStore struct {
	rdb *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps a connected client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// NewRedisStoreFromURL parses a redis:// URL and pings the server.
func NewRedisStoreFromURL(ctx context.Context, rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(rdb), nil
}

func streamKey(path string) string     { return "feed:" + path }
func changeChannel(path string) string { return "feed:" + path + ":changed" }

// Append adds an entry to the feed stream and announces the change.
func (s *RedisStore) Append(ctx context.Context, path string, rec domain.Record) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}
	if err := ValidateRecord(rec); err != nil {
		return "", err
	}

	id, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(path),
		Values: map[string]any{
			"text":         rec.Text,
			"sender":       rec.Sender,
			"isAccountant": strconv.FormatBool(rec.IsAccountant),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append message: %w", err)
	}

	// The entry is durable at this point; a lost notice only delays readers.
	if err := s.rdb.Publish(ctx, changeChannel(path), id).Err(); err != nil {
		slog.Warn("Failed to publish feed change", "feed", path, "error", err)
	}
	return id, nil
}

// Subscribe listens for change notices on the feed and re-reads the window.
func (s *RedisStore) Subscribe(ctx context.Context, path string, q Query, onSnapshot SnapshotFunc) (Subscription, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	q, err := validateQuery(q)
	if err != nil {
		return nil, err
	}

	ps := s.rdb.Subscribe(ctx, changeChannel(path))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", path, err)
	}

	sub := &reloadSubscription{
		fn:   onSnapshot,
		loop: eventloop.New("redis-subscription:" + path).Start(),
		load: func(ctx context.Context) ([]domain.Message, error) { return s.load(ctx, path, q) },
		path: path,
	}
	sub.release = func() {
		if err := ps.Close(); err != nil {
			slog.Warn("Failed to close feed pubsub", "feed", path, "error", err)
		}
	}

	go func() {
		for range ps.Channel() {
			sub.reload()
		}
		slog.Debug("Feed change channel closed", "feed", path)
	}()

	sub.reload()
	return sub, nil
}

func (s *RedisStore) load(ctx context.Context, path string, q Query) ([]domain.Message, error) {
	entries, err := s.rdb.XRevRangeN(ctx, streamKey(path), "+", "-", int64(q.Limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load feed window: %w", err)
	}

	// XREVRANGE is newest first; restore arrival order so same-millisecond
	// entries keep their sequence.
	msgs := make([]domain.Message, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		msgs = append(msgs, fromStreamEntry(entries[i]))
	}
	return Window(msgs, q), nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func fromStreamEntry(entry redis.XMessage) domain.Message {
	msg := domain.Message{
		ID:     entry.ID,
		Text:   stringValue(entry.Values["text"]),
		Sender: stringValue(entry.Values["sender"]),
	}
	msg.IsAccountant, _ = strconv.ParseBool(stringValue(entry.Values["isAccountant"]))
	if ts, err := streamIDTime(entry.ID); err == nil {
		msg.Timestamp = &ts
	}
	return msg
}

// streamIDTime extracts the millisecond time from a "<ms>-<seq>" stream ID.
func streamIDTime(id string) (time.Time, error) {
	msPart, _, _ := strings.Cut(id, "-")
	ms, err := strconv.ParseInt(msPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stream id %q: %w", id, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
