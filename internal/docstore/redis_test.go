package docstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/supportchat/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamIDTime(t *testing.T) {
	ts, err := streamIDTime("1704067200123-0")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 123_000_000, time.UTC), ts)

	_, err = streamIDTime("not-an-id")
	assert.Error(t, err)
}

func TestFromStreamEntry(t *testing.T) {
	msg := fromStreamEntry(redis.XMessage{
		ID: "1704067200000-1",
		Values: map[string]any{
			"text":         domain.AutoReplyText,
			"sender":       domain.SupportSender,
			"isAccountant": "true",
		},
	})

	assert.Equal(t, "1704067200000-1", msg.ID)
	assert.Equal(t, domain.AutoReplyText, msg.Text)
	assert.Equal(t, domain.SupportSender, msg.Sender)
	assert.True(t, msg.IsAccountant)
	assert.False(t, msg.Pending())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "feed:users/u1/chat", streamKey("users/u1/chat"))
	assert.Equal(t, "feed:users/u1/chat:changed", changeChannel("users/u1/chat"))
}

func TestRedisStore_Integration(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if testing.Short() || url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewRedisStoreFromURL(ctx, url)
	require.NoError(t, err)
	defer store.Close()

	path := "users/" + uuid.NewString() + "/chat"
	defer store.rdb.Del(context.Background(), streamKey(path))

	rec := newRecorder()
	sub, err := store.Subscribe(ctx, path, FeedQuery(), rec.record)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	assert.Empty(t, rec.next(t))

	_, err = store.Append(ctx, path, domain.Record{Text: "Hello", Sender: "u1@example.com"})
	require.NoError(t, err)

	got := rec.next(t)
	require.Len(t, got, 1)
	assert.Equal(t, "Hello", got[0].Text)
}
