package widget

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nfrund/supportchat/internal/docstore"
	"github.com/nfrund/supportchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var u1 = &domain.Identity{Key: "u1", Label: "u1@example.com"}

func collect() (docstore.SnapshotFunc, <-chan []domain.Message) {
	ch := make(chan []domain.Message, 64)
	return func(msgs []domain.Message) { ch <- msgs }, ch
}

func nextSnapshot(t *testing.T, ch <-chan []domain.Message) []domain.Message {
	t.Helper()
	select {
	case msgs := <-ch:
		return msgs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestFeedSubscriber_NilIdentity(t *testing.T) {
	store := docstore.NewMemoryStore()
	feeds := NewFeedSubscriber(store)
	fn, ch := collect()

	h, err := feeds.Start(context.Background(), nil, fn)
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.NotPanics(t, func() { feeds.Stop(h) })

	select {
	case <-ch:
		t.Fatal("snapshot delivered without identity")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFeedSubscriber_DeliversFeedUntilStopped(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	feeds := NewFeedSubscriber(store)
	fn, ch := collect()

	h, err := feeds.Start(ctx, u1, fn)
	require.NoError(t, err)
	assert.Equal(t, "users/u1/chat", h.Path())
	assert.Empty(t, nextSnapshot(t, ch))

	_, err = store.Append(ctx, "users/u1/chat", domain.UserRecord(*u1, "Hello"))
	require.NoError(t, err)
	got := nextSnapshot(t, ch)
	require.Len(t, got, 1)
	assert.Equal(t, "Hello", got[0].Text)

	h.Stop()
	h.Stop()
	assert.Equal(t, 0, store.Subscribers("users/u1/chat"))

	_, err = store.Append(ctx, "users/u1/chat", domain.UserRecord(*u1, "After stop"))
	require.NoError(t, err)
	select {
	case <-ch:
		t.Fatal("snapshot delivered after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFeedSubscriber_WindowIsMostRecentAscending(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	store := docstore.NewMemoryStore(docstore.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}))
	for i := 0; i < 60; i++ {
		_, err := store.Append(ctx, "users/u1/chat", domain.UserRecord(*u1, fmt.Sprintf("m%02d", i)))
		require.NoError(t, err)
	}

	fn, ch := collect()
	h, err := NewFeedSubscriber(store).Start(ctx, u1, fn)
	require.NoError(t, err)
	defer h.Stop()

	got := nextSnapshot(t, ch)
	require.Len(t, got, domain.FeedLimit)
	assert.Equal(t, "m10", got[0].Text)
	assert.Equal(t, "m59", got[len(got)-1].Text)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Timestamp.Before(*got[i].Timestamp))
	}
}

func TestFeedSubscriber_InvalidIdentityPath(t *testing.T) {
	fn, _ := collect()
	_, err := NewFeedSubscriber(docstore.NewMemoryStore()).
		Start(context.Background(), &domain.Identity{Key: "", Label: "x"}, fn)
	assert.ErrorIs(t, err, domain.ErrInvalidPath)
}
