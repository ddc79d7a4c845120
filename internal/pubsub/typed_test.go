package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct {
	Seq  int    `json:"seq"`
	Text string `json:"text"`
}

var pingEvent = NewEvent[ping]("test.ping")

func TestEvent_For(t *testing.T) {
	assert.Equal(t, "test.ping", pingEvent.Name())
	assert.Equal(t, "test.ping.c1", pingEvent.For("c1").Name())
}

func TestTypedPublishSubscribe(t *testing.T) {
	bus := NewWatermillBridge()
	defer bus.Close()
	ctx := context.Background()

	event := pingEvent.For("c1")
	got := make(chan ping, 1)
	require.NoError(t, Subscribe(ctx, bus, event, func(_ context.Context, p ping) error {
		got <- p
		return nil
	}))

	require.NoError(t, Publish(ctx, bus, event, ping{Seq: 7, Text: "hi"}))
	assert.Equal(t, ping{Seq: 7, Text: "hi"}, receive(t, got))
}

func TestTypedSubscribe_DecodeFailureSkipsHandler(t *testing.T) {
	bus := NewWatermillBridge()
	defer bus.Close()
	ctx := context.Background()

	got := make(chan ping, 2)
	require.NoError(t, Subscribe(ctx, bus, pingEvent, func(_ context.Context, p ping) error {
		got <- p
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, Message{Topic: pingEvent.Name(), Payload: []byte("not json")}))
	require.NoError(t, Publish(ctx, bus, pingEvent, ping{Seq: 1}))

	assert.Equal(t, 1, receive(t, got).Seq)
}

func TestTypedPublishAs_CarriesUser(t *testing.T) {
	bus := NewWatermillBridge()
	defer bus.Close()
	ctx := context.Background()

	event := pingEvent.For("c2")
	got := make(chan Message, 1)
	require.NoError(t, bus.Subscribe(ctx, event.Name(), func(_ context.Context, msg Message) error {
		got <- msg
		return nil
	}))

	require.NoError(t, PublishAs(ctx, bus, event, "u1", ping{Seq: 3}))
	msg := receive(t, got)
	assert.Equal(t, "u1", msg.UserID)
	assert.JSONEq(t, `{"seq":3,"text":""}`, string(msg.Payload))
}
