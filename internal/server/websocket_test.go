package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/nfrund/supportchat/internal/domain"
	"github.com/nfrund/supportchat/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWidget(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/widget/ws" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

// awaitView reads frames until one carrying state satisfies match.
func awaitView(t *testing.T, conn *websocket.Conn, match func(f Frame) bool) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for {
		var f Frame
		require.NoError(t, wsjson.Read(ctx, conn, &f), "waiting for view frame")
		if f.State != nil && match(f) {
			return f
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, cmd))
}

func TestWidgetSocket_SubmitAndReply(t *testing.T) {
	s, store := newTestServer(t, false)
	ts := httptest.NewServer(s.E)
	defer ts.Close()

	token, err := identity.NewTokens(testSecret).Issue(domain.Identity{Key: "u1", Label: "u1@example.com"}, time.Hour)
	require.NoError(t, err)
	conn := dialWidget(t, ts, "?token="+token)

	initial := awaitView(t, conn, func(Frame) bool { return true })
	assert.False(t, initial.State.PanelOpen)
	assert.Contains(t, initial.HTML, `value="open"`)

	send(t, conn, Command{Action: "open"})
	awaitView(t, conn, func(f Frame) bool { return f.State.PanelOpen })

	send(t, conn, Command{Action: "submit", Text: "Hello"})
	awaitView(t, conn, func(f Frame) bool {
		return f.State.Typing && len(f.State.Messages) >= 1 && f.State.Messages[0].Text == "Hello"
	})

	final := awaitView(t, conn, func(f Frame) bool {
		return !f.State.Typing && len(f.State.Messages) == 2
	})
	assert.True(t, final.State.Messages[1].IsAccountant)
	assert.Equal(t, domain.AutoReplyText, final.State.Messages[1].Text)
	assert.Contains(t, final.HTML, "An accountant will respond shortly")

	assert.Len(t, store.Messages("users/u1/chat"), 2)
}

func TestWidgetSocket_AnonymousSubmitIsNoOp(t *testing.T) {
	s, store := newTestServer(t, false)
	ts := httptest.NewServer(s.E)
	defer ts.Close()

	conn := dialWidget(t, ts, "")
	awaitView(t, conn, func(Frame) bool { return true })

	send(t, conn, Command{Action: "open"})
	send(t, conn, Command{Action: "submit", Text: "Hello"})
	f := awaitView(t, conn, func(f Frame) bool { return f.State.Draft == "Hello" })
	assert.False(t, f.State.Typing)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, store.Messages("users/u1/chat"))
}

func TestWidgetSocket_InvalidCommandIgnored(t *testing.T) {
	s, _ := newTestServer(t, false)
	ts := httptest.NewServer(s.E)
	defer ts.Close()

	conn := dialWidget(t, ts, "")
	awaitView(t, conn, func(Frame) bool { return true })

	send(t, conn, Command{Action: "explode"})
	send(t, conn, Command{Action: "draft", Text: "still alive"})
	awaitView(t, conn, func(f Frame) bool { return f.State.Draft == "still alive" })
}

func TestWidgetSocket_DisconnectUnmounts(t *testing.T) {
	s, store := newTestServer(t, false)
	ts := httptest.NewServer(s.E)
	defer ts.Close()

	token, err := identity.NewTokens(testSecret).Issue(domain.Identity{Key: "u1", Label: "u1@example.com"}, time.Hour)
	require.NoError(t, err)
	conn := dialWidget(t, ts, "?token="+token)
	awaitView(t, conn, func(Frame) bool { return true })

	send(t, conn, Command{Action: "open"})
	require.Eventually(t, func() bool { return store.Subscribers("users/u1/chat") == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, s.ActiveWidgets())

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Eventually(t, func() bool {
		return s.ActiveWidgets() == 0 && store.Subscribers("users/u1/chat") == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWidgetSocket_HTMLFormat(t *testing.T) {
	s, _ := newTestServer(t, false)
	ts := httptest.NewServer(s.E)
	defer ts.Close()

	conn := dialWidget(t, ts, "?format=html")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.True(t, strings.HasPrefix(string(data), `<div id="support-chat"`))
}

func TestWidgetSocket_ScrollFramesCarryStateInOrder(t *testing.T) {
	s, store := newTestServer(t, false)
	ts := httptest.NewServer(s.E)
	defer ts.Close()

	token, err := identity.NewTokens(testSecret).Issue(domain.Identity{Key: "u1", Label: "u1@example.com"}, time.Hour)
	require.NoError(t, err)
	conn := dialWidget(t, ts, "?token="+token)
	awaitView(t, conn, func(Frame) bool { return true })

	send(t, conn, Command{Action: "open"})
	require.Eventually(t, func() bool { return store.Subscribers("users/u1/chat") == 1 }, 2*time.Second, 5*time.Millisecond)
	_, err = store.Append(context.Background(), "users/u1/chat", domain.UserRecord(domain.Identity{Key: "u1", Label: "u1@example.com"}, "from elsewhere"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var last uint64
	for {
		var f Frame
		require.NoError(t, wsjson.Read(ctx, conn, &f), "waiting for scroll frame")
		assert.Greater(t, f.Seq, last, "frames are written in order")
		last = f.Seq
		if f.Type != frameScroll {
			continue
		}
		require.NotNil(t, f.State, "scroll frames carry the state to scroll to")
		assert.NotEmpty(t, f.HTML)
		if len(f.State.Messages) == 1 {
			assert.Equal(t, "from elsewhere", f.State.Messages[0].Text)
			return
		}
	}
}
