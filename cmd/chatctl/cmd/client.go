package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nfrund/supportchat/internal/server"
)

const handshakeTimeout = 10 * time.Second

// widgetConn is a websocket session with one server-side widget.
type widgetConn struct {
	conn *websocket.Conn
}

// dialWidget connects to /widget/ws, authenticating with the token flag.
func dialWidget(ctx context.Context) (*widgetConn, error) {
	u, err := url.Parse(strings.TrimSuffix(serverURL, "/") + "/widget/ws")
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connect to %s: %s: %w", u, resp.Status, err)
		}
		return nil, fmt.Errorf("connect to %s: %w", u, err)
	}

	wc := &widgetConn{conn: conn}
	go func() {
		<-ctx.Done()
		wc.Close()
	}()
	return wc, nil
}

func (w *widgetConn) send(action, text string) error {
	return w.conn.WriteJSON(server.Command{Action: action, Text: text})
}

func (w *widgetConn) next() (server.Frame, error) {
	var f server.Frame
	err := w.conn.ReadJSON(&f)
	return f, err
}

func (w *widgetConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}
