package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/supportchat/internal/identity"
	appmw "github.com/nfrund/supportchat/internal/middleware"
	"github.com/nfrund/supportchat/internal/pubsub"
	"github.com/nfrund/supportchat/internal/widget"
)

const (
	frameView   = "view"
	frameScroll = "scroll"

	formatJSON = "json"
	formatHTML = "html"

	socketWriteTimeout = 10 * time.Second
)

// Frame is a server to client websocket message. View and scroll frames both
// carry the full state; a scroll frame asks the client to scroll once that
// state is shown. Seq orders every frame of a connection.
type Frame struct {
	Type  string            `json:"type"`
	Seq   uint64            `json:"seq"`
	State *widget.ViewState `json:"state,omitempty"`
	HTML  string            `json:"html,omitempty"`
}

// Command is a client to server websocket message.
type Command struct {
	Action string `json:"action" validate:"required,oneof=open close draft submit"`
	Text   string `json:"text"`
}

// ViewEvent carries frames from a widget to its connection writer. Each
// connection listens on its own scoped topic.
var ViewEvent = pubsub.NewEvent[Frame]("widget.view")

// widgetSocket hosts one widget per websocket connection until the socket
// closes.
func (s *Server) widgetSocket(c echo.Context) error {
	format := formatJSON
	if strings.EqualFold(c.QueryParam("format"), formatHTML) {
		format = formatHTML
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true, // In production, check origin.
	})
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "event", "ws_upgrade_failed", "error", err)
		return nil
	}

	connID := uuid.NewString()
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	userKey := ""
	if id := identity.FromContext(ctx); id != nil {
		userKey = id.Key
	}
	log := appmw.FromContext(ctx).With("conn_id", connID, "user", userKey)
	event := ViewEvent.For(connID)

	var lastSeq atomic.Uint64
	err = pubsub.Subscribe(ctx, s.deps.Bus, event, func(ctx context.Context, f Frame) error {
		// GoChannel may reorder deliveries. Frames hold the whole state, so
		// one older than the last written is stale.
		for {
			last := lastSeq.Load()
			if f.Seq <= last {
				return nil
			}
			if lastSeq.CompareAndSwap(last, f.Seq) {
				break
			}
		}
		return writeFrame(ctx, conn, format, f)
	})
	if err != nil {
		log.Error("Failed to subscribe connection to view events", "event", "ws_subscribe_failed", "error", err)
		conn.Close(websocket.StatusInternalError, "subscription failed")
		return nil
	}

	var seq atomic.Uint64
	publish := func(f Frame) {
		f.Seq = seq.Add(1)
		if err := pubsub.PublishAs(ctx, s.deps.Bus, event, userKey, f); err != nil && ctx.Err() == nil {
			log.Error("Failed to publish view frame", "event", "ws_publish_failed", "error", err)
		}
	}

	w := widget.New(ctx, widget.Dependencies{
		Feeds:       s.deps.Feeds,
		Coordinator: s.deps.Coordinator,
		Identity:    identity.Context,
	}, func(ch widget.Change) {
		switch ch.Kind {
		case widget.ChangeScroll:
			// htmx pages scroll after every swap.
			if format == formatHTML {
				return
			}
			f := viewFrame(ch.State, format)
			f.Type = frameScroll
			publish(f)
		default:
			publish(viewFrame(ch.State, format))
		}
	})
	s.track(connID, w)
	defer func() {
		if w := s.untrack(connID); w != nil {
			w.Unmount()
		}
	}()

	log.Info("Widget connected", "event", "ws_connected", "format", format)
	publish(viewFrame(w.State(), format))

	s.readCommands(ctx, conn, w, log)

	conn.Close(websocket.StatusNormalClosure, "")
	log.Info("Widget disconnected", "event", "ws_disconnected")
	return nil
}

func (s *Server) readCommands(ctx context.Context, conn *websocket.Conn, w *widget.Widget, log *slog.Logger) {
	for {
		var cmd Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				log.Debug("WebSocket closed by client", "event", "ws_closed")
			case errors.Is(err, io.EOF) || errors.Is(err, context.Canceled):
			default:
				log.Warn("WebSocket read error", "event", "ws_read_failed", "error", err)
			}
			return
		}

		if err := validate.Struct(cmd); err != nil {
			log.Debug("Ignoring invalid command", "event", "ws_invalid_command", "action", cmd.Action, "error", err)
			continue
		}

		switch cmd.Action {
		case "open":
			w.Open()
		case "close":
			w.Close()
		case "draft":
			w.SetDraft(cmd.Text)
		case "submit":
			if cmd.Text != "" {
				w.SetDraft(cmd.Text)
			}
			w.Submit()
		}
	}
}

func viewFrame(v widget.ViewState, format string) Frame {
	f := Frame{Type: frameView}
	var b strings.Builder
	if err := widget.RenderTo(&b, v); err != nil {
		slog.Error("Failed to render widget", "event", "render_failed", "error", err)
	} else {
		f.HTML = b.String()
	}
	if format == formatJSON {
		f.State = &v
	}
	return f
}

// writeFrame sends f in the connection's format. HTML connections receive
// bare fragments for htmx to swap.
func writeFrame(ctx context.Context, conn *websocket.Conn, format string, f Frame) error {
	ctx, cancel := context.WithTimeout(ctx, socketWriteTimeout)
	defer cancel()

	if format == formatHTML {
		if f.HTML == "" {
			return nil
		}
		return conn.Write(ctx, websocket.MessageText, []byte(f.HTML))
	}
	return wsjson.Write(ctx, conn, f)
}
