package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/supportchat/internal/config"
	"github.com/nfrund/supportchat/internal/identity"
	appmw "github.com/nfrund/supportchat/internal/middleware"
	"github.com/nfrund/supportchat/internal/pubsub"
	"github.com/nfrund/supportchat/internal/widget"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// Dependencies holds everything the HTTP server needs.
type Dependencies struct {
	Config      config.Provider
	Feeds       *widget.FeedSubscriber
	Coordinator *widget.Coordinator
	Tokens      *identity.Tokens
	Bus         pubsub.Bus
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	E    *echo.Echo
	Cfg  config.Provider
	deps Dependencies

	mu      sync.Mutex
	widgets map[string]*widget.Widget
}

// New creates a Server with its middleware and routes registered.
func New(deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmw.Logger)
	e.Use(requestLogger())

	store := sessions.NewCookieStore([]byte(deps.Config.GetSessionSecret()))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	e.Use(session.Middleware(store))
	e.Use(identity.Middleware(deps.Tokens))

	setupErrorHandling(e)

	s := &Server{
		E:       e,
		Cfg:     deps.Config,
		deps:    deps,
		widgets: make(map[string]*widget.Widget),
	}
	s.RegisterRoutes()
	return s
}

// Start serves HTTP until ctx is canceled, then shuts down gracefully:
// the listener stops, every mounted widget unmounts and pending reply
// writes are given the shutdown timeout to land.
func (s *Server) Start(ctx context.Context) error {
	addr := s.Cfg.GetServerAddr()
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "event", "server_start", "addr", addr)
		if err := s.E.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the HTTP server and unmounts every connected widget.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "event", "server_shutdown")
	err := s.E.Shutdown(ctx)

	s.mu.Lock()
	active := make([]*widget.Widget, 0, len(s.widgets))
	for id, w := range s.widgets {
		active = append(active, w)
		delete(s.widgets, id)
	}
	s.mu.Unlock()
	for _, w := range active {
		w.Unmount()
	}

	done := make(chan struct{})
	go func() {
		s.deps.Coordinator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Shutdown timed out waiting for pending replies", "event", "server_shutdown_timeout")
	}
	return err
}

// ActiveWidgets returns the number of mounted widgets.
func (s *Server) ActiveWidgets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.widgets)
}

func (s *Server) track(id string, w *widget.Widget) {
	s.mu.Lock()
	s.widgets[id] = w
	s.mu.Unlock()
}

func (s *Server) untrack(id string) *widget.Widget {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.widgets[id]
	delete(s.widgets, id)
	return w
}

// requestLogger logs every request through slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.LogAttrs(c.Request().Context(), level, "HTTP request",
				slog.String("event", "http_request"),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			)
			return nil
		},
	})
}
