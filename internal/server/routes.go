package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	appmw "github.com/nfrund/supportchat/internal/middleware"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	s.E.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	if s.Cfg.GetDevTokens() {
		s.E.POST("/auth/token", s.issueToken, appmw.RateLimiter(appmw.DefaultTokenRequestsPerMinute))
	}

	s.E.GET("/widget", s.widgetPage)
	s.E.GET("/widget/ws", s.widgetSocket)
}
