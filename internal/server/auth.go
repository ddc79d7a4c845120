package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/supportchat/internal/domain"
	"github.com/nfrund/supportchat/internal/identity"
)

const (
	defaultTokenTTL = 24 * time.Hour
	maxTokenTTL     = 30 * 24 * time.Hour
)

var validate = validator.New()

type tokenRequest struct {
	Key   string `json:"key" validate:"required,max=128,excludesall=/"`
	Label string `json:"label" validate:"required,max=256"`
	TTL   string `json:"ttl,omitempty"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// issueToken mints an identity token and remembers the identity in the
// session cookie. It is only routed when dev tokens are enabled.
func (s *Server) issueToken(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ttl := defaultTokenTTL
	if req.TTL != "" {
		d, err := time.ParseDuration(req.TTL)
		if err != nil || d <= 0 || d > maxTokenTTL {
			return echo.NewHTTPError(http.StatusBadRequest, "ttl must be a positive duration of at most 720h")
		}
		ttl = d
	}

	id := domain.Identity{Key: req.Key, Label: req.Label}
	token, err := s.deps.Tokens.Issue(id, ttl)
	if err != nil {
		return err
	}
	if err := identity.Remember(c, id); err != nil {
		slog.Warn("Failed to store identity in session", "event", "session_save_failed", "error", err)
	}

	slog.Info("Issued identity token", "event", "token_issued", "key", id.Key)
	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: time.Now().Add(ttl).UTC()})
}
