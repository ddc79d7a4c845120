package identity

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/supportchat/internal/domain"
)

const (
	sessionName     = "supportchat"
	sessionKeyKey   = "identity_key"
	sessionLabelKey = "identity_label"
)

// Middleware resolves the caller's identity from a bearer token, a ?token=
// query parameter, or the session cookie, and stores it on the request
// context. Requests without an identity pass through unchanged: the widget
// treats them as signed out.
func Middleware(tokens *Tokens) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := fromToken(c, tokens)
			if id == nil {
				id = fromSession(c)
			}
			if id != nil {
				req := c.Request()
				c.SetRequest(req.WithContext(WithIdentity(req.Context(), id)))
			}
			return next(c)
		}
	}
}

func fromToken(c echo.Context, tokens *Tokens) *domain.Identity {
	raw := ""
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "bearer") {
			raw = token
		}
	}
	if raw == "" {
		raw = c.QueryParam("token")
	}
	if raw == "" {
		return nil
	}

	id, err := tokens.Verify(raw)
	if err != nil {
		slog.Debug("Rejected identity token", "error", err)
		return nil
	}
	return id
}

func fromSession(c echo.Context) *domain.Identity {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return nil
	}
	key, _ := sess.Values[sessionKeyKey].(string)
	label, _ := sess.Values[sessionLabelKey].(string)
	if key == "" || label == "" {
		return nil
	}
	return &domain.Identity{Key: key, Label: label}
}

// Remember stores id in the session cookie.
func Remember(c echo.Context, id domain.Identity) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values[sessionKeyKey] = id.Key
	sess.Values[sessionLabelKey] = id.Label
	return sess.Save(c.Request(), c.Response())
}
