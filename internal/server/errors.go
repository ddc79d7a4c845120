package server

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
)

// setupErrorHandling installs an error handler that logs unexpected errors
// with a stack trace and hides their details from clients.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			if he.Code >= http.StatusInternalServerError {
				slog.Error("HTTP error", "event", "http_error", "status", he.Code, "error", err)
			}
			if writeErr := c.JSON(he.Code, map[string]any{"error": he.Message}); writeErr != nil {
				slog.Error("Failed to write error response", "error", writeErr)
			}
			return
		}

		slog.Error("Internal Server Error (Unhandled)",
			"event", "http_unhandled_error",
			"error", err.Error(),
			"path", c.Request().URL.Path,
			"stack_trace", string(debug.Stack()))
		if writeErr := c.JSON(http.StatusInternalServerError, map[string]string{"error": http.StatusText(http.StatusInternalServerError)}); writeErr != nil {
			slog.Error("Failed to write error response", "error", writeErr)
		}
	}
}
