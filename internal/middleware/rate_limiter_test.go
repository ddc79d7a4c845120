package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedEcho(perMinute int) *echo.Echo {
	e := echo.New()
	e.POST("/auth/token", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	}, RateLimiter(perMinute))
	return e
}

func requestToken(e *echo.Echo, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func spendBurst(t *testing.T, e *echo.Echo, remoteAddr string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.Equal(t, http.StatusOK, requestToken(e, remoteAddr).Code, "request %d should be allowed", i+1)
	}
}

func TestRateLimiter(t *testing.T) {
	e := limitedEcho(DefaultTokenRequestsPerMinute)

	t.Run("allows a burst of the per-minute budget", func(t *testing.T) {
		spendBurst(t, e, "192.0.2.1:1234", DefaultTokenRequestsPerMinute)
	})

	t.Run("blocks requests beyond the burst", func(t *testing.T) {
		spendBurst(t, e, "192.0.2.2:1234", DefaultTokenRequestsPerMinute)

		rec := requestToken(e, "192.0.2.2:1234")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "Too many requests")
	})

	t.Run("refills per minute, not per second", func(t *testing.T) {
		spendBurst(t, e, "192.0.2.3:1234", DefaultTokenRequestsPerMinute)

		// At 10 per second a token would be back by now; at 10 per minute
		// the next one takes six seconds.
		time.Sleep(300 * time.Millisecond)
		assert.Equal(t, http.StatusTooManyRequests, requestToken(e, "192.0.2.3:1234").Code)
	})

	t.Run("budgets are per client IP", func(t *testing.T) {
		spendBurst(t, e, "192.0.2.4:1234", DefaultTokenRequestsPerMinute)
		require.Equal(t, http.StatusTooManyRequests, requestToken(e, "192.0.2.4:1234").Code)

		assert.Equal(t, http.StatusOK, requestToken(e, "192.0.2.5:1234").Code)
	})
}

func TestRateLimiter_RefillsAtConfiguredRate(t *testing.T) {
	// 120 per minute is one token every 500ms.
	e := limitedEcho(120)
	const addr = "198.51.100.7:4321"

	spendBurst(t, e, addr, 120)
	require.Equal(t, http.StatusTooManyRequests, requestToken(e, addr).Code)

	assert.Eventually(t, func() bool {
		return requestToken(e, addr).Code == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond)
}

func TestRateLimiter_NonPositiveUsesDefault(t *testing.T) {
	e := limitedEcho(0)
	const addr = "198.51.100.8:4321"

	spendBurst(t, e, addr, DefaultTokenRequestsPerMinute)
	assert.Equal(t, http.StatusTooManyRequests, requestToken(e, addr).Code)
}
