package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-seat-reservation/internal/config"
)

func limitCfg() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: 10 * time.Second,
		TTL:            time.Minute,
		Prefix:         "rl:test",
	}
}

func newLimitedServer(mw echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, mw)
	return e
}

func post(e *echo.Echo, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tb := &tokenBucket{cfg: limitCfg(), rdb: rdb, now: func() time.Time { return now }}
	e := newLimitedServer(tb.middleware())

	rec := post(e, "10.0.0.1:4000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusOK, post(e, "10.0.0.1:4000").Code)

	now = now.Add(3 * time.Second)
	rec = post(e, "10.0.0.1:4000")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "7", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// Other clients have their own bucket.
	assert.Equal(t, http.StatusOK, post(e, "10.0.0.2:4000").Code)

	// One interval later one token is back, and only one.
	now = now.Add(7 * time.Second)
	assert.Equal(t, http.StatusOK, post(e, "10.0.0.1:4000").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(e, "10.0.0.1:4000").Code)

	assert.True(t, mr.Exists("rl:test:ip:10.0.0.1"))
	assert.True(t, mr.TTL("rl:test:ip:10.0.0.1") > 0)
}

func TestTokenBucketFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	e := newLimitedServer(NewTokenBucket(limitCfg(), rdb))
	for range 5 {
		assert.Equal(t, http.StatusOK, post(e, "10.0.0.1:4000").Code)
	}
}

func TestTokenBucketDisabled(t *testing.T) {
	cfg := limitCfg()
	cfg.Enabled = false
	e := newLimitedServer(NewTokenBucket(cfg, nil))
	for range 5 {
		assert.Equal(t, http.StatusOK, post(e, "10.0.0.1:4000").Code)
	}
}
