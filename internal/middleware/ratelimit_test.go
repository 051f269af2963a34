package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("bypassed outside production", func(t *testing.T) {
		for _, env := range []string{"test", "development", "stress", ""} {
			l := NewRateLimiter(nil, env)
			allowed, _, err := l.Allow(context.Background(), "login", "ip:1", 1, time.Minute)
			assert.NoError(t, err, env)
			assert.True(t, allowed, env)
		}
	})

	t.Run("nil redis errors in production", func(t *testing.T) {
		l := NewRateLimiter(nil, "production")
		allowed, _, err := l.Allow(context.Background(), "login", "ip:1", 1, time.Minute)
		assert.Error(t, err)
		assert.False(t, allowed)
	})

	t.Run("counts within window", func(t *testing.T) {
		mr, rdb := newMiniRedis(t)
		l := NewRateLimiter(rdb, "production")
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			allowed, _, err := l.Allow(ctx, "extract", "user:7", 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, retry, err := l.Allow(ctx, "extract", "user:7", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Greater(t, retry, time.Duration(0))

		mr.FastForward(time.Minute + time.Second)
		allowed, _, err = l.Allow(ctx, "extract", "user:7", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRateLimiter_Handler(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	t.Run("returns 429 over limit", func(t *testing.T) {
		_, rdb := newMiniRedis(t)
		l := NewRateLimiter(rdb, "production")
		app := fiber.New()
		app.Get("/login", l.Handler("login", 1, time.Minute, FailOpen), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/login", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()

		resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/login", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))
		_ = resp.Body.Close()
	})

	t.Run("fail open with nil redis", func(t *testing.T) {
		l := NewRateLimiter(nil, "production")
		app := fiber.New()
		app.Get("/test", l.Handler("test", 1, time.Minute, FailOpen), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("fail closed with nil redis", func(t *testing.T) {
		l := NewRateLimiter(nil, "production")
		app := fiber.New()
		app.Get("/sensitive", l.Handler("sensitive", 1, time.Minute, FailClosed), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sensitive", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		_ = resp.Body.Close()
	})
}
