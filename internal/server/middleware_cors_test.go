package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frontendOrigin = "http://localhost:5173"

func (e *testEnv) fromOrigin(t *testing.T, method, path, origin string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Origin", origin)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestCORS_OnlyConfiguredOrigins(t *testing.T) {
	env := newTestEnv(t)

	resp := env.fromOrigin(t, http.MethodGet, "/api/schemes", frontendOrigin, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, frontendOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), "Content-Disposition")

	resp = env.fromOrigin(t, http.MethodGet, "/api/schemes", "https://evil.example", nil)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORS_RateLimitedResponsesKeepHeaders(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 100; i++ {
		resp := env.fromOrigin(t, http.MethodGet, "/api/schemes", frontendOrigin, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i)
	}

	resp := env.fromOrigin(t, http.MethodGet, "/api/schemes", frontendOrigin, nil)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, frontendOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	body := decode[map[string]string](t, resp)
	assert.Contains(t, body["error"], "Too many requests")

	// Preflight for an authenticated claim submission still succeeds.
	resp = env.fromOrigin(t, http.MethodOptions, "/api/claims", frontendOrigin, map[string]string{
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "authorization,content-type",
	})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, frontendOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}
