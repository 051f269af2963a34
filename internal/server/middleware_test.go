package server

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraatlas/internal/middleware"
	"fraatlas/internal/models"
)

func TestServer_AuthRequired(t *testing.T) {
	env := newTestEnv(t)
	userID, _ := env.account(t, "ramesh@example.org", models.RoleCitizen)

	generateToken := func(sub any, issuer, audience string, exp time.Duration) string {
		claims := jwt.MapClaims{
			"sub": sub,
			"iss": issuer,
			"aud": audience,
			"exp": time.Now().Add(exp).Unix(),
			"jti": "test-jti-valid-length",
		}
		str, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return str
	}
	sub := strconv.FormatUint(uint64(userID), 10)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{
			name:           "Valid Token",
			authHeader:     "Bearer " + generateToken(sub, middleware.TokenIssuer, middleware.TokenAudience, time.Hour),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + generateToken(sub, middleware.TokenIssuer, middleware.TokenAudience, -time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Issuer",
			authHeader:     "Bearer " + generateToken(sub, "wrong-issuer", middleware.TokenAudience, time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Audience",
			authHeader:     "Bearer " + generateToken(sub, middleware.TokenIssuer, "wrong-audience", time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Unknown User",
			authHeader:     "Bearer " + generateToken("9999", middleware.TokenIssuer, middleware.TokenAudience, time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Missing Header",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Malformed Bearer Format",
			authHeader:     "BearerTokenOnly",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Numeric Subject",
			authHeader:     "Bearer " + generateToken(123, middleware.TokenIssuer, middleware.TokenAudience, time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, "/api/auth/me", nil)
			require.NoError(t, err)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := env.app.Test(req, -1)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				body := decode[map[string]any](t, resp)
				assert.Equal(t, float64(userID), body["user_id"])
				assert.Equal(t, string(models.RoleCitizen), body["role"])
			}
		})
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.account(t, "ramesh@example.org", models.RoleCitizen)

	resp := env.do(t, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "Token has been revoked", body["error"])
}

func TestWebSocketTicket_SingleUse(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.account(t, "ramesh@example.org", models.RoleCitizen)

	resp := env.do(t, http.MethodPost, "/api/ws/ticket", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	ticket, _ := body["ticket"].(string)
	require.NotEmpty(t, ticket)
	assert.Equal(t, float64(30), body["expires_in"])
	assert.True(t, env.mr.Exists(wsTicketPrefix+ticket))

	// A plain GET is authenticated by the ticket but is not an upgrade.
	resp = env.do(t, http.MethodGet, "/api/ws?ticket="+ticket, nil, "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	assert.False(t, env.mr.Exists(wsTicketPrefix+ticket))

	resp = env.do(t, http.MethodGet, "/api/ws?ticket="+ticket, nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
