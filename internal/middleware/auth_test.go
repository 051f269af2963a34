package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-32-characters!!"

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret)

	token, jti, err := m.Issue(42)
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, jti, claims.JTI)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), claims.ExpiresAt, time.Minute)
}

func TestTokenManager_RejectsForeignTokens(t *testing.T) {
	m := NewTokenManager(testSecret)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager("another-secret-at-least-32-characters")
		token, _, err := other.Issue(1)
		require.NoError(t, err)
		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "1",
			"iss": TokenIssuer,
			"aud": "someone-else",
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewTokenManager(testSecret)
		past.now = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }
		token, _, err := past.Issue(1)
		require.NoError(t, err)
		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestBearerToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(BearerToken(c))
	})

	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		buf := make([]byte, 16)
		n, _ := resp.Body.Read(buf)
		_ = resp.Body.Close()
		assert.Equal(t, tt.want, string(buf[:n]), tt.header)
	}
}
