package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"fraatlas/internal/config"
	"fraatlas/internal/models"
	"fraatlas/internal/repository"
	"fraatlas/internal/testutil"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type testEnv struct {
	db     *gorm.DB
	mr     *miniredis.Miniredis
	srv    *Server
	app    *fiber.App
	ocr    *testutil.ExtractorStub
	mailer *testutil.SenderStub
	store  *testutil.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.OpenSQLite(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		db:     db,
		mr:     mr,
		ocr:    &testutil.ExtractorStub{Text: "Form A\nName: Ramesh"},
		mailer: &testutil.SenderStub{},
		store:  testutil.NewMemoryStore(),
	}
	srv, err := NewServerWithDeps(&config.Config{
		JWTSecret:           testSecret,
		Env:                 "test",
		AllowedOrigins:      "http://localhost:5173",
		DocumentMaxUploadMB: 1,
	}, Deps{
		DB:        db,
		Redis:     rdb,
		Store:     env.store,
		Extractor: env.ocr,
		Mailer:    env.mailer,
	})
	require.NoError(t, err)
	env.srv = srv
	env.app = srv.NewApp()
	return env
}

// account creates a user with the given role and returns its id and a token.
func (e *testEnv) account(t *testing.T, email string, role models.Role) (uint, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Forest-Rights-2006"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{Email: email, Password: string(hash)}
	profile := &models.Profile{Email: email, FullName: strings.Split(email, "@")[0], Role: role}
	require.NoError(t, repository.NewUserRepository(e.db).CreateWithProfile(context.Background(), user, profile))

	token, _, err := e.srv.tokens.Issue(user.ID)
	require.NoError(t, err)
	return user.ID, token
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
