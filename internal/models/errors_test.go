package models

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("Claim", 1), fiber.StatusNotFound},
		{"validation", NewValidationError("bad"), fiber.StatusBadRequest},
		{"unauthorized", NewUnauthorizedError("no"), fiber.StatusUnauthorized},
		{"forbidden", NewForbiddenError("no"), fiber.StatusForbidden},
		{"conflict", NewConflictError("dup"), fiber.StatusConflict},
		{"upstream override", NewUpstreamError(fiber.StatusTooManyRequests, "slow down", nil), fiber.StatusTooManyRequests},
		{"wrapped", fmt.Errorf("create: %w", NewForbiddenError("no")), fiber.StatusForbidden},
		{"plain", errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.name)
	}
}

func TestRespondWithError_HidesInternalDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return RespondWithAppError(c, NewInternalError(errors.New("pq: connection refused")))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "Internal server error")
	assert.NotContains(t, string(body), "connection refused")
}

func TestRoleCapabilities(t *testing.T) {
	t.Parallel()
	assert.True(t, RoleOfficial.CanReviewClaims())
	assert.False(t, RoleSuperAdmin.CanReviewClaims())
	assert.False(t, RoleCitizen.CanReviewClaims())

	assert.True(t, RoleSuperAdmin.CanReadAllClaims())
	assert.False(t, RoleCitizen.CanReadAllClaims())

	assert.True(t, RoleSuperAdmin.CanManageAccounts())
	assert.False(t, RoleOfficial.CanManageAccounts())

	assert.False(t, Role("admin").Valid())
}

func TestClaimStatusValid(t *testing.T) {
	t.Parallel()
	for _, s := range ClaimStatuses {
		assert.True(t, s.Valid())
	}
	assert.False(t, ClaimStatus("closed").Valid())
	assert.True(t, ClaimTypeCommunity.Valid())
	assert.False(t, ClaimType("corporate").Valid())
}
