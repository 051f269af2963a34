package server

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"fraatlas/internal/middleware"
	"fraatlas/internal/models"

	"github.com/gofiber/fiber/v2"
)

const wsTicketPrefix = "ws_ticket:"

// AuthRequired validates the bearer token, rejects revoked tokens and loads
// the caller's role. WebSocket upgrades authenticate with a single-use ticket
// from POST /api/ws/ticket instead.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws") && c.Path() != "/api/ws/ticket"

		if ticket := c.Query("ticket"); ticket != "" && isWSPath {
			userID, ok := s.redeemTicket(ctx, ticket)
			if !ok {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			return s.authenticated(c, userID)
		}

		tokenString := middleware.BearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.tokens.Parse(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		// Check JTI for revocation
		if claims.JTI != "" && s.redis != nil {
			revoked, err := s.redis.Exists(ctx, "blacklist:"+claims.JTI).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("session", claims)
		return s.authenticated(c, claims.UserID)
	}
}

// authenticated loads the profile of userID, stores the caller in locals and
// continues the chain.
func (s *Server) authenticated(c *fiber.Ctx, userID uint) error {
	// Sync to UserContext for logging and downstream services
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)

	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Account no longer exists"))
		}
		return respond(c, err)
	}

	c.Locals("userID", userID)
	c.Locals("role", profile.Role)
	return c.Next()
}

// RoleRequired returns middleware that rejects callers without one of roles
// with 403. Must be placed after AuthRequired.
func (s *Server) RoleRequired(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(models.Role)
		if !slices.Contains(roles, role) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Insufficient permissions"))
		}
		return c.Next()
	}
}

// optionalUserID attempts to extract userID from the Authorization header but
// does not enforce it.
func (s *Server) optionalUserID(c *fiber.Ctx) (uint, bool) {
	tokenString := middleware.BearerToken(c)
	if tokenString == "" {
		return 0, false
	}
	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		return 0, false
	}
	if claims.JTI != "" && s.redis != nil {
		if revoked, err := s.redis.Exists(c.UserContext(), "blacklist:"+claims.JTI).Result(); err == nil && revoked > 0 {
			return 0, false
		}
	}
	return claims.UserID, true
}

// redeemTicket consumes a WebSocket ticket and returns its user.
func (s *Server) redeemTicket(ctx context.Context, ticket string) (uint, bool) {
	if s.redis == nil {
		return 0, false
	}
	value, err := s.redis.GetDel(ctx, fmt.Sprintf("%s%s", wsTicketPrefix, ticket)).Result()
	if err != nil {
		return 0, false
	}
	userID, err := strconv.ParseUint(value, 10, 32)
	if err != nil || userID == 0 {
		return 0, false
	}
	return uint(userID), true
}
