package server

import (
	"fraatlas/internal/models"
	"fraatlas/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// ListProfiles handles GET /api/admin/profiles
// @Summary List profiles
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "citizen|official|super_admin"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} object{profiles=[]models.Profile,total=int}
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/profiles [get]
func (s *Server) ListProfiles(c *fiber.Ctx) error {
	role := models.Role(c.Query("role"))
	if role != "" && !role.Valid() {
		return badRequest(c, "Invalid role")
	}
	page := parsePagination(c, 50)

	profiles, total, err := s.accounts.ListProfiles(c.UserContext(), currentUserID(c), repository.ProfileFilter{
		Role:   role,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"profiles": profiles, "total": total})
}

// ChangeRole handles PUT /api/admin/profiles/:userId/role
// @Summary Change role
// @Description Super-admins change another user's role; audited
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Param request body object{role=string} true "New role"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/profiles/{userId}/role [put]
func (s *Server) ChangeRole(c *fiber.Ctx) error {
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	var req struct {
		Role models.Role `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	profile, err := s.accounts.ChangeRole(c.UserContext(), currentUserID(c), targetID, req.Role)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// ListAdminActions handles GET /api/admin/actions
// @Summary Audit log
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} object{actions=[]models.AdminAction,total=int}
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/actions [get]
func (s *Server) ListAdminActions(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	actions, total, err := s.accounts.ListActions(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"actions": actions, "total": total})
}

// GetFeatureFlags handles GET /api/admin/feature-flags
// @Summary Feature flags
// @Description Configured flags and their state for the caller
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}
