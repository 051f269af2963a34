package server

import (
	"fmt"

	"fraatlas/internal/service"

	"github.com/gofiber/fiber/v2"
)

const maxAvatarUploadMB = 5

// GetProfile handles GET /api/profile
// @Summary Get own profile
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Profile
// @Router /profile [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	profile, err := s.profiles.Get(c.UserContext(), currentUserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// UpdateProfile handles PUT /api/profile
// @Summary Update own profile
// @Description Omitted fields are unchanged; an empty phone or address clears it
// @Tags profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{full_name=string,phone=string,address=string} true "Profile fields"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Router /profile [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req struct {
		FullName *string `json:"full_name"`
		Phone    *string `json:"phone"`
		Address  *string `json:"address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	profile, err := s.profiles.Update(c.UserContext(), service.UpdateProfileInput{
		UserID:   currentUserID(c),
		FullName: req.FullName,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// UploadAvatar handles POST /api/profile/avatar
// @Summary Upload avatar
// @Description Accepts JPEG, PNG, GIF or WebP up to 5MB; stored as a 512px WebP square
// @Tags profile
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Image"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Router /profile/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	fh, err := c.FormFile("avatar")
	if err != nil {
		return badRequest(c, "No file uploaded")
	}
	if fh.Size > maxAvatarUploadMB*1024*1024 {
		return badRequest(c, fmt.Sprintf("File too large (max %dMB)", maxAvatarUploadMB))
	}
	content, err := readUpload(fh)
	if err != nil {
		return badRequest(c, "Failed to read uploaded file")
	}

	profile, err := s.profiles.UploadAvatar(c.UserContext(), service.UploadAvatarInput{
		UserID:  currentUserID(c),
		Content: content,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}
