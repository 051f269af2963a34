package server

import (
	"fmt"

	"fraatlas/internal/email"
	"fraatlas/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateOfficial handles POST /api/functions/create-official
// @Summary Create official account
// @Description Super-admins provision an official; the action is audited
// @Tags functions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{email=string,password=string,full_name=string,phone=string} true "Official account"
// @Success 200 {object} object{success=bool,user=models.Profile,message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /functions/create-official [post]
func (s *Server) CreateOfficial(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	profile, err := s.accounts.CreateOfficial(c.UserContext(), currentUserID(c), service.CreateOfficialInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		return respond(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    profile,
		"message": fmt.Sprintf("Official account created for %s", profile.FullName),
	})
}

// ExportClaims handles POST /api/functions/export-claims
// @Summary Export claims
// @Description Download claims as CSV (default) or JSON. Citizens export their own claims.
// @Tags functions
// @Accept json
// @Produce text/csv
// @Produce json
// @Security BearerAuth
// @Param request body object{format=string,filters=object{status=string,startDate=string,endDate=string}} true "Export request"
// @Success 200 {string} string "CSV or JSON attachment"
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /functions/export-claims [post]
func (s *Server) ExportClaims(c *fiber.Ctx) error {
	var req struct {
		Format  string `json:"format"`
		Filters struct {
			Status    string `json:"status"`
			StartDate string `json:"startDate"`
			EndDate   string `json:"endDate"`
		} `json:"filters"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	result, err := s.exports.Export(c.UserContext(), actor(c), service.ExportRequest{
		Format:    req.Format,
		Status:    req.Filters.Status,
		StartDate: req.Filters.StartDate,
		EndDate:   req.Filters.EndDate,
	})
	if err != nil {
		return respond(c, err)
	}

	c.Set(fiber.HeaderContentType, result.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", result.Filename))
	return c.Send(result.Body)
}

// ExtractText handles POST /api/functions/extract-text
// @Summary Extract document text
// @Description OCR and translate a document image. Authenticated results are stored as digitization results.
// @Tags functions
// @Accept json
// @Produce json
// @Param request body object{imageUrl=string,fileName=string} true "Document image"
// @Success 200 {object} service.ExtractionResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 402 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /functions/extract-text [post]
func (s *Server) ExtractText(c *fiber.Ctx) error {
	var req struct {
		ImageURL string `json:"imageUrl"`
		FileName string `json:"fileName"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	userID, _ := s.optionalUserID(c)
	result, err := s.extraction.Extract(c.UserContext(), userID, service.ExtractRequest{
		ImageURL: req.ImageURL,
		FileName: req.FileName,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(result)
}

// SendNotificationEmail handles POST /api/functions/send-notification-email
// @Summary Send status email
// @Description Email a claimant about a status change
// @Tags functions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body email.StatusEmail true "Status email"
// @Success 200 {object} email.SendResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /functions/send-notification-email [post]
func (s *Server) SendNotificationEmail(c *fiber.Ctx) error {
	var req email.StatusEmail
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := s.notifications.SendEmail(c.UserContext(), req)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(result)
}
