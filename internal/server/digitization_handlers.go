package server

import "github.com/gofiber/fiber/v2"

// ListDigitizations handles GET /api/digitizations
// @Summary Digitization history
// @Tags digitization
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.DigitizationResult
// @Router /digitizations [get]
func (s *Server) ListDigitizations(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	results, err := s.extraction.List(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(results)
}

// GetDigitization handles GET /api/digitizations/:id
// @Summary Get digitization result
// @Tags digitization
// @Produce json
// @Security BearerAuth
// @Param id path string true "Digitization ID"
// @Success 200 {object} models.DigitizationResult
// @Failure 404 {object} models.ErrorResponse
// @Router /digitizations/{id} [get]
func (s *Server) GetDigitization(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	result, err := s.extraction.Get(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(result)
}
