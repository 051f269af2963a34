package server

import (
	"fmt"
	"io"
	"mime/multipart"

	"fraatlas/internal/models"
	"fraatlas/internal/repository"
	"fraatlas/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultClaimPageSize = 20

type claimRequest struct {
	ClaimType            models.ClaimType    `json:"claim_type"`
	Village              string              `json:"village"`
	District             string              `json:"district"`
	State                string              `json:"state"`
	LandArea             *float64            `json:"land_area"`
	Description          string              `json:"claim_description"`
	Coordinates          *models.Coordinates `json:"coordinates"`
	DigitizationResultID *uuid.UUID          `json:"digitization_result_id"`
}

type statusRequest struct {
	Status  models.ClaimStatus `json:"status"`
	Remarks *string            `json:"remarks"`
}

// CreateClaim handles POST /api/claims
// @Summary Submit claim
// @Description File a new FRA claim owned by the caller with status pending
// @Tags claims
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body claimRequest true "Claim"
// @Success 201 {object} models.Claim
// @Failure 400 {object} models.ErrorResponse
// @Router /claims [post]
func (s *Server) CreateClaim(c *fiber.Ctx) error {
	var req claimRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	claim, err := s.claims.Create(c.UserContext(), actor(c), service.CreateClaimInput{
		ClaimType:            req.ClaimType,
		Village:              req.Village,
		District:             req.District,
		State:                req.State,
		LandArea:             req.LandArea,
		Description:          req.Description,
		Coordinates:          req.Coordinates,
		DigitizationResultID: req.DigitizationResultID,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(claim)
}

// ListClaims handles GET /api/claims
// @Summary List claims
// @Description Citizens see their own claims; officials and super-admins see all
// @Tags claims
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending|under_review|approved|rejected"
// @Param claim_type query string false "individual|community"
// @Param state query string false "State"
// @Param district query string false "District"
// @Param from query string false "Submitted on or after (YYYY-MM-DD)"
// @Param to query string false "Submitted on or before (YYYY-MM-DD)"
// @Param q query string false "Text search"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} object{claims=[]models.Claim,total=int,limit=int,offset=int}
// @Failure 400 {object} models.ErrorResponse
// @Router /claims [get]
func (s *Server) ListClaims(c *fiber.Ctx) error {
	filter, err := claimFilterFromQuery(c)
	if err != nil {
		return nil
	}
	page := parsePagination(c, defaultClaimPageSize)
	filter.Limit, filter.Offset = page.Limit, page.Offset

	claims, total, err := s.claims.List(c.UserContext(), actor(c), filter)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{
		"claims": claims,
		"total":  total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// GetClaimMap handles GET /api/claims/map
// @Summary Claim map feed
// @Description GeoJSON FeatureCollection of visible claims with coordinates
// @Tags claims
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param state query string false "State filter"
// @Param limit query int false "Page size (max 1000)"
// @Param offset query int false "Page offset"
// @Success 200 {object} service.FeatureCollection
// @Router /claims/map [get]
func (s *Server) GetClaimMap(c *fiber.Ctx) error {
	filter, err := claimFilterFromQuery(c)
	if err != nil {
		return nil
	}
	filter.Limit = c.QueryInt("limit", repository.MaxMapFeatures)
	filter.Offset = c.QueryInt("offset", 0)
	features, err := s.claims.MapFeatures(c.UserContext(), actor(c), filter)
	if err != nil {
		return respond(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/geo+json")
	return c.JSON(features)
}

// GetClaim handles GET /api/claims/:id
// @Summary Get claim
// @Tags claims
// @Produce json
// @Security BearerAuth
// @Param id path string true "Claim ID"
// @Success 200 {object} models.Claim
// @Failure 404 {object} models.ErrorResponse
// @Router /claims/{id} [get]
func (s *Server) GetClaim(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	claim, err := s.claims.Get(c.UserContext(), actor(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(claim)
}

// UpdateClaimStatus handles PATCH /api/claims/:id/status
// @Summary Review claim
// @Description Officials set any status; the owner is notified
// @Tags claims
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Claim ID"
// @Param request body statusRequest true "Decision"
// @Success 200 {object} models.Claim
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /claims/{id}/status [patch]
func (s *Server) UpdateClaimStatus(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	claim, err := s.claims.UpdateStatus(c.UserContext(), actor(c), id, service.StatusChange{
		Status:  req.Status,
		Remarks: req.Remarks,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(claim)
}

// BulkUpdateClaimStatus handles POST /api/claims/bulk-status
// @Summary Bulk review
// @Description Apply one decision to up to 100 claims
// @Tags claims
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{ids=[]string,status=string,remarks=string} true "Decision"
// @Success 200 {object} object{updated=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /claims/bulk-status [post]
func (s *Server) BulkUpdateClaimStatus(c *fiber.Ctx) error {
	var req struct {
		IDs []uuid.UUID `json:"ids"`
		statusRequest
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	updated, err := s.claims.BulkUpdateStatus(c.UserContext(), actor(c), req.IDs, service.StatusChange{
		Status:  req.Status,
		Remarks: req.Remarks,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"updated": updated})
}

// UploadClaimDocuments handles POST /api/claims/:id/documents
// @Summary Attach documents
// @Description Upload up to 10 files (PDF, JPEG, PNG, DOC, DOCX) to an owned claim
// @Tags claims
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Claim ID"
// @Param files formData file true "Documents"
// @Success 200 {object} models.Claim
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /claims/{id}/documents [post]
func (s *Server) UploadClaimDocuments(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "Expected multipart form data")
	}
	headers := append(form.File["files"], form.File["file"]...)
	if len(headers) == 0 {
		return badRequest(c, "No files uploaded")
	}

	maxBytes := int64(s.documentLimitMB()) * 1024 * 1024
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxBytes {
			return badRequest(c, fmt.Sprintf("%s exceeds the %dMB limit", fh.Filename, s.documentLimitMB()))
		}
		content, err := readUpload(fh)
		if err != nil {
			return badRequest(c, "Failed to read uploaded file")
		}
		files = append(files, service.UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Content:     content,
		})
	}

	claim, err := s.claims.AddDocuments(c.UserContext(), actor(c), id, files)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(claim)
}

// DeleteClaimDocument handles DELETE /api/claims/:id/documents/:docId
// @Summary Remove document
// @Tags claims
// @Produce json
// @Security BearerAuth
// @Param id path string true "Claim ID"
// @Param docId path string true "Document ID"
// @Success 200 {object} models.Claim
// @Failure 404 {object} models.ErrorResponse
// @Router /claims/{id}/documents/{docId} [delete]
func (s *Server) DeleteClaimDocument(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	claim, err := s.claims.RemoveDocument(c.UserContext(), actor(c), id, c.Params("docId"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(claim)
}

// GetClaimSchemes handles GET /api/claims/:id/schemes
// @Summary Scheme recommendations
// @Description Welfare schemes the claim is eligible for, by priority
// @Tags schemes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Claim ID"
// @Success 200 {array} schemes.Scheme
// @Failure 404 {object} models.ErrorResponse
// @Router /claims/{id}/schemes [get]
func (s *Server) GetClaimSchemes(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	recommended, err := s.claims.Schemes(c.UserContext(), actor(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(recommended)
}

// GetSchemes handles GET /api/schemes
// @Summary Scheme catalog
// @Tags schemes
// @Produce json
// @Success 200 {array} schemes.Scheme
// @Router /schemes [get]
func (s *Server) GetSchemes(c *fiber.Ctx) error {
	return c.JSON(s.claims.Catalog())
}

// GetClaimAnalytics handles GET /api/analytics/claims
// @Summary Claim analytics
// @Description Counts by status, type and state, processing time and monthly trend
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Analytics
// @Failure 403 {object} models.ErrorResponse
// @Router /analytics/claims [get]
func (s *Server) GetClaimAnalytics(c *fiber.Ctx) error {
	stats, err := s.claims.Stats(c.UserContext(), actor(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(stats)
}

// Search handles GET /api/search
// @Summary Global search
// @Description Claims visible to the caller, plus profiles for officials and super-admins
// @Tags search
// @Produce json
// @Security BearerAuth
// @Param q query string true "Query (2+ characters)"
// @Success 200 {object} service.SearchResult
// @Failure 400 {object} models.ErrorResponse
// @Router /search [get]
func (s *Server) Search(c *fiber.Ctx) error {
	result, err := s.claims.Search(c.UserContext(), actor(c), c.Query("q"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(result)
}

// claimFilterFromQuery reads the shared claim filters. On failure it writes
// a 400 response and returns errResponseWritten.
func claimFilterFromQuery(c *fiber.Ctx) (repository.ClaimFilter, error) {
	filter := repository.ClaimFilter{
		Status:    models.ClaimStatus(c.Query("status")),
		ClaimType: models.ClaimType(c.Query("claim_type")),
		State:     c.Query("state"),
		District:  c.Query("district"),
		Query:     c.Query("q"),
	}
	var err error
	if filter.From, err = service.ParseDateBound(c.Query("from"), false); err != nil {
		_ = badRequest(c, "Invalid from date")
		return filter, errResponseWritten
	}
	if filter.To, err = service.ParseDateBound(c.Query("to"), true); err != nil {
		_ = badRequest(c, "Invalid to date")
		return filter, errResponseWritten
	}
	return filter, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}
