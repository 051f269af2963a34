package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"fraatlas/internal/middleware"
	"fraatlas/internal/models"
	"fraatlas/internal/observability"
	"fraatlas/internal/repository"
)

// Export formats.
const (
	ExportCSV  = "csv"
	ExportJSON = "json"
)

const exportDateLayout = "2006-01-02"

var exportHeader = []string{
	"Claim ID",
	"Applicant Name",
	"Email",
	"Phone",
	"Claim Type",
	"State",
	"District",
	"Village",
	"Land Area (Hectares)",
	"Status",
	"Submitted At",
	"Reviewed At",
	"Remarks",
}

// ExportRequest selects and formats claims for download. Dates are
// YYYY-MM-DD or RFC 3339; a date-only EndDate covers the whole day.
type ExportRequest struct {
	Format    string
	Status    string
	StartDate string
	EndDate   string
}

// ExportResult is a ready-to-send attachment.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
	Count       int
}

type ExportService struct {
	claims repository.ClaimRepository
	now    func() time.Time
	logger *slog.Logger
}

func NewExportService(claims repository.ClaimRepository) *ExportService {
	return &ExportService{
		claims: claims,
		now:    time.Now,
		logger: middleware.Component("export_service"),
	}
}

// Export renders the claims visible to actor that match req.
func (s *ExportService) Export(ctx context.Context, actor Actor, req ExportRequest) (*ExportResult, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = ExportCSV
	}
	if format != ExportCSV && format != ExportJSON {
		return nil, models.NewValidationError("format must be csv or json")
	}

	filter := repository.ExportFilter{OwnerID: actor.OwnerScope()}
	if status := strings.TrimSpace(req.Status); status != "" {
		filter.Status = models.ClaimStatus(status)
		if !filter.Status.Valid() {
			return nil, models.NewValidationError("Invalid status filter")
		}
	}
	var err error
	if filter.From, err = ParseDateBound(req.StartDate, false); err != nil {
		return nil, models.NewValidationError("Invalid startDate")
	}
	if filter.To, err = ParseDateBound(req.EndDate, true); err != nil {
		return nil, models.NewValidationError("Invalid endDate")
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, models.NewValidationError("startDate must not be after endDate")
	}

	claims, err := s.claims.ListForExport(ctx, filter)
	if err != nil {
		return nil, err
	}

	stamp := s.now().UTC().Format(time.RFC3339)
	result := &ExportResult{
		Filename: fmt.Sprintf("claims-export-%s.%s", stamp, format),
		Count:    len(claims),
	}
	switch format {
	case ExportJSON:
		if claims == nil {
			claims = []models.Claim{}
		}
		body, err := json.MarshalIndent(claims, "", "  ")
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		result.Body = body
		result.ContentType = "application/json"
	default:
		result.Body = renderClaimsCSV(claims)
		result.ContentType = "text/csv"
	}

	observability.ExportsGenerated.WithLabelValues(format).Inc()
	s.logger.InfoContext(ctx, "claims exported",
		slog.String("format", format), slog.Int("count", len(claims)))
	return result, nil
}

// ParseDateBound parses a date filter given as YYYY-MM-DD or RFC 3339. An
// empty value means no bound. A date-only upper bound (endOfDay) covers the
// whole day.
func ParseDateBound(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(exportDateLayout, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// renderClaimsCSV writes the header and one row per claim. Every data cell
// is quoted, unlike encoding/csv which only quotes when required.
func renderClaimsCSV(claims []models.Claim) []byte {
	var buf bytes.Buffer
	buf.WriteString(strings.Join(exportHeader, ","))
	for i := range claims {
		buf.WriteByte('\n')
		for j, cell := range exportRow(&claims[i]) {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('"')
			buf.WriteString(strings.ReplaceAll(cell, `"`, `""`))
			buf.WriteByte('"')
		}
	}
	return buf.Bytes()
}

func exportRow(c *models.Claim) []string {
	name, mail, phone := "N/A", "N/A", "N/A"
	if p := c.Applicant; p != nil {
		name = orNA(p.FullName)
		mail = orNA(p.Email)
		if p.Phone != nil {
			phone = orNA(*p.Phone)
		}
	}
	landArea := "N/A"
	if c.LandArea != nil {
		landArea = strconv.FormatFloat(*c.LandArea, 'f', -1, 64)
	}
	reviewed := "N/A"
	if c.ReviewedAt != nil {
		reviewed = c.ReviewedAt.UTC().Format(exportDateLayout)
	}
	remarks := "N/A"
	if c.Remarks != nil {
		remarks = orNA(*c.Remarks)
	}
	return []string{
		c.ID.String(),
		name,
		mail,
		phone,
		string(c.ClaimType),
		c.State,
		c.District,
		c.Village,
		landArea,
		string(c.Status),
		c.SubmittedAt.UTC().Format(exportDateLayout),
		reviewed,
		remarks,
	}
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return "N/A"
	}
	return v
}
