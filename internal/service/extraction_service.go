package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"fraatlas/internal/featureflags"
	"fraatlas/internal/middleware"
	"fraatlas/internal/models"
	"fraatlas/internal/observability"
	"fraatlas/internal/ocr"
	"fraatlas/internal/repository"
)

// ExtractionConfidence is the fixed confidence reported for model output.
const ExtractionConfidence = 0.85

// ExtractRequest points at an uploaded document image.
type ExtractRequest struct {
	ImageURL string
	FileName string
}

// ExtractionResult is the OCR output returned to the client.
type ExtractionResult struct {
	RawText        string         `json:"rawText"`
	StructuredData map[string]any `json:"structuredData"`
	Confidence     float64        `json:"confidence"`
	Provider       string         `json:"provider"`
	DigitizationID *uuid.UUID     `json:"digitizationId,omitempty"`
}

// ExtractionDeps collects ExtractionService collaborators. Primary is the
// configured provider; Gemini, when set, takes over for users in the
// gemini_ocr rollout.
type ExtractionDeps struct {
	Primary       ocr.Extractor
	Gemini        ocr.Extractor
	Digitizations repository.DigitizationRepository
	Flags         *featureflags.Manager
}

type ExtractionService struct {
	primary       ocr.Extractor
	gemini        ocr.Extractor
	digitizations repository.DigitizationRepository
	flags         *featureflags.Manager
	logger        *slog.Logger
}

func NewExtractionService(deps ExtractionDeps) *ExtractionService {
	return &ExtractionService{
		primary:       deps.Primary,
		gemini:        deps.Gemini,
		digitizations: deps.Digitizations,
		flags:         deps.Flags,
		logger:        middleware.Component("extraction_service"),
	}
}

// Extract runs OCR over req.ImageURL. userID is zero for anonymous callers;
// authenticated results are stored as digitization results.
func (s *ExtractionService) Extract(ctx context.Context, userID uint, req ExtractRequest) (*ExtractionResult, error) {
	imageURL := strings.TrimSpace(req.ImageURL)
	if imageURL == "" {
		return nil, models.NewValidationError("No image URL provided")
	}

	extractor := s.extractorFor(userID)
	if extractor == nil {
		return nil, &models.AppError{Code: models.CodeInternal, Message: "AI service not configured"}
	}
	provider := extractor.Name()

	start := time.Now()
	text, err := extractor.Extract(ctx, ocr.Image{URL: imageURL, FileName: req.FileName})
	observability.AIExtractionLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		appErr, outcome := mapExtractionError(err)
		observability.AIExtractions.WithLabelValues(provider, outcome).Inc()
		s.logger.ErrorContext(ctx, "ocr extraction failed",
			slog.String("provider", provider), slog.String("outcome", outcome), slog.Any("error", err))
		return nil, appErr
	}
	if strings.TrimSpace(text) == "" {
		observability.AIExtractions.WithLabelValues(provider, "empty").Inc()
		return nil, models.NewUpstreamError(http.StatusInternalServerError, "No text extracted", nil)
	}
	observability.AIExtractions.WithLabelValues(provider, "success").Inc()

	result := &ExtractionResult{
		RawText:        text,
		StructuredData: ocr.ParseStructured(text),
		Confidence:     ExtractionConfidence,
		Provider:       provider,
	}

	if userID != 0 && s.digitizations != nil {
		record := &models.DigitizationResult{
			UserID:         userID,
			FileName:       req.FileName,
			ImageURL:       imageURL,
			RawText:        text,
			StructuredData: result.StructuredData,
			Confidence:     ExtractionConfidence,
			Provider:       provider,
		}
		if err := s.digitizations.Create(ctx, record); err != nil {
			s.logger.WarnContext(ctx, "store digitization result failed", slog.Any("error", err))
		} else {
			result.DigitizationID = &record.ID
		}
	}
	return result, nil
}

// Get returns a stored digitization result owned by userID.
func (s *ExtractionService) Get(ctx context.Context, userID uint, id uuid.UUID) (*models.DigitizationResult, error) {
	result, err := s.digitizations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.UserID != userID {
		return nil, models.NewNotFoundError("Digitization result", id)
	}
	return result, nil
}

// List returns the caller's digitization history, newest first.
func (s *ExtractionService) List(ctx context.Context, userID uint, limit, offset int) ([]models.DigitizationResult, error) {
	return s.digitizations.ListByUser(ctx, userID, limit, offset)
}

func (s *ExtractionService) extractorFor(userID uint) ocr.Extractor {
	if s.gemini != nil && s.flags.Enabled(featureflags.FlagGeminiOCR, userID) {
		return s.gemini
	}
	return s.primary
}

func mapExtractionError(err error) (*models.AppError, string) {
	if errors.Is(err, ocr.ErrImageURLBlocked) {
		return models.NewValidationError("Image URL must be a public https address"), "rejected"
	}
	var upstream *ocr.UpstreamError
	if errors.As(err, &upstream) {
		switch upstream.Status {
		case http.StatusTooManyRequests:
			return models.NewUpstreamError(http.StatusTooManyRequests,
				"Rate limit exceeded. Please try again later.", err), "rate_limited"
		case http.StatusPaymentRequired:
			return models.NewUpstreamError(http.StatusPaymentRequired,
				"Payment required. Please add credits to your workspace.", err), "payment_required"
		}
	}
	return models.NewUpstreamError(http.StatusInternalServerError, "AI extraction failed", err), "failed"
}
