package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"fraatlas/internal/cache"
	"fraatlas/internal/middleware"
	"fraatlas/internal/models"
	"fraatlas/internal/observability"
	"fraatlas/internal/repository"
	"fraatlas/internal/schemes"
	"fraatlas/internal/storage"
	"fraatlas/internal/validation"
)

const (
	DefaultDocumentMaxUploadMB = 10
	maxDocumentsPerUpload      = 10
	maxBulkClaims              = 100
	minSearchQueryLength       = 2
	searchResultLimit          = 20
)

var allowedDocumentTypes = map[string]struct{}{
	"application/pdf":    {},
	"image/jpeg":         {},
	"image/jpg":          {},
	"image/png":          {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

// CreateClaimInput is a new claim submission.
type CreateClaimInput struct {
	ClaimType            models.ClaimType
	Village              string
	District             string
	State                string
	LandArea             *float64
	Description          string
	Coordinates          *models.Coordinates
	DigitizationResultID *uuid.UUID
}

// StatusChange is a review decision.
type StatusChange struct {
	Status  models.ClaimStatus
	Remarks *string
}

// UploadFile is one file of a document upload.
type UploadFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// SearchResult groups global search hits.
type SearchResult struct {
	Claims   []models.Claim   `json:"claims"`
	Profiles []models.Profile `json:"profiles"`
}

// Analytics is the dashboard payload.
type Analytics struct {
	Claims *repository.ClaimStats `json:"claims"`
	Users  map[models.Role]int64  `json:"users"`
}

// ClaimDeps collects ClaimService collaborators.
type ClaimDeps struct {
	Claims              repository.ClaimRepository
	Profiles            repository.ProfileRepository
	Digitizations       repository.DigitizationRepository
	Store               storage.ObjectStore
	Notifier            StatusNotifier
	Schemes             *schemes.Catalog
	DocumentMaxUploadMB int
}

type ClaimService struct {
	claims           repository.ClaimRepository
	profiles         repository.ProfileRepository
	digitizations    repository.DigitizationRepository
	store            storage.ObjectStore
	notifier         StatusNotifier
	schemes          *schemes.Catalog
	maxDocumentBytes int64
	now              func() time.Time
	logger           *slog.Logger
}

func NewClaimService(deps ClaimDeps) *ClaimService {
	maxMB := deps.DocumentMaxUploadMB
	if maxMB <= 0 {
		maxMB = DefaultDocumentMaxUploadMB
	}
	catalog := deps.Schemes
	if catalog == nil {
		catalog = schemes.Default()
	}
	return &ClaimService{
		claims:           deps.Claims,
		profiles:         deps.Profiles,
		digitizations:    deps.Digitizations,
		store:            deps.Store,
		notifier:         deps.Notifier,
		schemes:          catalog,
		maxDocumentBytes: int64(maxMB) * 1024 * 1024,
		now:              time.Now,
		logger:           middleware.Component("claim_service"),
	}
}

// Create files a claim owned by the caller with status pending.
func (s *ClaimService) Create(ctx context.Context, actor Actor, in CreateClaimInput) (*models.Claim, error) {
	fields := validation.ClaimFields{
		ClaimType:   in.ClaimType,
		Village:     in.Village,
		District:    in.District,
		State:       in.State,
		LandArea:    in.LandArea,
		Description: in.Description,
		Coordinates: in.Coordinates,
	}
	if err := validation.ValidateClaim(fields); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if in.DigitizationResultID != nil {
		result, err := s.digitizations.GetByID(ctx, *in.DigitizationResultID)
		if err != nil {
			return nil, err
		}
		if result.UserID != actor.UserID {
			return nil, models.NewNotFoundError("Digitization result", *in.DigitizationResultID)
		}
		if result.ClaimID != nil {
			return nil, repository.ErrDigitizationLinked
		}
	}

	claim := &models.Claim{
		UserID:      actor.UserID,
		ClaimType:   in.ClaimType,
		Village:     strings.TrimSpace(in.Village),
		District:    strings.TrimSpace(in.District),
		State:       strings.TrimSpace(in.State),
		LandArea:    in.LandArea,
		Description: strings.TrimSpace(in.Description),
		Coordinates: in.Coordinates,
		Documents:   []models.Document{},
		Status:      models.ClaimStatusPending,
		SubmittedAt: s.now().UTC(),

		DigitizationResultID: in.DigitizationResultID,
	}
	if err := s.claims.Create(ctx, claim); err != nil {
		return nil, err
	}
	observability.ClaimsSubmitted.WithLabelValues(string(claim.ClaimType)).Inc()

	s.logger.InfoContext(ctx, "claim submitted",
		slog.String("claim_id", claim.ID.String()),
		slog.String("claim_type", string(claim.ClaimType)),
		slog.String("state", claim.State))
	return claim, nil
}

// Get returns a claim the caller may see. Claims owned by someone else are
// reported as missing to citizens.
func (s *ClaimService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Claim, error) {
	claim, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanReadAllClaims() && claim.UserID != actor.UserID {
		return nil, models.NewNotFoundError("Claim", id)
	}
	s.refreshDocumentURLs(ctx, claim)
	return claim, nil
}

// List returns claims matching filter. Citizens only see their own.
func (s *ClaimService) List(ctx context.Context, actor Actor, filter repository.ClaimFilter) ([]models.Claim, int64, error) {
	if err := validateClaimFilter(filter); err != nil {
		return nil, 0, err
	}
	filter.OwnerID = actor.OwnerScope()
	return s.claims.List(ctx, filter)
}

// UpdateStatus applies an official's review decision and notifies the owner.
func (s *ClaimService) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, change StatusChange) (*models.Claim, error) {
	update, err := s.reviewUpdate(actor, change)
	if err != nil {
		return nil, err
	}

	claim, err := s.claims.UpdateReview(ctx, id, update)
	if err != nil {
		return nil, err
	}
	observability.ClaimStatusChanges.WithLabelValues(string(change.Status)).Inc()
	s.notify(ctx, claim)

	s.logger.InfoContext(ctx, "claim status updated",
		slog.String("claim_id", id.String()),
		slog.String("status", string(change.Status)),
		slog.Uint64("reviewer_id", uint64(actor.UserID)))
	return claim, nil
}

// BulkUpdateStatus applies one decision to up to 100 claims and returns the
// number of rows changed.
func (s *ClaimService) BulkUpdateStatus(ctx context.Context, actor Actor, ids []uuid.UUID, change StatusChange) (int64, error) {
	update, err := s.reviewUpdate(actor, change)
	if err != nil {
		return 0, err
	}

	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil && !slices.Contains(unique, id) {
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return 0, models.NewValidationError("At least one claim id is required")
	}
	if len(unique) > maxBulkClaims {
		return 0, models.NewValidationError(fmt.Sprintf("At most %d claims can be updated at once", maxBulkClaims))
	}

	updated, err := s.claims.BulkUpdateReview(ctx, unique, update)
	if err != nil {
		return 0, err
	}
	observability.ClaimStatusChanges.WithLabelValues(string(change.Status)).Add(float64(updated))

	for _, id := range unique {
		claim, err := s.claims.GetByID(ctx, id)
		if err != nil {
			if !isNotFound(err) {
				s.logger.WarnContext(ctx, "reload claim for notification failed",
					slog.String("claim_id", id.String()), slog.Any("error", err))
			}
			continue
		}
		s.notify(ctx, claim)
	}

	s.logger.InfoContext(ctx, "claims bulk updated",
		slog.Int("requested", len(unique)),
		slog.Int64("updated", updated),
		slog.String("status", string(change.Status)))
	return updated, nil
}

// reviewUpdate checks the caller may review and derives the columns to
// write. Any status other than pending stamps the reviewer; pending clears it.
func (s *ClaimService) reviewUpdate(actor Actor, change StatusChange) (repository.ReviewUpdate, error) {
	if !actor.Role.CanReviewClaims() {
		return repository.ReviewUpdate{}, models.NewForbiddenError("Only officials can review claims")
	}
	if !change.Status.Valid() {
		return repository.ReviewUpdate{}, models.NewValidationError("Invalid status")
	}

	update := repository.ReviewUpdate{Status: change.Status, Remarks: change.Remarks}
	if change.Status != models.ClaimStatusPending {
		now := s.now().UTC()
		reviewer := actor.UserID
		update.ReviewedAt = &now
		update.ReviewedBy = &reviewer
	}
	return update, nil
}

func (s *ClaimService) notify(ctx context.Context, claim *models.Claim) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyStatusChange(ctx, claim); err != nil {
		s.logger.WarnContext(ctx, "status notification failed",
			slog.String("claim_id", claim.ID.String()), slog.Any("error", err))
	}
}

// AddDocuments uploads files one at a time and appends them to the claim.
// A failed upload removes the files already stored by this call.
func (s *ClaimService) AddDocuments(ctx context.Context, actor Actor, id uuid.UUID, files []UploadFile) (*models.Claim, error) {
	if len(files) == 0 {
		return nil, models.NewValidationError("No files uploaded")
	}
	if len(files) > maxDocumentsPerUpload {
		return nil, models.NewValidationError(fmt.Sprintf("At most %d files per upload", maxDocumentsPerUpload))
	}
	for _, f := range files {
		if err := s.validateDocument(f); err != nil {
			return nil, err
		}
	}

	claim, err := s.ownedClaim(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	added := make([]models.Document, 0, len(files))
	for _, f := range files {
		doc, err := s.storeDocument(ctx, actor.UserID, f)
		if err != nil {
			s.discard(ctx, added)
			return nil, err
		}
		added = append(added, *doc)
	}

	docs := append(slices.Clone(claim.Documents), added...)
	if err := s.claims.UpdateDocuments(ctx, claim.ID, docs); err != nil {
		s.discard(ctx, added)
		return nil, err
	}
	claim.Documents = docs
	return claim, nil
}

// RemoveDocument deletes one attached document.
func (s *ClaimService) RemoveDocument(ctx context.Context, actor Actor, id uuid.UUID, docID string) (*models.Claim, error) {
	claim, err := s.ownedClaim(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(claim.Documents, func(d models.Document) bool { return d.ID == docID })
	if idx < 0 {
		return nil, models.NewNotFoundError("Document", docID)
	}
	doc := claim.Documents[idx]

	if storage.OwnedBy(doc.Path, claim.UserID) {
		if err := s.store.Delete(ctx, storage.BucketDocuments, doc.Path); err != nil {
			return nil, models.NewInternalError(err)
		}
	}

	docs := slices.Delete(slices.Clone(claim.Documents), idx, idx+1)
	if err := s.claims.UpdateDocuments(ctx, claim.ID, docs); err != nil {
		return nil, err
	}
	claim.Documents = docs
	return claim, nil
}

// ownedClaim loads a claim the caller owns. Readers get 403 for claims of
// others; everyone else gets 404.
func (s *ClaimService) ownedClaim(ctx context.Context, actor Actor, id uuid.UUID) (*models.Claim, error) {
	claim, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim.UserID != actor.UserID {
		if actor.Role.CanReadAllClaims() {
			return nil, models.NewForbiddenError("Only the claim owner can change its documents")
		}
		return nil, models.NewNotFoundError("Claim", id)
	}
	return claim, nil
}

func (s *ClaimService) validateDocument(f UploadFile) error {
	if len(f.Content) == 0 {
		return models.NewValidationError(fmt.Sprintf("%s is empty", f.Name))
	}
	if int64(len(f.Content)) > s.maxDocumentBytes {
		return models.NewValidationError(fmt.Sprintf("%s exceeds the %dMB limit", f.Name, s.maxDocumentBytes/(1024*1024)))
	}
	declared := normalizeContentType(f.ContentType)
	if _, ok := allowedDocumentTypes[declared]; !ok {
		return models.NewValidationError(fmt.Sprintf("%s is not a supported file type", f.Name))
	}
	// PDFs and images must really be what they claim to be.
	sniffed := normalizeContentType(http.DetectContentType(f.Content))
	switch {
	case declared == "application/pdf" && sniffed != "application/pdf",
		strings.HasPrefix(declared, "image/") && !isAllowedImageMIME(sniffed):
		return models.NewValidationError(fmt.Sprintf("%s content does not match its type", f.Name))
	}
	return nil
}

func (s *ClaimService) storeDocument(ctx context.Context, userID uint, f UploadFile) (*models.Document, error) {
	key := storage.DocumentKey(userID, f.Name)
	contentType := normalizeContentType(f.ContentType)
	if err := s.store.Put(ctx, storage.BucketDocuments, key, contentType, f.Content); err != nil {
		return nil, models.NewInternalError(fmt.Errorf("store %s: %w", f.Name, err))
	}
	observability.DocumentsStored.WithLabelValues(storage.BucketDocuments).Inc()

	url, err := s.store.URL(ctx, storage.BucketDocuments, key)
	if err != nil {
		_ = s.store.Delete(ctx, storage.BucketDocuments, key)
		return nil, models.NewInternalError(err)
	}
	return &models.Document{
		ID:         uuid.NewString(),
		Name:       f.Name,
		Type:       contentType,
		Size:       int64(len(f.Content)),
		URL:        url,
		Path:       key,
		UploadedAt: s.now().UTC(),
	}, nil
}

func (s *ClaimService) discard(ctx context.Context, docs []models.Document) {
	for _, d := range docs {
		if err := s.store.Delete(ctx, storage.BucketDocuments, d.Path); err != nil {
			s.logger.WarnContext(ctx, "remove orphaned document failed",
				slog.String("path", d.Path), slog.Any("error", err))
		}
	}
}

// refreshDocumentURLs re-derives document URLs from their storage paths so a
// changed public base URL takes effect.
func (s *ClaimService) refreshDocumentURLs(ctx context.Context, claim *models.Claim) {
	if s.store == nil {
		return
	}
	for i := range claim.Documents {
		if claim.Documents[i].Path == "" {
			continue
		}
		if url, err := s.store.URL(ctx, storage.BucketDocuments, claim.Documents[i].Path); err == nil {
			claim.Documents[i].URL = url
		}
	}
}

// Search matches claims and, for officials and admins, profiles.
func (s *ClaimService) Search(ctx context.Context, actor Actor, q string) (*SearchResult, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < minSearchQueryLength {
		return nil, models.NewValidationError(fmt.Sprintf("Search query must be at least %d characters", minSearchQueryLength))
	}

	claims, err := s.claims.Search(ctx, q, actor.OwnerScope(), searchResultLimit)
	if err != nil {
		return nil, err
	}
	out := &SearchResult{Claims: claims, Profiles: []models.Profile{}}
	if actor.Role.CanReadAllClaims() {
		profiles, err := s.profiles.Search(ctx, q, searchResultLimit)
		if err != nil {
			return nil, err
		}
		out.Profiles = profiles
	}
	return out, nil
}

// Stats returns dashboard analytics for officials and admins.
func (s *ClaimService) Stats(ctx context.Context, actor Actor) (*Analytics, error) {
	if !actor.Role.CanReadAllClaims() {
		return nil, models.NewForbiddenError("Analytics are available to officials and admins only")
	}
	stats, err := s.claims.Stats(ctx, cache.AnalyticsScopeAll)
	if err != nil {
		return nil, err
	}
	users, err := s.profiles.CountByRole(ctx)
	if err != nil {
		return nil, err
	}
	return &Analytics{Claims: stats, Users: users}, nil
}

// Schemes recommends government schemes for a claim the caller may see.
func (s *ClaimService) Schemes(ctx context.Context, actor Actor, id uuid.UUID) ([]schemes.Scheme, error) {
	claim, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.schemes.Recommend(claim), nil
}

// Catalog lists every known scheme.
func (s *ClaimService) Catalog() []schemes.Scheme {
	return s.schemes.All()
}

func validateClaimFilter(filter repository.ClaimFilter) error {
	if filter.Status != "" && !filter.Status.Valid() {
		return models.NewValidationError("Invalid status filter")
	}
	if filter.ClaimType != "" && !filter.ClaimType.Valid() {
		return models.NewValidationError("Invalid claim type filter")
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return models.NewValidationError("Start date must not be after end date")
	}
	return nil
}
