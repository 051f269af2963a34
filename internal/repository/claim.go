package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"fraatlas/internal/cache"
	"fraatlas/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClaimFilter narrows claim listings. OwnerID restricts results to one user's
// claims; nil means every owner.
type ClaimFilter struct {
	OwnerID   *uint
	Status    models.ClaimStatus
	ClaimType models.ClaimType
	State     string
	District  string
	From      *time.Time
	To        *time.Time
	Query     string
	Limit     int
	Offset    int
}

// ExportFilter selects claims for export. Bounds are inclusive.
type ExportFilter struct {
	OwnerID *uint
	Status  models.ClaimStatus
	From    *time.Time
	To      *time.Time
}

// ReviewUpdate is the set of columns written by a status change. Remarks is
// left untouched when nil.
type ReviewUpdate struct {
	Status     models.ClaimStatus
	ReviewedAt *time.Time
	ReviewedBy *uint
	Remarks    *string
}

// StateCount is the number of claims filed in one state.
type StateCount struct {
	State string `json:"state"`
	Count int64  `json:"count"`
}

// MonthlyCount is the number of claims submitted in one calendar month (YYYY-MM).
type MonthlyCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// ClaimStats aggregates claims for the analytics view.
type ClaimStats struct {
	Total             int64            `json:"total"`
	ByStatus          map[string]int64 `json:"by_status"`
	ByType            map[string]int64 `json:"by_type"`
	ByState           []StateCount     `json:"by_state"`
	AvgProcessingDays float64          `json:"avg_processing_days"`
	Monthly           []MonthlyCount   `json:"monthly"`
}

// trendMonths is how many calendar months (including the current one) the
// monthly trend covers.
const trendMonths = 6

// ClaimRepository defines persistence operations for claims.
type ClaimRepository interface {
	Create(ctx context.Context, claim *models.Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Claim, error)
	List(ctx context.Context, filter ClaimFilter) ([]models.Claim, int64, error)
	ListForExport(ctx context.Context, filter ExportFilter) ([]models.Claim, error)
	ListWithCoordinates(ctx context.Context, filter ClaimFilter) (claims []models.Claim, truncated bool, err error)
	UpdateReview(ctx context.Context, id uuid.UUID, update ReviewUpdate) (*models.Claim, error)
	BulkUpdateReview(ctx context.Context, ids []uuid.UUID, update ReviewUpdate) (int64, error)
	UpdateDocuments(ctx context.Context, id uuid.UUID, docs []models.Document) error
	Stats(ctx context.Context, scope string) (*ClaimStats, error)
	Search(ctx context.Context, q string, ownerID *uint, limit int) ([]models.Claim, error)
}

type claimRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewClaimRepository returns a new ClaimRepository implementation.
func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &claimRepository{db: db, now: time.Now}
}

// ErrDigitizationLinked reports a digitization result that already backs a claim.
var ErrDigitizationLinked = models.NewConflictError("Digitization result is already linked to a claim")

// Create inserts claim. When claim.DigitizationResultID is set, the result is
// claimed in the same transaction and the insert rolls back if another claim
// already owns it.
func (r *claimRepository) Create(ctx context.Context, claim *models.Claim) error {
	if claim.Documents == nil {
		claim.Documents = []models.Document{}
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Applicant").Create(claim).Error; err != nil {
			return err
		}
		if claim.DigitizationResultID == nil {
			return nil
		}
		res := tx.Model(&models.DigitizationResult{}).
			Where("id = ? AND claim_id IS NULL", *claim.DigitizationResultID).
			Update("claim_id", claim.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDigitizationLinked
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateAnalytics(ctx)
	return nil
}

func (r *claimRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	var claim models.Claim
	err := cache.Aside(ctx, cache.ClaimKey(id), &claim, cache.ClaimTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).Preload("Applicant").
			Where("id = ?", id).First(&claim).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Claim", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *claimRepository) applyFilter(q *gorm.DB, filter ClaimFilter) *gorm.DB {
	if filter.OwnerID != nil {
		q = q.Where("claims.user_id = ?", *filter.OwnerID)
	}
	if filter.Status != "" {
		q = q.Where("claims.status = ?", filter.Status)
	}
	if filter.ClaimType != "" {
		q = q.Where("claims.claim_type = ?", filter.ClaimType)
	}
	if filter.State != "" {
		q = q.Where("claims.state = ?", filter.State)
	}
	if filter.District != "" {
		q = q.Where("claims.district = ?", filter.District)
	}
	if filter.From != nil {
		q = q.Where("claims.submitted_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("claims.submitted_at <= ?", *filter.To)
	}
	if filter.Query != "" {
		pattern := likePattern(filter.Query)
		q = q.Where(
			"LOWER(claims.village) LIKE ? ESCAPE '\\' OR LOWER(claims.district) LIKE ? ESCAPE '\\' OR LOWER(claims.state) LIKE ? ESCAPE '\\' OR LOWER(claims.claim_description) LIKE ? ESCAPE '\\'",
			pattern, pattern, pattern, pattern,
		)
	}
	return q
}

func (r *claimRepository) List(ctx context.Context, filter ClaimFilter) ([]models.Claim, int64, error) {
	base := func() *gorm.DB {
		return r.applyFilter(readDB(r.db).WithContext(ctx).Model(&models.Claim{}), filter)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var claims []models.Claim
	if err := base().Preload("Applicant").
		Order("claims.submitted_at DESC").
		Limit(clampLimit(filter.Limit)).
		Offset(filter.Offset).
		Find(&claims).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return claims, total, nil
}

func (r *claimRepository) ListForExport(ctx context.Context, filter ExportFilter) ([]models.Claim, error) {
	q := r.applyFilter(readDB(r.db).WithContext(ctx).Model(&models.Claim{}), ClaimFilter{
		OwnerID: filter.OwnerID,
		Status:  filter.Status,
		From:    filter.From,
		To:      filter.To,
	})

	var claims []models.Claim
	if err := q.Preload("Applicant").Order("claims.submitted_at DESC").Find(&claims).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return claims, nil
}

// MaxMapFeatures caps one page of the claim map.
const MaxMapFeatures = 1000

// ListWithCoordinates returns one page of located claims. truncated reports
// that more rows exist past filter.Offset+limit.
func (r *claimRepository) ListWithCoordinates(ctx context.Context, filter ClaimFilter) ([]models.Claim, bool, error) {
	q := r.applyFilter(readDB(r.db).WithContext(ctx).Model(&models.Claim{}), filter).
		Where("claims.coordinates IS NOT NULL")

	limit := filter.Limit
	if limit <= 0 || limit > MaxMapFeatures {
		limit = MaxMapFeatures
	}

	var claims []models.Claim
	if err := q.Order("claims.submitted_at DESC").Order("claims.id").
		Limit(limit + 1).
		Offset(max(filter.Offset, 0)).
		Find(&claims).Error; err != nil {
		return nil, false, models.NewInternalError(err)
	}
	truncated := len(claims) > limit
	if truncated {
		claims = claims[:limit]
	}
	// A JSON null stored by older rows still passes IS NOT NULL.
	out := claims[:0]
	for _, c := range claims {
		if c.Coordinates != nil {
			out = append(out, c)
		}
	}
	return out, truncated, nil
}

func reviewColumns(update ReviewUpdate, now time.Time) map[string]any {
	cols := map[string]any{
		"status":      update.Status,
		"reviewed_at": update.ReviewedAt,
		"reviewed_by": update.ReviewedBy,
		"updated_at":  now,
	}
	if update.Remarks != nil {
		cols["remarks"] = *update.Remarks
	}
	return cols
}

func (r *claimRepository) UpdateReview(ctx context.Context, id uuid.UUID, update ReviewUpdate) (*models.Claim, error) {
	res := r.db.WithContext(ctx).Model(&models.Claim{}).Where("id = ?", id).
		Updates(reviewColumns(update, r.now()))
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("Claim", id)
	}
	cache.InvalidateClaim(ctx, id)
	cache.InvalidateAnalytics(ctx)

	var claim models.Claim
	if err := r.db.WithContext(ctx).Preload("Applicant").Where("id = ?", id).First(&claim).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &claim, nil
}

func (r *claimRepository) BulkUpdateReview(ctx context.Context, ids []uuid.UUID, update ReviewUpdate) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Claim{}).Where("id IN ?", ids).
		Updates(reviewColumns(update, r.now()))
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	cache.InvalidateClaim(ctx, ids...)
	cache.InvalidateAnalytics(ctx)
	return res.RowsAffected, nil
}

func (r *claimRepository) UpdateDocuments(ctx context.Context, id uuid.UUID, docs []models.Document) error {
	if docs == nil {
		docs = []models.Document{}
	}
	res := r.db.WithContext(ctx).Model(&models.Claim{ID: id}).
		Select("documents", "updated_at").
		Updates(models.Claim{Documents: docs, UpdatedAt: r.now()})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Claim", id)
	}
	cache.InvalidateClaim(ctx, id)
	return nil
}

// Stats is cached per scope for cache.AnalyticsTTL.
func (r *claimRepository) Stats(ctx context.Context, scope string) (*ClaimStats, error) {
	var stats ClaimStats
	err := cache.Aside(ctx, cache.AnalyticsKey(scope), &stats, cache.AnalyticsTTL, func() error {
		computed, err := r.computeStats(ctx)
		if err != nil {
			return err
		}
		stats = *computed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

type groupCount struct {
	GroupKey string
	Count    int64
}

func (r *claimRepository) countBy(ctx context.Context, column string) ([]groupCount, error) {
	var rows []groupCount
	err := readDB(r.db).WithContext(ctx).Model(&models.Claim{}).
		Select(column + " AS group_key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	return rows, err
}

func (r *claimRepository) computeStats(ctx context.Context) (*ClaimStats, error) {
	stats := &ClaimStats{
		ByStatus: make(map[string]int64),
		ByType:   make(map[string]int64),
	}
	for _, s := range models.ClaimStatuses {
		stats.ByStatus[string(s)] = 0
	}

	byStatus, err := r.countBy(ctx, "status")
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range byStatus {
		stats.ByStatus[row.GroupKey] = row.Count
		stats.Total += row.Count
	}

	byType, err := r.countBy(ctx, "claim_type")
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range byType {
		stats.ByType[row.GroupKey] = row.Count
	}

	byState, err := r.countBy(ctx, "state")
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range byState {
		stats.ByState = append(stats.ByState, StateCount{State: row.GroupKey, Count: row.Count})
	}
	sort.Slice(stats.ByState, func(i, j int) bool {
		if stats.ByState[i].Count != stats.ByState[j].Count {
			return stats.ByState[i].Count > stats.ByState[j].Count
		}
		return stats.ByState[i].State < stats.ByState[j].State
	})

	var reviewed []struct {
		SubmittedAt time.Time
		ReviewedAt  time.Time
	}
	if err := readDB(r.db).WithContext(ctx).Model(&models.Claim{}).
		Select("submitted_at, reviewed_at").
		Where("reviewed_at IS NOT NULL").
		Scan(&reviewed).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(reviewed) > 0 {
		var days float64
		for _, row := range reviewed {
			days += row.ReviewedAt.Sub(row.SubmittedAt).Hours() / 24
		}
		stats.AvgProcessingDays = days / float64(len(reviewed))
	}

	now := r.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(trendMonths - 1), 0)
	var submitted []time.Time
	if err := readDB(r.db).WithContext(ctx).Model(&models.Claim{}).
		Where("submitted_at >= ?", start).
		Pluck("submitted_at", &submitted).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	stats.Monthly = monthlyTrend(start, submitted)

	return stats, nil
}

func monthlyTrend(start time.Time, submitted []time.Time) []MonthlyCount {
	buckets := make([]MonthlyCount, trendMonths)
	index := make(map[string]int, trendMonths)
	for i := range buckets {
		month := start.AddDate(0, i, 0).Format("2006-01")
		buckets[i] = MonthlyCount{Month: month}
		index[month] = i
	}
	for _, ts := range submitted {
		if i, ok := index[ts.UTC().Format("2006-01")]; ok {
			buckets[i].Count++
		}
	}
	return buckets
}

func (r *claimRepository) Search(ctx context.Context, q string, ownerID *uint, limit int) ([]models.Claim, error) {
	query := r.applyFilter(readDB(r.db).WithContext(ctx).Model(&models.Claim{}), ClaimFilter{
		OwnerID: ownerID,
		Query:   q,
	})
	var claims []models.Claim
	if err := query.Order("claims.submitted_at DESC").Limit(clampLimit(limit)).Find(&claims).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return claims, nil
}
