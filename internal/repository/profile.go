package repository

import (
	"context"
	"errors"

	"fraatlas/internal/cache"
	"fraatlas/internal/models"

	"gorm.io/gorm"
)

// ProfileFilter narrows profile listings.
type ProfileFilter struct {
	Role   models.Role
	Limit  int
	Offset int
}

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uint) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	UpdateRole(ctx context.Context, userID uint, role models.Role) error
	List(ctx context.Context, filter ProfileFilter) ([]models.Profile, int64, error)
	Search(ctx context.Context, q string, limit int) ([]models.Profile, error)
	CountByRole(ctx context.Context) (map[models.Role]int64, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a new ProfileRepository implementation.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := cache.Aside(ctx, cache.ProfileKey(userID), &profile, cache.ProfileTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Profile", userID)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateProfile(ctx, profile.UserID)
	return nil
}

func (r *profileRepository) UpdateRole(ctx context.Context, userID uint, role models.Role) error {
	res := r.db.WithContext(ctx).Model(&models.Profile{}).Where("user_id = ?", userID).Update("role", role)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Profile", userID)
	}
	cache.InvalidateProfile(ctx, userID)
	return nil
}

func (r *profileRepository) List(ctx context.Context, filter ProfileFilter) ([]models.Profile, int64, error) {
	base := func() *gorm.DB {
		q := readDB(r.db).WithContext(ctx).Model(&models.Profile{})
		if filter.Role != "" {
			q = q.Where("role = ?", filter.Role)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var profiles []models.Profile
	if err := base().Order("created_at DESC").Limit(clampLimit(filter.Limit)).Offset(filter.Offset).
		Find(&profiles).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return profiles, total, nil
}

func (r *profileRepository) Search(ctx context.Context, q string, limit int) ([]models.Profile, error) {
	pattern := likePattern(q)
	var profiles []models.Profile
	if err := readDB(r.db).WithContext(ctx).
		Where("LOWER(full_name) LIKE ? ESCAPE '\\' OR LOWER(email) LIKE ? ESCAPE '\\'", pattern, pattern).
		Order("full_name ASC").
		Limit(clampLimit(limit)).
		Find(&profiles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}

func (r *profileRepository) CountByRole(ctx context.Context) (map[models.Role]int64, error) {
	var rows []struct {
		Role  models.Role
		Count int64
	}
	if err := readDB(r.db).WithContext(ctx).Model(&models.Profile{}).
		Select("role, COUNT(*) AS count").Group("role").Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	counts := make(map[models.Role]int64, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}
