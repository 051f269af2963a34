package repository

import (
	"context"

	"fraatlas/internal/models"

	"gorm.io/gorm"
)

// AdminActionRepository stores the administrative audit trail.
type AdminActionRepository interface {
	Create(ctx context.Context, action *models.AdminAction) error
	List(ctx context.Context, limit, offset int) ([]models.AdminAction, int64, error)
}

type adminActionRepository struct {
	db *gorm.DB
}

// NewAdminActionRepository returns a new AdminActionRepository implementation.
func NewAdminActionRepository(db *gorm.DB) AdminActionRepository {
	return &adminActionRepository{db: db}
}

func (r *adminActionRepository) Create(ctx context.Context, action *models.AdminAction) error {
	if err := r.db.WithContext(ctx).Omit("Admin").Create(action).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// List returns audit rows newest first with the acting admin's profile.
func (r *adminActionRepository) List(ctx context.Context, limit, offset int) ([]models.AdminAction, int64, error) {
	var total int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.AdminAction{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var actions []models.AdminAction
	if err := readDB(r.db).WithContext(ctx).
		Preload("Admin").
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Offset(offset).
		Find(&actions).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return actions, total, nil
}
