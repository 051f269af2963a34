package repository

import (
	"context"
	"errors"

	"fraatlas/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DigitizationRepository stores OCR extraction results.
type DigitizationRepository interface {
	Create(ctx context.Context, result *models.DigitizationResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DigitizationResult, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.DigitizationResult, error)
}

type digitizationRepository struct {
	db *gorm.DB
}

// NewDigitizationRepository returns a new DigitizationRepository implementation.
func NewDigitizationRepository(db *gorm.DB) DigitizationRepository {
	return &digitizationRepository{db: db}
}

func (r *digitizationRepository) Create(ctx context.Context, result *models.DigitizationResult) error {
	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *digitizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DigitizationResult, error) {
	var result models.DigitizationResult
	if err := readDB(r.db).WithContext(ctx).Where("id = ?", id).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Digitization result", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &result, nil
}

func (r *digitizationRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.DigitizationResult, error) {
	var results []models.DigitizationResult
	if err := readDB(r.db).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return results, nil
}
