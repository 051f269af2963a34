package database

import "fraatlas/internal/models"

// PersistentModels returns the schema-managed GORM models, parents first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Profile{},
		&models.DigitizationResult{},
		&models.Claim{},
		&models.AdminAction{},
		&models.Notification{},
	}
}
