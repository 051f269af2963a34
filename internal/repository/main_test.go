package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"fraatlas/internal/database"
	"fraatlas/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB returns a gorm handle over sqlmock with the postgres dialect.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// setupTestDB returns a fresh in-memory sqlite database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{Email: email, Password: "hash"}
	profile := &models.Profile{Email: email, FullName: strings.Split(email, "@")[0], Role: role}
	require.NoError(t, NewUserRepository(db).CreateWithProfile(t.Context(), user, profile))
	return user
}

func createClaim(t *testing.T, db *gorm.DB, owner uint, status models.ClaimStatus, state string, submitted time.Time) *models.Claim {
	t.Helper()
	claim := &models.Claim{
		UserID:      owner,
		ClaimType:   models.ClaimTypeIndividual,
		Village:     "Kanha",
		District:    "Mandla",
		State:       state,
		Status:      status,
		SubmittedAt: submitted.UTC(),
	}
	require.NoError(t, NewClaimRepository(db).Create(t.Context(), claim))
	return claim
}
