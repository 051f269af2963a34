package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"fraatlas/internal/models"
	"fraatlas/internal/repository"
	"fraatlas/internal/testutil"
)

const testPassword = "Forest-Rights-2006"

type fixture struct {
	db            *gorm.DB
	users         repository.UserRepository
	profiles      repository.ProfileRepository
	claims        repository.ClaimRepository
	actions       repository.AdminActionRepository
	digitizations repository.DigitizationRepository
	notifications repository.NotificationRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenSQLite(t)
	return &fixture{
		db:            db,
		users:         repository.NewUserRepository(db),
		profiles:      repository.NewProfileRepository(db),
		claims:        repository.NewClaimRepository(db),
		actions:       repository.NewAdminActionRepository(db),
		digitizations: repository.NewDigitizationRepository(db),
		notifications: repository.NewNotificationRepository(db),
	}
}

func (f *fixture) account(t *testing.T, email string, role models.Role) Actor {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{Email: email, Password: string(hash)}
	profile := &models.Profile{Email: email, FullName: strings.Split(email, "@")[0], Role: role}
	require.NoError(t, f.users.CreateWithProfile(context.Background(), user, profile))
	return Actor{UserID: user.ID, Role: role}
}

func (f *fixture) accountService() *AccountService {
	svc := NewAccountService(f.users, f.profiles, f.actions)
	svc.hashCost = bcrypt.MinCost
	return svc
}

func requireAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}

func ptr[T any](v T) *T { return &v }
