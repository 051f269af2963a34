package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraatlas/internal/models"
	"fraatlas/internal/repository"
)

type failingActions struct {
	repository.AdminActionRepository
}

func (failingActions) Create(context.Context, *models.AdminAction) error {
	return errors.New("audit table unavailable")
}

func TestAccountService_Signup(t *testing.T) {
	f := newFixture(t)
	svc := f.accountService()
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{
		Email:    "  Asha@Example.org ",
		Password: testPassword,
		FullName: "Asha Oraon",
		Phone:    "+91 98765 43210",
	})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.org", user.Email)
	assert.NotEqual(t, testPassword, user.Password)
	require.NotNil(t, user.Profile)
	assert.Equal(t, models.RoleCitizen, user.Profile.Role)

	_, err = svc.Signup(ctx, SignupInput{Email: "asha@example.org", Password: testPassword, FullName: "Again"})
	requireAppError(t, err, models.CodeConflict)

	_, err = svc.Signup(ctx, SignupInput{Email: "weak@example.org", Password: "short", FullName: "Weak"})
	requireAppError(t, err, models.CodeValidation)

	_, err = svc.Signup(ctx, SignupInput{Email: "not-an-email", Password: testPassword, FullName: "Bad"})
	requireAppError(t, err, models.CodeValidation)
}

func TestAccountService_Authenticate(t *testing.T) {
	f := newFixture(t)
	svc := f.accountService()
	ctx := context.Background()
	f.account(t, "officer@fra.gov.in", models.RoleOfficial)

	user, err := svc.Authenticate(ctx, "OFFICER@fra.gov.in", testPassword)
	require.NoError(t, err)
	require.NotNil(t, user.Profile)
	assert.Equal(t, models.RoleOfficial, user.Profile.Role)
	assert.NotNil(t, user.LastSignInAt)

	_, err = svc.Authenticate(ctx, "officer@fra.gov.in", "Wrong-Password-1")
	requireAppError(t, err, models.CodeUnauthorized)

	_, err = svc.Authenticate(ctx, "nobody@fra.gov.in", testPassword)
	requireAppError(t, err, models.CodeUnauthorized)
}

func TestAccountService_CreateOfficial(t *testing.T) {
	ctx := context.Background()
	input := CreateOfficialInput{Email: "new.official@fra.gov.in", Password: testPassword, FullName: "Ravi Kumar"}

	t.Run("citizen is forbidden and nothing is created", func(t *testing.T) {
		f := newFixture(t)
		citizen := f.account(t, "citizen@example.org", models.RoleCitizen)

		_, err := f.accountService().CreateOfficial(ctx, citizen.UserID, input)
		requireAppError(t, err, models.CodeForbidden)

		existing, err := f.users.GetByEmail(ctx, input.Email)
		require.NoError(t, err)
		assert.Nil(t, existing)
	})

	t.Run("official is forbidden", func(t *testing.T) {
		f := newFixture(t)
		official := f.account(t, "official@fra.gov.in", models.RoleOfficial)
		_, err := f.accountService().CreateOfficial(ctx, official.UserID, input)
		requireAppError(t, err, models.CodeForbidden)
	})

	t.Run("anonymous caller is unauthorized", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.accountService().CreateOfficial(ctx, 0, input)
		requireAppError(t, err, models.CodeUnauthorized)
	})

	t.Run("super admin creates official and audit row", func(t *testing.T) {
		f := newFixture(t)
		admin := f.account(t, "root@fra.gov.in", models.RoleSuperAdmin)

		profile, err := f.accountService().CreateOfficial(ctx, admin.UserID, input)
		require.NoError(t, err)
		assert.Equal(t, models.RoleOfficial, profile.Role)
		assert.Equal(t, "Ravi Kumar", profile.FullName)

		actions, total, err := f.actions.List(ctx, 10, 0)
		require.NoError(t, err)
		require.EqualValues(t, 1, total)
		assert.Equal(t, models.ActionCreateOfficial, actions[0].ActionType)
		assert.Equal(t, admin.UserID, actions[0].AdminUserID)
		require.NotNil(t, actions[0].TargetUserID)
		assert.Equal(t, profile.UserID, *actions[0].TargetUserID)
		assert.Equal(t, input.Email, actions[0].Details["email"])
		assert.Equal(t, "Ravi Kumar", actions[0].Details["full_name"])

		_, err = f.accountService().CreateOfficial(ctx, admin.UserID, input)
		requireAppError(t, err, models.CodeConflict)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)
		admin := f.account(t, "root@fra.gov.in", models.RoleSuperAdmin)
		_, err := f.accountService().CreateOfficial(ctx, admin.UserID, CreateOfficialInput{Email: input.Email})
		appErr := requireAppError(t, err, models.CodeValidation)
		assert.Equal(t, "Email, password, and full name are required", appErr.Message)
	})

	t.Run("audit failure does not fail the call", func(t *testing.T) {
		f := newFixture(t)
		admin := f.account(t, "root@fra.gov.in", models.RoleSuperAdmin)
		svc := f.accountService()
		svc.actions = failingActions{}

		profile, err := svc.CreateOfficial(ctx, admin.UserID, input)
		require.NoError(t, err)
		assert.Equal(t, models.RoleOfficial, profile.Role)
	})
}

func TestAccountService_ChangeRole(t *testing.T) {
	f := newFixture(t)
	svc := f.accountService()
	ctx := context.Background()
	admin := f.account(t, "root@fra.gov.in", models.RoleSuperAdmin)
	citizen := f.account(t, "citizen@example.org", models.RoleCitizen)

	profile, err := svc.ChangeRole(ctx, admin.UserID, citizen.UserID, models.RoleOfficial)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOfficial, profile.Role)

	reloaded, err := svc.Me(ctx, citizen.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOfficial, reloaded.Role)

	actions, _, err := f.actions.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionChangeRole, actions[0].ActionType)
	assert.Equal(t, "citizen", actions[0].Details["from"])
	assert.Equal(t, "official", actions[0].Details["to"])

	_, err = svc.ChangeRole(ctx, admin.UserID, admin.UserID, models.RoleCitizen)
	requireAppError(t, err, models.CodeValidation)

	_, err = svc.ChangeRole(ctx, admin.UserID, citizen.UserID, "ranger")
	requireAppError(t, err, models.CodeValidation)

	_, err = svc.ChangeRole(ctx, citizen.UserID, admin.UserID, models.RoleCitizen)
	requireAppError(t, err, models.CodeForbidden)

	_, err = svc.ChangeRole(ctx, admin.UserID, 9999, models.RoleOfficial)
	requireAppError(t, err, models.CodeNotFound)
}

func TestAccountService_AdminListings(t *testing.T) {
	f := newFixture(t)
	svc := f.accountService()
	ctx := context.Background()
	admin := f.account(t, "root@fra.gov.in", models.RoleSuperAdmin)
	citizen := f.account(t, "citizen@example.org", models.RoleCitizen)
	f.account(t, "official@fra.gov.in", models.RoleOfficial)

	profiles, total, err := svc.ListProfiles(ctx, admin.UserID, repository.ProfileFilter{Role: models.RoleOfficial})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, profiles, 1)
	assert.Equal(t, "official@fra.gov.in", profiles[0].Email)

	_, _, err = svc.ListProfiles(ctx, citizen.UserID, repository.ProfileFilter{})
	requireAppError(t, err, models.CodeForbidden)

	_, _, err = svc.ListActions(ctx, citizen.UserID, 10, 0)
	requireAppError(t, err, models.CodeForbidden)
}
