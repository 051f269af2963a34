package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fraatlas/internal/middleware"
	"fraatlas/internal/models"
	"fraatlas/internal/repository"
	"fraatlas/internal/validation"
)

// SignupInput is a self-service citizen registration.
type SignupInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// CreateOfficialInput is a super-admin request to provision an official.
type CreateOfficialInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// AccountService manages identities, roles and the admin audit trail.
type AccountService struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	actions  repository.AdminActionRepository
	hashCost int
	now      func() time.Time
	logger   *slog.Logger
}

func NewAccountService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	actions repository.AdminActionRepository,
) *AccountService {
	return &AccountService{
		users:    users,
		profiles: profiles,
		actions:  actions,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		logger:   middleware.Component("account_service"),
	}
}

// Signup creates a citizen account.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	email := validation.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" || strings.TrimSpace(in.FullName) == "" {
		return nil, models.NewValidationError("Email, password, and full name are required")
	}
	profile, err := s.newProfile(email, in.FullName, in.Phone, models.RoleCitizen)
	if err != nil {
		return nil, err
	}
	return s.createAccount(ctx, email, in.Password, profile)
}

// Authenticate checks credentials and returns the user with its profile.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = validation.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	now := s.now().UTC()
	if err := s.users.TouchSignIn(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "record sign-in failed", slog.Uint64("user_id", uint64(user.ID)), slog.Any("error", err))
	} else {
		user.LastSignInAt = &now
	}

	profile, err := s.profiles.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Profile = profile
	return user, nil
}

// CreateOfficial provisions an official account on behalf of a super-admin
// and records the action in the audit log.
func (s *AccountService) CreateOfficial(ctx context.Context, actorID uint, in CreateOfficialInput) (*models.Profile, error) {
	if err := s.requireSuperAdmin(ctx, actorID, "Only super admins can create official accounts"); err != nil {
		return nil, err
	}

	email := validation.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" || strings.TrimSpace(in.FullName) == "" {
		return nil, models.NewValidationError("Email, password, and full name are required")
	}
	profile, err := s.newProfile(email, in.FullName, in.Phone, models.RoleOfficial)
	if err != nil {
		return nil, err
	}

	user, err := s.createAccount(ctx, email, in.Password, profile)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, &models.AdminAction{
		AdminUserID:  actorID,
		ActionType:   models.ActionCreateOfficial,
		TargetUserID: &user.ID,
		Details: map[string]any{
			"email":     email,
			"full_name": profile.FullName,
		},
	})

	return user.Profile, nil
}

// ChangeRole sets the role of target. Super-admins cannot change their own
// role, so the system always keeps at least the caller as an administrator.
func (s *AccountService) ChangeRole(ctx context.Context, actorID, targetID uint, role models.Role) (*models.Profile, error) {
	if err := s.requireSuperAdmin(ctx, actorID, "Only super admins can change roles"); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, models.NewValidationError("Invalid role")
	}
	if actorID == targetID {
		return nil, models.NewValidationError("You cannot change your own role")
	}

	target, err := s.profiles.GetByUserID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	previous := target.Role
	if previous == role {
		return target, nil
	}

	if err := s.profiles.UpdateRole(ctx, targetID, role); err != nil {
		return nil, err
	}
	target.Role = role

	s.audit(ctx, &models.AdminAction{
		AdminUserID:  actorID,
		ActionType:   models.ActionChangeRole,
		TargetUserID: &targetID,
		Details: map[string]any{
			"from": string(previous),
			"to":   string(role),
		},
	})

	return target, nil
}

// Me returns the caller's profile.
func (s *AccountService) Me(ctx context.Context, userID uint) (*models.Profile, error) {
	return s.profiles.GetByUserID(ctx, userID)
}

// ListProfiles returns profiles for the admin console.
func (s *AccountService) ListProfiles(ctx context.Context, actorID uint, filter repository.ProfileFilter) ([]models.Profile, int64, error) {
	if err := s.requireSuperAdmin(ctx, actorID, "Only super admins can list accounts"); err != nil {
		return nil, 0, err
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, 0, models.NewValidationError("Invalid role")
	}
	return s.profiles.List(ctx, filter)
}

// ListActions returns the audit trail, newest first.
func (s *AccountService) ListActions(ctx context.Context, actorID uint, limit, offset int) ([]models.AdminAction, int64, error) {
	if err := s.requireSuperAdmin(ctx, actorID, "Only super admins can view the audit log"); err != nil {
		return nil, 0, err
	}
	return s.actions.List(ctx, limit, offset)
}

func (s *AccountService) requireSuperAdmin(ctx context.Context, actorID uint, message string) error {
	if actorID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	actor, err := s.profiles.GetByUserID(ctx, actorID)
	if err != nil {
		if isNotFound(err) {
			return models.NewForbiddenError(message)
		}
		return err
	}
	if !actor.Role.CanManageAccounts() {
		return models.NewForbiddenError(message)
	}
	return nil
}

func (s *AccountService) newProfile(email, fullName, phone string, role models.Role) (*models.Profile, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	fullName = strings.TrimSpace(fullName)
	if err := validation.ValidateFullName(fullName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePhone(phone); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	profile := &models.Profile{Email: email, FullName: fullName, Role: role}
	if phone = strings.TrimSpace(phone); phone != "" {
		profile.Phone = &phone
	}
	return profile, nil
}

func (s *AccountService) createAccount(ctx context.Context, email, password string, profile *models.Profile) (*models.User, error) {
	if err := validation.ValidatePassword(password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{Email: email, Password: string(hash)}
	if err := s.users.CreateWithProfile(ctx, user, profile); err != nil {
		return nil, err
	}
	user.Profile = profile
	return user, nil
}

// audit writes an admin_actions row. Failures are logged and never fail the
// operation that triggered them.
func (s *AccountService) audit(ctx context.Context, action *models.AdminAction) {
	if err := s.actions.Create(ctx, action); err != nil {
		s.logger.ErrorContext(ctx, "record admin action failed",
			slog.String("action_type", action.ActionType),
			slog.Uint64("admin_user_id", uint64(action.AdminUserID)),
			slog.Any("error", err))
	}
}
