// Package bootstrap prepares runtime state that must exist before the API
// serves traffic.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fraatlas/internal/config"
	"fraatlas/internal/middleware"
	"fraatlas/internal/models"
	"fraatlas/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const defaultRootEmail = "root@fra-atlas.local"

// EnsureDevRootAdmin creates or promotes the development super admin when
// APP_ENV=development and DEV_BOOTSTRAP_ROOT is set. It is a no-op otherwise.
func EnsureDevRootAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = defaultRootEmail
	}
	if cfg.DevRootPassword == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	users := repository.NewUserRepository(db)
	profiles := repository.NewProfileRepository(db)
	logger := middleware.Component("bootstrap")

	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("look up root admin: %w", err)
	}
	if existing != nil {
		if err := profiles.UpdateRole(ctx, existing.ID, models.RoleSuperAdmin); err != nil {
			return fmt.Errorf("promote root admin: %w", err)
		}
		logger.InfoContext(ctx, "development root admin ensured", slog.String("email", email), slog.Uint64("user_id", uint64(existing.ID)))
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}
	user := &models.User{Email: email, Password: string(hashedPassword)}
	profile := &models.Profile{Email: email, FullName: "FRA Atlas Root", Role: models.RoleSuperAdmin}
	if err := users.CreateWithProfile(ctx, user, profile); err != nil {
		return fmt.Errorf("create root admin: %w", err)
	}

	logger.InfoContext(ctx, "development root admin created", slog.String("email", email), slog.Uint64("user_id", uint64(user.ID)))
	return nil
}
