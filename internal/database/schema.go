package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fraatlas/internal/config"
	"fraatlas/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// schemaPlan is what ApplySchema will do for a given config.
type schemaPlan struct {
	mode     string
	env      string
	sql      bool
	auto     bool
	prodLike bool
}

// SchemaStatus describes the schema plan and the migrations still pending.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	Applied            []AppliedMigration
	PendingMigrations  []Migration
}

func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{
		mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)),
		env:  cfg.Env,
	}
	if plan.mode == "" {
		plan.mode = SchemaModeHybrid
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Env)) {
	case "production", "prod", "staging", "stage":
		plan.prodLike = true
	}

	switch plan.mode {
	case SchemaModeSQL:
		plan.sql = true
	case SchemaModeHybrid:
		plan.sql = true
		plan.auto = !plan.prodLike
	case SchemaModeAuto:
		if plan.prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.auto = true
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.mode)
	}
	return plan, nil
}

// ApplySchema brings the database schema up to date. hybrid runs SQL
// migrations everywhere plus AutoMigrate outside production-like
// environments, sql runs migrations only, and auto runs AutoMigrate only.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.sql {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if !plan.auto {
		return nil
	}

	if plan.prodLike {
		middleware.Logger.WarnContext(ctx, "auto-migrate allowed in a prod-like environment", slog.String("env", plan.env))
	}
	middleware.Logger.InfoContext(ctx, "running auto-migrate",
		slog.String("mode", plan.mode),
		slog.Int("models", len(PersistentModels())),
	)
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports the plan and pending migrations without applying anything.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.mode,
		Environment:        plan.env,
		WillRunSQL:         plan.sql,
		WillRunAutoMigrate: plan.auto,
	}
	if !plan.sql {
		return status, nil
	}

	status.Applied, err = NewMigrationStore(db).Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(status.Applied))
	for _, a := range status.Applied {
		done[a.Version] = true
	}
	for _, m := range GetMigrations() {
		if !done[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
