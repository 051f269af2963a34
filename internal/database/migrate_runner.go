package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"fraatlas/internal/middleware"

	"gorm.io/gorm"
)

const ledgerTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	checksum CHAR(64) NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// AppliedMigration is one row of the schema_migrations ledger.
type AppliedMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	Checksum  string    `gorm:"size:64;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName pins the ledger table name.
func (AppliedMigration) TableName() string {
	return "schema_migrations"
}

// MigrationStore reads and writes the migration ledger.
type MigrationStore interface {
	Applied(ctx context.Context) ([]AppliedMigration, error)
	Apply(ctx context.Context, m Migration) error
	Revert(ctx context.Context, m Migration) error
}

type migrationStore struct {
	db *gorm.DB
}

// NewMigrationStore returns a ledger-backed MigrationStore.
func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &migrationStore{db: db}
}

func (s *migrationStore) Applied(ctx context.Context) ([]AppliedMigration, error) {
	var rows []AppliedMigration
	err := s.db.WithContext(ctx).Order("version ASC").Find(&rows).Error
	if err != nil {
		if isMissingTableError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return rows, nil
}

// Apply runs the up script and records it in one transaction, so a failed
// script leaves no ledger row behind.
func (s *migrationStore) Apply(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("apply %s: %w", m.String(), err)
		}
		row := AppliedMigration{Version: m.Version, Name: m.Name, Checksum: m.Checksum()}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("record %s: %w", m.String(), err)
		}
		return nil
	})
}

func (s *migrationStore) Revert(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("revert %s: %w", m.String(), err)
		}
		if err := tx.Where("version = ?", m.Version).Delete(&AppliedMigration{}).Error; err != nil {
			return fmt.Errorf("unrecord %s: %w", m.String(), err)
		}
		return nil
	})
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

// Checksum is the hex SHA-256 of the up script.
func (m *Migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.UpScript))
	return hex.EncodeToString(sum[:])
}

// RunMigrations applies every registered migration missing from the ledger.
// It refuses to run when the ledger knows versions this build does not, or
// when an applied script was edited after the fact.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec(ledgerTableSQL).Error; err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	store := NewMigrationStore(db)
	applied, err := store.Applied(ctx)
	if err != nil {
		return err
	}
	if err := checkLedger(applied, migrations); err != nil {
		return err
	}

	done := make(map[int]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
	}

	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		start := time.Now()
		if err := store.Apply(ctx, m); err != nil {
			return err
		}
		middleware.Logger.InfoContext(ctx, "migration applied",
			slog.String("migration", m.String()),
			slog.Duration("took", time.Since(start)),
		)
	}
	return nil
}

// checkLedger compares the ledger against the registered migrations.
func checkLedger(applied []AppliedMigration, registered []Migration) error {
	byVersion := make(map[int]Migration, len(registered))
	for _, m := range registered {
		byVersion[m.Version] = m
	}

	var unknown, drifted []string
	for _, a := range applied {
		m, ok := byVersion[a.Version]
		if !ok {
			unknown = append(unknown, fmt.Sprintf("%06d", a.Version))
			continue
		}
		if a.Checksum != "" && a.Checksum != m.Checksum() {
			drifted = append(drifted, m.String())
		}
	}

	switch {
	case len(unknown) > 0:
		sort.Strings(unknown)
		return fmt.Errorf("schema_migrations contains versions unknown to this build: %s", strings.Join(unknown, ", "))
	case len(drifted) > 0:
		return fmt.Errorf("applied migrations were modified after apply: %s", strings.Join(drifted, ", "))
	}
	return nil
}

// RollbackMigration reverts one applied migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	store := NewMigrationStore(db)
	applied, err := store.Applied(ctx)
	if err != nil {
		return err
	}
	for _, a := range applied {
		if a.Version != version {
			continue
		}
		if err := store.Revert(ctx, *m); err != nil {
			return err
		}
		middleware.Logger.InfoContext(ctx, "migration rolled back", slog.String("migration", m.String()))
		return nil
	}
	return fmt.Errorf("migration %s has not been applied", m.String())
}
