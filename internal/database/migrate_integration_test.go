package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupPostgres starts a throwaway postgres container. Requires Docker and
// TEST_INTEGRATION=1.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:16-alpine",
		postgres.WithDatabase("fra_atlas_test"),
		postgres.WithUsername("fra"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=fra password=test-password dbname=fra_atlas_test sslmode=disable", host, port.Port())
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	return db
}

func TestRunMigrations_Postgres(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, db))
	// Second run is a no-op.
	require.NoError(t, RunMigrations(ctx, db))

	for _, table := range []string{"users", "profiles", "claims", "admin_actions", "digitization_results", "notifications"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	applied, err := NewMigrationStore(db).Applied(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, 1, applied[0].Version)
	assert.Equal(t, GetMigrationByVersion(1).Checksum(), applied[0].Checksum)

	// AutoMigrate on top of the SQL schema must agree with it.
	require.NoError(t, db.AutoMigrate(PersistentModels()...))

	require.NoError(t, RollbackMigration(ctx, db, 1))
	assert.False(t, db.Migrator().HasTable("claims"))
}
