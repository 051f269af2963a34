package repository

import (
	"context"
	"testing"

	"fraatlas/internal/cache"
	"fraatlas/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRepository_GetByUserID_CachedAndInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	db := setupTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()
	user := createUser(t, db, "cached@example.com", models.RoleCitizen)

	p, err := repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "cached@example.com", p.Email)
	assert.True(t, mr.Exists(cache.ProfileKey(user.ID)))

	require.NoError(t, repo.UpdateRole(ctx, user.ID, models.RoleOfficial))
	assert.False(t, mr.Exists(cache.ProfileKey(user.ID)))

	p, err = repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOfficial, p.Role)
}

func TestProfileRepository_ListSearchCount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	createUser(t, db, "asha@example.com", models.RoleCitizen)
	createUser(t, db, "birsa@example.com", models.RoleCitizen)
	createUser(t, db, "officer@example.com", models.RoleOfficial)

	officials, total, err := repo.List(ctx, ProfileFilter{Role: models.RoleOfficial})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, officials, 1)

	found, err := repo.Search(ctx, "BIRSA", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "birsa@example.com", found[0].Email)

	counts, err := repo.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.RoleCitizen])
	assert.Equal(t, int64(1), counts[models.RoleOfficial])

	err = repo.UpdateRole(ctx, 999, models.RoleOfficial)
	assert.Equal(t, 404, models.StatusFor(err))
}

func TestLikePatternEscapes(t *testing.T) {
	assert.Equal(t, `%50\%\_off%`, likePattern(" 50%_OFF "))
}
