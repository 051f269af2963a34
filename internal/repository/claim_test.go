package repository

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"fraatlas/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "citizen@example.com", models.RoleCitizen)
	area := 2.5
	claim := &models.Claim{
		UserID:      owner.ID,
		ClaimType:   models.ClaimTypeCommunity,
		Village:     "Baiga Chak",
		District:    "Dindori",
		State:       "Madhya Pradesh",
		LandArea:    &area,
		Coordinates: &models.Coordinates{Lat: 22.94, Lng: 81.08},
		Status:      models.ClaimStatusPending,
		SubmittedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, claim))
	assert.NotEqual(t, uuid.Nil, claim.ID)

	got, err := repo.GetByID(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusPending, got.Status)
	assert.Equal(t, owner.ID, got.UserID)
	require.NotNil(t, got.Coordinates)
	assert.InDelta(t, 22.94, got.Coordinates.Lat, 1e-9)
	require.NotNil(t, got.Applicant)
	assert.Equal(t, "citizen@example.com", got.Applicant.Email)
	assert.Empty(t, got.Documents)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.Equal(t, 404, models.StatusFor(err))
}

func TestClaimRepository_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepository(db)
	ctx := context.Background()

	a := createUser(t, db, "a@example.com", models.RoleCitizen)
	b := createUser(t, db, "b@example.com", models.RoleCitizen)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	createClaim(t, db, a.ID, models.ClaimStatusPending, "Odisha", base)
	createClaim(t, db, a.ID, models.ClaimStatusApproved, "Odisha", base.AddDate(0, 0, 1))
	createClaim(t, db, b.ID, models.ClaimStatusApproved, "Jharkhand", base.AddDate(0, 0, 2))

	all, total, err := repo.List(ctx, ClaimFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, "Jharkhand", all[0].State, "newest first")

	own, total, err := repo.List(ctx, ClaimFilter{OwnerID: &a.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, c := range own {
		assert.Equal(t, a.ID, c.UserID)
	}

	approved, _, err := repo.List(ctx, ClaimFilter{Status: models.ClaimStatusApproved})
	require.NoError(t, err)
	assert.Len(t, approved, 2)

	from := base.AddDate(0, 0, 1)
	ranged, _, err := repo.List(ctx, ClaimFilter{From: &from})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	text, _, err := repo.List(ctx, ClaimFilter{Query: "jhark"})
	require.NoError(t, err)
	assert.Len(t, text, 1)

	page, total, err := repo.List(ctx, ClaimFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)
}

func TestClaimRepository_ListForExport(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepository(db)
	ctx := context.Background()

	a := createUser(t, db, "a@example.com", models.RoleCitizen)
	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	createClaim(t, db, a.ID, models.ClaimStatusApproved, "Odisha", base)
	createClaim(t, db, a.ID, models.ClaimStatusRejected, "Odisha", base)

	claims, err := repo.ListForExport(ctx, ExportFilter{Status: models.ClaimStatusApproved})
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, models.ClaimStatusApproved, claims[0].Status)
	require.NotNil(t, claims[0].Applicant)
	assert.Equal(t, "a@example.com", claims[0].Applicant.Email)
}

func TestClaimRepository_UpdateReview(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner@example.com", models.RoleCitizen)
	official := createUser(t, db, "official@example.com", models.RoleOfficial)
	claim := createClaim(t, db, owner.ID, models.ClaimStatusPending, "Odisha", time.Now())

	now := time.Now().UTC()
	remarks := "Verified by gram sabha"
	updated, err := repo.UpdateReview(ctx, claim.ID, ReviewUpdate{
		Status:     models.ClaimStatusApproved,
		ReviewedAt: &now,
		ReviewedBy: &official.ID,
		Remarks:    &remarks,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusApproved, updated.Status)
	require.NotNil(t, updated.ReviewedBy)
	assert.Equal(t, official.ID, *updated.ReviewedBy)
	require.NotNil(t, updated.Remarks)
	assert.Equal(t, remarks, *updated.Remarks)

	reset, err := repo.UpdateReview(ctx, claim.ID, ReviewUpdate{Status: models.ClaimStatusPending})
	require.NoError(t, err)
	assert.Nil(t, reset.ReviewedAt)
	assert.Nil(t, reset.ReviewedBy)
	require.NotNil(t, reset.Remarks, "nil remarks leave the column alone")

	_, err = repo.UpdateReview(ctx, uuid.New(), ReviewUpdate{Status: models.ClaimStatusRejected})
	assert.Equal(t, 404, models.StatusFor(err))
}

func TestClaimRepository_BulkUpdateReview(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner@example.com", models.RoleCitizen)
	c1 := createClaim(t, db, owner.ID, models.ClaimStatusPending, "Odisha", time.Now())
	c2 := createClaim(t, db, owner.ID, models.ClaimStatusPending, "Odisha", time.Now())
	c3 := createClaim(t, db, owner.ID, models.ClaimStatusPending, "Odisha", time.Now())

	n, err := repo.BulkUpdateReview(ctx, []uuid.UUID{c1.ID, c2.ID}, ReviewUpdate{Status: models.ClaimStatusUnderReview})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := repo.GetByID(ctx, c3.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusPending, got.Status)
}

func TestClaimRepository_DocumentsAndDigitization(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepository(db)
	digitizations := NewDigitizationRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner@example.com", models.RoleCitizen)
	result := &models.DigitizationResult{UserID: owner.ID, ImageURL: "http://img", RawText: "text"}
	require.NoError(t, digitizations.Create(ctx, result))

	claim := &models.Claim{
		UserID:               owner.ID,
		ClaimType:            models.ClaimTypeIndividual,
		Village:              "Kanha",
		District:             "Mandla",
		State:                "Madhya Pradesh",
		Status:               models.ClaimStatusPending,
		SubmittedAt:          time.Now().UTC(),
		DigitizationResultID: &result.ID,
	}
	require.NoError(t, repo.Create(ctx, claim))

	docs := []models.Document{{ID: "d1", Name: "patta.pdf", Type: "application/pdf", Size: 1024, Path: "1/x-patta.pdf"}}
	require.NoError(t, repo.UpdateDocuments(ctx, claim.ID, docs))

	got, err := repo.GetByID(ctx, claim.ID)
	require.NoError(t, err)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "patta.pdf", got.Documents[0].Name)
	require.NotNil(t, got.DigitizationResultID)
	assert.Equal(t, result.ID, *got.DigitizationResultID)

	stored, err := digitizations.GetByID(ctx, result.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ClaimID)
	assert.Equal(t, claim.ID, *stored.ClaimID)
}

func TestClaimRepository_CreateRollsBackWhenDigitizationTaken(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepository(db)
	digitizations := NewDigitizationRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner@example.com", models.RoleCitizen)
	result := &models.DigitizationResult{UserID: owner.ID, ImageURL: "http://img", RawText: "text"}
	require.NoError(t, digitizations.Create(ctx, result))

	first := &models.Claim{
		UserID: owner.ID, ClaimType: models.ClaimTypeIndividual, Village: "Kanha", District: "Mandla",
		State: "Madhya Pradesh", Status: models.ClaimStatusPending, SubmittedAt: time.Now().UTC(),
		DigitizationResultID: &result.ID,
	}
	require.NoError(t, repo.Create(ctx, first))

	second := &models.Claim{
		UserID: owner.ID, ClaimType: models.ClaimTypeCommunity, Village: "Kanha", District: "Mandla",
		State: "Madhya Pradesh", Status: models.ClaimStatusPending, SubmittedAt: time.Now().UTC(),
		DigitizationResultID: &result.ID,
	}
	err := repo.Create(ctx, second)
	require.ErrorIs(t, err, ErrDigitizationLinked)
	assert.Equal(t, http.StatusConflict, models.StatusFor(err))

	var count int64
	require.NoError(t, db.Model(&models.Claim{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "the losing claim must not be persisted")

	stored, err := digitizations.GetByID(ctx, result.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ClaimID)
	assert.Equal(t, first.ID, *stored.ClaimID)
}

func TestClaimRepository_Stats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepository(db).(*claimRepository)
	ctx := context.Background()

	fixed := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	owner := createUser(t, db, "owner@example.com", models.RoleCitizen)
	createClaim(t, db, owner.ID, models.ClaimStatusPending, "Odisha", fixed.AddDate(0, -1, 0))
	reviewed := createClaim(t, db, owner.ID, models.ClaimStatusPending, "Odisha", fixed.AddDate(0, 0, -4))
	createClaim(t, db, owner.ID, models.ClaimStatusPending, "Telangana", fixed)

	reviewedAt := fixed
	_, err := repo.UpdateReview(ctx, reviewed.ID, ReviewUpdate{Status: models.ClaimStatusApproved, ReviewedAt: &reviewedAt})
	require.NoError(t, err)

	stats, err := repo.Stats(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.ByStatus["pending"])
	assert.Equal(t, int64(1), stats.ByStatus["approved"])
	assert.Equal(t, int64(0), stats.ByStatus["rejected"])
	assert.Equal(t, int64(3), stats.ByType["individual"])
	require.Len(t, stats.ByState, 2)
	assert.Equal(t, StateCount{State: "Odisha", Count: 2}, stats.ByState[0])
	assert.InDelta(t, 4.0, stats.AvgProcessingDays, 0.01)

	require.Len(t, stats.Monthly, trendMonths)
	assert.Equal(t, "2025-06", stats.Monthly[5].Month)
	assert.Equal(t, int64(2), stats.Monthly[5].Count)
	assert.Equal(t, int64(1), stats.Monthly[4].Count)
}

func TestClaimRepository_ListWithCoordinates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner@example.com", models.RoleCitizen)
	createClaim(t, db, owner.ID, models.ClaimStatusPending, "Odisha", time.Now())
	located := &models.Claim{
		UserID: owner.ID, ClaimType: models.ClaimTypeIndividual,
		Village: "V", District: "D", State: "Odisha",
		Coordinates: &models.Coordinates{Lat: 20.1, Lng: 85.2},
		Status:      models.ClaimStatusPending, SubmittedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, located))

	claims, truncated, err := repo.ListWithCoordinates(ctx, ClaimFilter{})
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.False(t, truncated)
	assert.Equal(t, located.ID, claims[0].ID)
}

func TestClaimRepository_ListWithCoordinatesPages(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner@example.com", models.RoleCitizen)
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := range 3 {
		c := &models.Claim{
			UserID: owner.ID, ClaimType: models.ClaimTypeIndividual,
			Village: fmt.Sprintf("V%d", i), District: "D", State: "Odisha",
			Coordinates: &models.Coordinates{Lat: 20 + float64(i), Lng: 85},
			Status:      models.ClaimStatusPending, SubmittedAt: base.Add(-time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.Create(ctx, c))
		ids = append(ids, c.ID)
	}

	first, truncated, err := repo.ListWithCoordinates(ctx, ClaimFilter{Limit: 2})
	require.NoError(t, err)
	assert.True(t, truncated)
	require.Len(t, first, 2)
	assert.Equal(t, ids[0], first[0].ID)
	assert.Equal(t, ids[1], first[1].ID)

	rest, truncated, err := repo.ListWithCoordinates(ctx, ClaimFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.False(t, truncated)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[2], rest[0].ID)

	all, truncated, err := repo.ListWithCoordinates(ctx, ClaimFilter{Limit: MaxMapFeatures + 50})
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Len(t, all, 3)
}

func TestMonthlyTrend(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	trend := monthlyTrend(start, []time.Time{
		time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	})
	require.Len(t, trend, trendMonths)
	assert.Equal(t, MonthlyCount{Month: "2025-01", Count: 1}, trend[0])
	assert.Equal(t, MonthlyCount{Month: "2025-03", Count: 1}, trend[2])
	assert.Equal(t, "2025-06", trend[5].Month)
}
