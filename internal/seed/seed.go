package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fraatlas/internal/middleware"
	"fraatlas/internal/models"
	"fraatlas/internal/repository"

	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	Citizens         int
	Officials        int
	ClaimsPerCitizen int
	// MaxDays bounds how far back submission dates are spread.
	MaxDays    int
	BatchSize  int
	SkipBcrypt bool
	Seed       int64
}

// statusWeights is the share of seeded claims in each status, in percent.
var statusWeights = []struct {
	status models.ClaimStatus
	weight int
}{
	{models.ClaimStatusPending, 40},
	{models.ClaimStatusUnderReview, 20},
	{models.ClaimStatusApproved, 30},
	{models.ClaimStatusRejected, 10},
}

// Summary reports what a run created.
type Summary struct {
	Citizens  int
	Officials int
	Claims    int
}

// Seeder populates the database with demo accounts and claims.
type Seeder struct {
	db      *gorm.DB
	users   repository.UserRepository
	factory *Factory
	opts    Options
	logger  *slog.Logger
}

// NewSeeder builds a Seeder. Zero options fall back to a small demo data set.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	if opts.Citizens <= 0 {
		opts.Citizens = 50
	}
	if opts.Officials <= 0 {
		opts.Officials = 3
	}
	if opts.ClaimsPerCitizen <= 0 {
		opts.ClaimsPerCitizen = 2
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	factory, err := NewFactory(opts)
	if err != nil {
		return nil, err
	}
	return &Seeder{
		db:      db,
		users:   repository.NewUserRepository(db),
		factory: factory,
		opts:    opts,
		logger:  middleware.Component("seed"),
	}, nil
}

// ClearAll deletes every row the application owns, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{
		&models.Notification{},
		&models.AdminAction{},
		&models.Claim{},
		&models.DigitizationResult{},
		&models.Profile{},
		&models.User{},
	} {
		if err := tx.Unscoped().Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	s.logger.InfoContext(ctx, "database cleared")
	return nil
}

// Run creates officials, citizens and their claims.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	officials, err := s.createAccounts(ctx, models.RoleOfficial, s.opts.Officials)
	if err != nil {
		return nil, err
	}
	citizens, err := s.createAccounts(ctx, models.RoleCitizen, s.opts.Citizens)
	if err != nil {
		return nil, err
	}

	total := len(citizens) * s.opts.ClaimsPerCitizen
	statuses := statusSequence(total)
	claims := make([]*models.Claim, 0, total)
	for i, status := range statuses {
		owner := citizens[i%len(citizens)]
		reviewer := officials[i%len(officials)]
		claims = append(claims, s.factory.BuildClaim(owner, reviewer, status))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(claims, s.opts.BatchSize).Error; err != nil {
		return nil, fmt.Errorf("create claims: %w", err)
	}

	summary := &Summary{Citizens: len(citizens), Officials: len(officials), Claims: len(claims)}
	s.logger.InfoContext(ctx, "seed complete",
		slog.Int("citizens", summary.Citizens),
		slog.Int("officials", summary.Officials),
		slog.Int("claims", summary.Claims))
	return summary, nil
}

func (s *Seeder) createAccounts(ctx context.Context, role models.Role, n int) ([]uint, error) {
	ids := make([]uint, 0, n)
	for i := range n {
		user, profile := s.factory.BuildAccount(role, i)
		if err := s.users.CreateWithProfile(ctx, user, profile); err != nil {
			return nil, fmt.Errorf("create %s %s: %w", role, user.Email, err)
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}

// statusSequence spreads n claims across statusWeights. Rounding leftovers
// are pending.
func statusSequence(n int) []models.ClaimStatus {
	out := make([]models.ClaimStatus, 0, n)
	for _, w := range statusWeights[1:] {
		for range n * w.weight / 100 {
			out = append(out, w.status)
		}
	}
	for len(out) < n {
		out = append(out, models.ClaimStatusPending)
	}
	return out
}
