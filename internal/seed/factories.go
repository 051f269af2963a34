// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"fraatlas/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// District is a seeded location with a representative centre point.
type District struct {
	State    string
	District string
	Villages []string
	Lat, Lng float64
}

// Districts are the forest districts seeded claims are spread across.
var Districts = []District{
	{"Madhya Pradesh", "Mandla", []string{"Barkheda", "Pindrai", "Bichhiya", "Mocha"}, 22.60, 80.37},
	{"Madhya Pradesh", "Dindori", []string{"Karanjia", "Bajag", "Samnapur"}, 22.94, 81.08},
	{"Odisha", "Mayurbhanj", []string{"Jashipur", "Bisoi", "Karanjia"}, 21.93, 86.73},
	{"Odisha", "Koraput", []string{"Lamtaput", "Nandapur", "Boipariguda"}, 18.81, 82.71},
	{"Chhattisgarh", "Bastar", []string{"Darbha", "Lohandiguda", "Bakawand"}, 19.10, 81.95},
	{"Jharkhand", "Gumla", []string{"Bishunpur", "Chainpur", "Ghaghra"}, 23.04, 84.54},
	{"Maharashtra", "Gadchiroli", []string{"Mendha Lekha", "Dhanora", "Kurkheda"}, 20.18, 80.00},
	{"Telangana", "Adilabad", []string{"Utnoor", "Indervelly", "Jainoor"}, 19.67, 78.53},
}

var remarkTemplates = map[models.ClaimStatus][]string{
	models.ClaimStatusUnderReview: {
		"Field verification scheduled with the gram sabha.",
		"Awaiting forest department survey report.",
	},
	models.ClaimStatusApproved: {
		"Verified by gram sabha and sub-divisional committee.",
		"Title issued after joint field verification.",
	},
	models.ClaimStatusRejected: {
		"Evidence of occupation before 13 December 2005 not provided.",
		"Land falls outside the claimed forest compartment.",
	},
}

// Factory builds domain entities for seeding.
type Factory struct {
	opts Options
	rng  *rand.Rand
	hash string
}

// NewFactory creates a Factory. The password hash is computed once and
// shared by every account it builds.
func NewFactory(opts Options) (*Factory, error) {
	f := &Factory{opts: opts, rng: rand.New(rand.NewSource(opts.Seed))}
	gofakeit.Seed(opts.Seed)

	if opts.SkipBcrypt {
		f.hash = DefaultPassword
		return f, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	f.hash = string(hash)
	return f, nil
}

// BuildAccount returns an unsaved user and profile with the given role.
// index keeps generated emails unique within one run.
func (f *Factory) BuildAccount(role models.Role, index int) (*models.User, *models.Profile) {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	email := fmt.Sprintf("%s.%s.%d@%s.fra-atlas.local",
		strings.ToLower(first), strings.ToLower(last), index, strings.ReplaceAll(string(role), "_", "-"))
	phone := "+91 " + gofakeit.Phone()

	user := &models.User{Email: email, Password: f.hash}
	profile := &models.Profile{
		Email:    email,
		FullName: first + " " + last,
		Phone:    &phone,
		Role:     role,
	}
	if role == models.RoleCitizen {
		d := f.district()
		address := fmt.Sprintf("%s, %s, %s", f.village(d), d.District, d.State)
		profile.Address = &address
	}
	return user, profile
}

// BuildClaim returns an unsaved claim owned by ownerID with the given status.
// Reviewed claims are stamped with reviewerID.
func (f *Factory) BuildClaim(ownerID, reviewerID uint, status models.ClaimStatus) *models.Claim {
	d := f.district()
	claimType := models.ClaimTypeIndividual
	area := roundTo(gofakeit.Float64Range(0.2, 4), 2)
	if f.rng.Intn(4) == 0 {
		claimType = models.ClaimTypeCommunity
		area = roundTo(gofakeit.Float64Range(10, 250), 1)
	}

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 365
	}
	now := time.Now().UTC()
	submitted := now.Add(-time.Duration(f.rng.Intn(maxDays*24)) * time.Hour)

	claim := &models.Claim{
		UserID:      ownerID,
		ClaimType:   claimType,
		Village:     f.village(d),
		District:    d.District,
		State:       d.State,
		LandArea:    &area,
		Description: f.description(claimType),
		Coordinates: &models.Coordinates{
			Lat: roundTo(d.Lat+gofakeit.Float64Range(-0.25, 0.25), 5),
			Lng: roundTo(d.Lng+gofakeit.Float64Range(-0.25, 0.25), 5),
		},
		Documents:   []models.Document{},
		Status:      status,
		SubmittedAt: submitted,
	}

	if status != models.ClaimStatusPending {
		elapsed := now.Sub(submitted)
		reviewed := submitted.Add(time.Duration(f.rng.Int63n(int64(elapsed) + 1)))
		claim.ReviewedAt = &reviewed
		claim.ReviewedBy = &reviewerID
		if options := remarkTemplates[status]; len(options) > 0 {
			remark := options[f.rng.Intn(len(options))]
			claim.Remarks = &remark
		}
	}
	return claim
}

func (f *Factory) district() District {
	return Districts[f.rng.Intn(len(Districts))]
}

func (f *Factory) village(d District) string {
	return d.Villages[f.rng.Intn(len(d.Villages))]
}

func (f *Factory) description(t models.ClaimType) string {
	if t == models.ClaimTypeCommunity {
		return fmt.Sprintf("Community forest resource claim for grazing and minor forest produce. %s",
			gofakeit.Sentence(8))
	}
	return fmt.Sprintf("Cultivation of paddy and kodo millet on this plot since %d. %s",
		gofakeit.Number(1975, 2004), gofakeit.Sentence(6))
}

func roundTo(v float64, places int) float64 {
	p := 1.0
	for range places {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}
