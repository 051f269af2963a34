package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraatlas/internal/models"
)

func validClaim() ClaimFields {
	area := 2.5
	return ClaimFields{
		ClaimType:   models.ClaimTypeIndividual,
		Village:     "Barkheda",
		District:    "Mandla",
		State:       "Madhya Pradesh",
		LandArea:    &area,
		Description: "Cultivation on ancestral forest land since 1998",
		Coordinates: &models.Coordinates{Lat: 22.6, Lng: 80.37},
	}
}

func TestValidateClaim(t *testing.T) {
	t.Parallel()
	negative := -1.0

	tests := []struct {
		name    string
		mutate  func(*ClaimFields)
		wantErr string
	}{
		{"Valid", func(*ClaimFields) {}, ""},
		{"Community Type", func(f *ClaimFields) { f.ClaimType = models.ClaimTypeCommunity }, ""},
		{"Missing Type", func(f *ClaimFields) { f.ClaimType = "" }, "claim type is required"},
		{"Unknown Type", func(f *ClaimFields) { f.ClaimType = "habitat" }, "claim type must be"},
		{"Blank Village", func(f *ClaimFields) { f.Village = "  " }, "village is required"},
		{"Missing District", func(f *ClaimFields) { f.District = "" }, "district is required"},
		{"State Too Long", func(f *ClaimFields) { f.State = strings.Repeat("x", 201) }, "state must not exceed 200"},
		{"State At Limit", func(f *ClaimFields) { f.State = strings.Repeat("x", 200) }, ""},
		{"Negative Land Area", func(f *ClaimFields) { f.LandArea = &negative }, "land area"},
		{"No Land Area", func(f *ClaimFields) { f.LandArea = nil }, ""},
		{"Short Description", func(f *ClaimFields) { f.Description = "too short" }, "at least 10"},
		{"Long Description", func(f *ClaimFields) { f.Description = strings.Repeat("d", 2001) }, "must not exceed 2000"},
		{"Empty Description", func(f *ClaimFields) { f.Description = "" }, ""},
		{"Latitude Out Of Range", func(f *ClaimFields) { f.Coordinates = &models.Coordinates{Lat: 91, Lng: 80} }, "latitude"},
		{"Longitude Out Of Range", func(f *ClaimFields) { f.Coordinates = &models.Coordinates{Lat: 22, Lng: -181} }, "longitude"},
		{"No Coordinates", func(f *ClaimFields) { f.Coordinates = nil }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validClaim()
			tt.mutate(&f)
			err := ValidateClaim(f)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateProfileFields(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateFullName("Sita Devi"))
	assert.Error(t, ValidateFullName("   "))
	assert.Error(t, ValidateFullName(strings.Repeat("n", 101)))
	assert.NoError(t, ValidateFullName(strings.Repeat("न", 100)))

	for _, phone := range []string{"", "+91 98765 43210", "9876543210", "011-2345-6789"} {
		assert.NoError(t, ValidatePhone(phone), phone)
	}
	for _, phone := range []string{"12345", "call me", "+91-98765-4321x"} {
		assert.Error(t, ValidatePhone(phone), phone)
	}

	assert.NoError(t, ValidateAddress(""))
	assert.NoError(t, ValidateAddress(strings.Repeat("a", 500)))
	assert.Error(t, ValidateAddress(strings.Repeat("a", 501)))
}
