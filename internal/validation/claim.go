package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"fraatlas/internal/models"
)

const (
	maxLocationLength    = 200
	minDescriptionLength = 10
	maxDescriptionLength = 2000
)

// ClaimFields is the user-supplied part of a new claim.
type ClaimFields struct {
	ClaimType   models.ClaimType
	Village     string
	District    string
	State       string
	LandArea    *float64
	Description string
	Coordinates *models.Coordinates
}

// ValidateClaim checks a claim submission and returns the first problem found.
func ValidateClaim(f ClaimFields) error {
	if f.ClaimType == "" {
		return fmt.Errorf("claim type is required")
	}
	if !f.ClaimType.Valid() {
		return fmt.Errorf("claim type must be one of individual, community")
	}
	for _, field := range []struct {
		label, value string
	}{
		{"village", f.Village},
		{"district", f.District},
		{"state", f.State},
	} {
		if err := validateLocation(field.label, field.value); err != nil {
			return err
		}
	}
	if f.LandArea != nil && *f.LandArea < 0 {
		return fmt.Errorf("land area must not be negative")
	}
	if desc := strings.TrimSpace(f.Description); desc != "" {
		n := utf8.RuneCountInString(desc)
		if n < minDescriptionLength {
			return fmt.Errorf("description must be at least %d characters", minDescriptionLength)
		}
		if n > maxDescriptionLength {
			return fmt.Errorf("description must not exceed %d characters", maxDescriptionLength)
		}
	}
	if f.Coordinates != nil {
		if err := ValidateCoordinates(*f.Coordinates); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCoordinates checks WGS84 latitude and longitude ranges.
func ValidateCoordinates(c models.Coordinates) error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}

func validateLocation(label, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%s is required", label)
	}
	if utf8.RuneCountInString(value) > maxLocationLength {
		return fmt.Errorf("%s must not exceed %d characters", label, maxLocationLength)
	}
	return nil
}
