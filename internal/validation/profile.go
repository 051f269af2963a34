package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxFullNameLength = 100
	maxAddressLength  = 500
)

// Digits with an optional leading +, spaces and dashes allowed between groups.
var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,18}[0-9]$`)

// ValidateFullName requires a non-blank name of at most 100 characters.
func ValidateFullName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("full name is required")
	}
	if utf8.RuneCountInString(name) > maxFullNameLength {
		return fmt.Errorf("full name must not exceed %d characters", maxFullNameLength)
	}
	return nil
}

// ValidatePhone accepts an empty value (phone is optional).
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil
	}
	if !phonePattern.MatchString(phone) {
		return fmt.Errorf("invalid phone number")
	}
	return nil
}

// ValidateAddress accepts an empty value.
func ValidateAddress(address string) error {
	if utf8.RuneCountInString(strings.TrimSpace(address)) > maxAddressLength {
		return fmt.Errorf("address must not exceed %d characters", maxAddressLength)
	}
	return nil
}
