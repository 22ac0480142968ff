package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	// ErrInvalidInput indicates the input failed validation
	ErrInvalidInput = errors.New("invalid input")

	// Cluster IDs are alphanumeric with hyphens/underscores, 3-100 chars
	clusterNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{2,99}$`)

	// Usernames may be plain handles or email addresses
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@+-]{3,50}$`)
)

// MaxCapacity is the largest group size accepted from configuration.
const MaxCapacity = 1000

// SanitizeString removes potentially dangerous characters and trims whitespace
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	// drop control characters except newline and tab
	var builder strings.Builder
	for _, r := range input {
		if !unicode.IsControl(r) || r == '\n' || r == '\t' {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// ValidateClusterName checks if a cluster ID is valid
func ValidateClusterName(name string) error {
	name = SanitizeString(name)

	if name == "" {
		return errors.New("cluster name cannot be empty")
	}

	if len(name) < 3 {
		return errors.New("cluster name must be at least 3 characters")
	}

	if len(name) > 100 {
		return errors.New("cluster name must not exceed 100 characters")
	}

	if !clusterNameRegex.MatchString(name) {
		return errors.New("cluster name must start with alphanumeric and contain only letters, numbers, hyphens, and underscores")
	}

	reserved := []string{"admin", "root", "system", "health"}
	lowerName := strings.ToLower(name)
	for _, r := range reserved {
		if lowerName == r {
			return errors.New("cluster name is reserved")
		}
	}

	return nil
}

// ValidateUsername checks if a username is valid
func ValidateUsername(username string) error {
	username = SanitizeString(username)

	if username == "" {
		return errors.New("username cannot be empty")
	}

	if len(username) < 3 {
		return errors.New("username must be at least 3 characters")
	}

	if len(username) > 50 {
		return errors.New("username must not exceed 50 characters")
	}

	if !usernameRegex.MatchString(username) {
		return errors.New("username contains invalid characters")
	}

	return nil
}

// ValidatePassword checks if a password meets security requirements
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	if len(password) > 128 {
		return errors.New("password must not exceed 128 characters")
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasNumber  bool
		hasSpecial bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return errors.New("password must contain at least one number")
	}
	if !hasSpecial {
		return errors.New("password must contain at least one special character")
	}

	return nil
}

// ValidateCapacityBounds checks a min/max group size pair. Zero is a valid
// minimum.
func ValidateCapacityBounds(min, max int) error {
	if min < 0 {
		return errors.New("minimum capacity must not be negative")
	}

	if max < 1 {
		return errors.New("maximum capacity must be at least 1")
	}

	if max < min {
		return errors.New("maximum capacity must be greater than or equal to minimum capacity")
	}

	if max > MaxCapacity {
		return errors.New("maximum capacity cannot exceed 1000")
	}

	return nil
}

// ValidateLimit clamps a list page size into [1, max], using def when unset.
func ValidateLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
