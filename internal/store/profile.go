// Package store manages pricecheck profiles: named local databases, one per
// field territory or backend, each living in its own directory.
package store

import (
	"errors"
	"regexp"
	"strings"
)

// Profile ID validation errors.
var (
	// ErrInvalidProfileID indicates the profile ID format is invalid.
	ErrInvalidProfileID = errors.New("invalid profile ID: must be lowercase alphanumeric with hyphens, 1-3 path segments")

	// ErrReservedProfileID indicates the profile ID is reserved and cannot be created.
	ErrReservedProfileID = errors.New("reserved profile ID: cannot create profiles with reserved IDs")
)

// DefaultProfile is used when no profile is configured.
const DefaultProfile = "default"

// profileIDRegex validates profile IDs: 1-3 segments separated by /, each
// lowercase alphanumeric with inner hyphens, at most 64 characters.
var profileIDRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?(\/[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?){0,2}$`)

var reservedProfileIDs = map[string]bool{
	DefaultProfile: true,
	"_system":      true,
}

// ValidateProfileID validates a profile ID format. Reserved IDs are valid
// targets.
func ValidateProfileID(id string) error {
	if id == "" || len(id) > 200 {
		return ErrInvalidProfileID
	}
	if reservedProfileIDs[id] {
		return nil
	}
	if strings.Contains(id, "--") {
		return ErrInvalidProfileID
	}
	if !profileIDRegex.MatchString(id) {
		return ErrInvalidProfileID
	}
	return nil
}

// IsReservedProfileID returns true if the profile ID is reserved.
func IsReservedProfileID(id string) bool {
	return reservedProfileIDs[id]
}

// ValidateProfileIDForCreation rejects invalid and reserved IDs.
func ValidateProfileIDForCreation(id string) error {
	if err := ValidateProfileID(id); err != nil {
		return err
	}
	if IsReservedProfileID(id) {
		return ErrReservedProfileID
	}
	return nil
}
