package store

import (
	"os"
	"path/filepath"
	"strings"
)

// DBFileName is the database file inside a profile directory.
const DBFileName = "pricecheck.db"

// DefaultProfileRoot returns the root directory for all profiles.
// Defaults to ~/.pricecheck/profiles, falls back to ./.pricecheck/profiles if home dir unavailable.
func DefaultProfileRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".pricecheck", "profiles")
	}
	return filepath.Join(home, ".pricecheck", "profiles")
}

// EncodeProfilePath encodes a profile ID for filesystem use.
// Replaces "/" with "__" for path-style profile IDs.
func EncodeProfilePath(profileID string) string {
	return strings.ReplaceAll(profileID, "/", "__")
}

// DecodeProfilePath decodes an encoded profile path back to a profile ID.
func DecodeProfilePath(encoded string) string {
	return strings.ReplaceAll(encoded, "__", "/")
}

// ProfileDBPath returns the full path to a profile's database file.
// Example: ProfileDBPath("lisbon/north") -> ~/.pricecheck/profiles/lisbon__north/pricecheck.db
func ProfileDBPath(profileID string) string {
	return filepath.Join(DefaultProfileRoot(), EncodeProfilePath(profileID), DBFileName)
}

// ListProfiles returns the IDs of the profiles under root that hold a
// database, sorted by directory name.
func ListProfiles(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), DBFileName)); err != nil {
			continue
		}
		ids = append(ids, DecodeProfilePath(e.Name()))
	}
	return ids, nil
}
