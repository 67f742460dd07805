package pricecheck

import (
	"os"
	"strconv"
	"time"

	"github.com/hyperengineering/pricecheck/internal/store"
	"github.com/joho/godotenv"
)

// Config configures the pricecheck client.
type Config struct {
	// Profile selects the local database.
	// If empty, resolved using profile resolution (explicit > PRICECHECK_PROFILE env > "default").
	Profile string

	// LocalPath is the path to the local SQLite database.
	// Derived from Profile when empty.
	LocalPath string

	// BackendURL is the base URL of the backend service.
	// If empty, the client works offline and sync is unavailable.
	BackendURL string

	// APIKey authenticates with the backend as a bearer token.
	APIKey string

	// Username and Password authenticate with HTTP basic auth when no
	// APIKey is set.
	Username string
	Password string

	// SourceID identifies this device in backend requests.
	// Defaults to hostname if not set.
	SourceID string

	// Timeout bounds every backend request. Defaults to 30 seconds.
	Timeout time.Duration

	// SettleDelay is the pause between clearing the store and the first
	// download. Defaults to 50ms.
	SettleDelay time.Duration

	// CreateAttempts bounds product creation retries. Defaults to 3.
	CreateAttempts int

	// Log configures logging.
	Log LogConfig
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	hostname, _ := os.Hostname()
	return Config{
		Profile:        store.DefaultProfile,
		LocalPath:      store.ProfileDBPath(store.DefaultProfile),
		SourceID:       hostname,
		Timeout:        30 * time.Second,
		SettleDelay:    50 * time.Millisecond,
		CreateAttempts: MaxCreateAttempts,
		Log:            DefaultLogConfig(),
	}
}

// ConfigFromEnv reads configuration from environment variables, after
// loading a .env file from the working directory if there is one.
//
//	PRICECHECK_PROFILE       → Profile
//	PRICECHECK_DB_PATH       → LocalPath
//	PRICECHECK_BACKEND_URL   → BackendURL
//	PRICECHECK_API_KEY       → APIKey
//	PRICECHECK_USERNAME      → Username
//	PRICECHECK_PASSWORD      → Password
//	PRICECHECK_SOURCE_ID     → SourceID
//	PRICECHECK_TIMEOUT       → Timeout (Go duration)
//	PRICECHECK_SETTLE_DELAY  → SettleDelay (Go duration)
//	LOG_LEVEL, LOG_FORMAT, LOG_FILE → Log
func ConfigFromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Profile:     os.Getenv("PRICECHECK_PROFILE"),
		LocalPath:   os.Getenv("PRICECHECK_DB_PATH"),
		BackendURL:  os.Getenv("PRICECHECK_BACKEND_URL"),
		APIKey:      os.Getenv("PRICECHECK_API_KEY"),
		Username:    os.Getenv("PRICECHECK_USERNAME"),
		Password:    os.Getenv("PRICECHECK_PASSWORD"),
		SourceID:    os.Getenv("PRICECHECK_SOURCE_ID"),
		Timeout:     getDuration("PRICECHECK_TIMEOUT"),
		SettleDelay: getDuration("PRICECHECK_SETTLE_DELAY"),
		Log: LogConfig{
			Level:  os.Getenv("LOG_LEVEL"),
			Format: os.Getenv("LOG_FORMAT"),
			File:   os.Getenv("LOG_FILE"),
		},
	}
}

// getDuration parses a duration variable, accepting plain integers as
// milliseconds. Unset or malformed values yield zero.
func getDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return &ValidationError{Field: "LocalPath", Message: "required: path to SQLite database"}
	}

	if c.Profile != "" {
		if err := store.ValidateProfileID(c.Profile); err != nil {
			return &ValidationError{Field: "Profile", Message: err.Error()}
		}
	}

	if c.BackendURL != "" && c.APIKey == "" && c.Username == "" {
		return &ValidationError{Field: "APIKey", Message: "required when BackendURL is set (or Username/Password)"}
	}

	if c.Timeout < 0 {
		return &ValidationError{Field: "Timeout", Message: "must be non-negative"}
	}
	if c.SettleDelay < 0 {
		return &ValidationError{Field: "SettleDelay", Message: "must be non-negative"}
	}
	if c.CreateAttempts < 0 {
		return &ValidationError{Field: "CreateAttempts", Message: "must be non-negative"}
	}

	return nil
}

// IsOffline returns true if no backend is configured.
func (c Config) IsOffline() bool {
	return c.BackendURL == ""
}

// WithDefaults fills in default values for unset fields.
// Profile resolution: explicit Profile field > PRICECHECK_PROFILE env > "default".
// LocalPath is derived from the resolved profile if not explicitly set.
//
// When the default profile is used for the first time, a database from the
// pre-profile location is copied into it.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.Profile == "" {
		resolved, err := store.ResolveProfile("")
		if err == nil {
			c.Profile = resolved
		} else {
			c.Profile = store.DefaultProfile
		}
	}

	if c.LocalPath == "" {
		c.LocalPath = store.ProfileDBPath(c.Profile)
	}

	if c.SourceID == "" {
		c.SourceID = defaults.SourceID
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = defaults.SettleDelay
	}
	if c.CreateAttempts == 0 {
		c.CreateAttempts = defaults.CreateAttempts
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = defaults.Log.MaxSizeMB
		c.Log.MaxBackups = defaults.Log.MaxBackups
		c.Log.MaxAgeDays = defaults.Log.MaxAgeDays
		c.Log.Compress = defaults.Log.Compress
	}

	return c
}
