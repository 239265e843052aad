package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Baseline ids used when a table has no persisted rows yet.
const (
	DefaultBaselineVersionID = 100000
	DefaultBaselineVariantID = 100000
)

// Config holds all configuration for the history ingestor.
type Config struct {
	// Database
	DatabasePath string

	// Raw snapshot folder (one YYYYMMDD directory or zip per date)
	RawDataDir string

	// Processing-history ledger file
	TrackerPath string

	// Baseline identifiers for empty tables
	BaselineVersionID int64
	BaselineVariantID int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	cfg := &Config{
		DatabasePath:      getEnv("HISTORY_DATABASE", "data/history.db"),
		RawDataDir:        getEnv("RAW_DATA_DIR", "data/raw"),
		TrackerPath:       getEnv("TRACKER_PATH", ""),
		BaselineVersionID: getEnvInt64("BASELINE_VERSION_ID", DefaultBaselineVersionID),
		BaselineVariantID: getEnvInt64("BASELINE_VARIANT_ID", DefaultBaselineVariantID),
	}

	// The ledger lives next to the database unless placed explicitly.
	if cfg.TrackerPath == "" {
		cfg.TrackerPath = filepath.Join(filepath.Dir(cfg.DatabasePath), "processing_history.json")
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
