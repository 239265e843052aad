package config

import (
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HISTORY_DATABASE", "")
	t.Setenv("RAW_DATA_DIR", "")
	t.Setenv("TRACKER_PATH", "")
	t.Setenv("BASELINE_VERSION_ID", "")
	t.Setenv("BASELINE_VARIANT_ID", "")

	cfg := Load()
	if cfg.DatabasePath != "data/history.db" {
		t.Errorf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.RawDataDir != "data/raw" {
		t.Errorf("unexpected raw data dir %q", cfg.RawDataDir)
	}
	if cfg.BaselineVersionID != DefaultBaselineVersionID {
		t.Errorf("unexpected baseline version id %d", cfg.BaselineVersionID)
	}
	want := filepath.Join("data", "processing_history.json")
	if cfg.TrackerPath != want {
		t.Errorf("ledger should default next to the database, got %q", cfg.TrackerPath)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HISTORY_DATABASE", "/var/lib/history/h.db")
	t.Setenv("RAW_DATA_DIR", "/srv/raw")
	t.Setenv("TRACKER_PATH", "/tmp/ledger.json")
	t.Setenv("BASELINE_VERSION_ID", "200000")

	cfg := Load()
	if cfg.DatabasePath != "/var/lib/history/h.db" {
		t.Errorf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.RawDataDir != "/srv/raw" {
		t.Errorf("unexpected raw data dir %q", cfg.RawDataDir)
	}
	if cfg.TrackerPath != "/tmp/ledger.json" {
		t.Errorf("unexpected tracker path %q", cfg.TrackerPath)
	}
	if cfg.BaselineVersionID != 200000 {
		t.Errorf("unexpected baseline version id %d", cfg.BaselineVersionID)
	}
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("BASELINE_VARIANT_ID", "notanumber")
	cfg := Load()
	if cfg.BaselineVariantID != DefaultBaselineVariantID {
		t.Errorf("unexpected baseline variant id %d", cfg.BaselineVariantID)
	}
}
