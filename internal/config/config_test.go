package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":8099" {
		t.Errorf("Listen = %q, want default :8099", cfg.Listen)
	}
	if cfg.Sync.Cron != "*/5 * * * *" {
		t.Errorf("Sync.Cron = %q, want default", cfg.Sync.Cron)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config file not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600 (may hold secrets)", info.Mode().Perm())
	}
}

func TestLoadReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("listen: \":9000\"\ntimezone: America/Chicago\nsync:\n  cron: \"*/10 * * * *\"\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("Listen = %q, want :9000", cfg.Listen)
	}
	if cfg.Timezone != "America/Chicago" {
		t.Errorf("Timezone = %q, want America/Chicago", cfg.Timezone)
	}
	if cfg.Sync.Cron != "*/10 * * * *" {
		t.Errorf("Sync.Cron = %q, want */10 * * * *", cfg.Sync.Cron)
	}

	if _, err := cfg.Location(); err != nil {
		t.Errorf("Location() = %v", err)
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("timezone: Not/AZone\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("bad timezone accepted")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PCO_APP_ID", "app-from-env")
	t.Setenv("UNIFI_ACCESS_API_TOKEN", "token-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PCO.AppID != "app-from-env" {
		t.Errorf("PCO.AppID = %q, want env override", cfg.PCO.AppID)
	}
	if cfg.Unifi.APIToken != "token-from-env" {
		t.Errorf("Unifi.APIToken = %q, want env override", cfg.Unifi.APIToken)
	}
}
