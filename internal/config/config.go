// Package config loads the YAML application configuration, creating a
// default file on first run. Secrets may be supplied or overridden via
// environment variables so the config file can be checked in without them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// PCOConfig describes the calendar source API.
type PCOConfig struct {
	BaseURL             string `yaml:"base_url"`
	AuthType            string `yaml:"auth_type"` // personal_access_token | oauth
	AppID               string `yaml:"app_id"`
	Secret              string `yaml:"secret"`
	AccessToken         string `yaml:"access_token"`
	CalendarID          string `yaml:"calendar_id"`
	LocationMustContain string `yaml:"location_must_contain"`
	CacheSeconds        int    `yaml:"cache_seconds"`
	MinFetchIntervalSec int    `yaml:"min_fetch_interval_seconds"`
	MaxPages            int    `yaml:"max_pages"`
	PerPage             int    `yaml:"per_page"`
}

// UnifiConfig describes the downstream access-control controller.
type UnifiConfig struct {
	BaseURL      string `yaml:"base_url"`
	VerifyTLS    bool   `yaml:"verify_tls"`
	AuthType     string `yaml:"auth_type"` // none | api_token
	APIToken     string `yaml:"api_token"`
	APIKeyHeader string `yaml:"api_key_header"`
}

// TelegramConfig describes the notification sink. Empty token disables it.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatIDs  string `yaml:"chat_ids"` // comma-separated
}

// SyncConfig controls the reconciliation pass.
type SyncConfig struct {
	Cron            string `yaml:"cron"`
	LookaheadHours  int    `yaml:"lookahead_hours"`
	LookbehindHours int    `yaml:"lookbehind_hours"`
	ApplyToUnifi    bool   `yaml:"apply_to_unifi"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	Timezone string         `yaml:"timezone"`
	PCO      PCOConfig      `yaml:"pco"`
	Unifi    UnifiConfig    `yaml:"unifi"`
	Telegram TelegramConfig `yaml:"telegram"`
	Sync     SyncConfig     `yaml:"sync"`
}

// Default returns the in-memory default configuration.
func Default() *Config {
	return &Config{
		Listen:   ":8099",
		Timezone: "America/New_York",
		PCO: PCOConfig{
			BaseURL:             "https://api.planningcenteronline.com",
			AuthType:            "personal_access_token",
			CacheSeconds:        60,
			MinFetchIntervalSec: 60,
			MaxPages:            40,
			PerPage:             100,
		},
		Unifi: UnifiConfig{
			AuthType:     "api_token",
			APIKeyHeader: "X-API-Key",
		},
		Sync: SyncConfig{
			Cron:            "*/5 * * * *",
			LookaheadHours:  168,
			LookbehindHours: 24,
		},
	}
}

// Load reads the config file at path, creating it with defaults on first
// run, then applies environment overrides for secrets.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("writing initial config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config file with restrictive permissions; it carries
// credentials.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Location resolves the configured IANA timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.PCO.AppID = getEnv("PCO_APP_ID", cfg.PCO.AppID)
	cfg.PCO.Secret = getEnv("PCO_SECRET", cfg.PCO.Secret)
	cfg.PCO.AccessToken = getEnv("PCO_ACCESS_TOKEN", cfg.PCO.AccessToken)
	cfg.Unifi.BaseURL = getEnv("UNIFI_ACCESS_BASE_URL", cfg.Unifi.BaseURL)
	cfg.Unifi.APIToken = getEnv("UNIFI_ACCESS_API_TOKEN", cfg.Unifi.APIToken)
	cfg.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken)
	cfg.Telegram.ChatIDs = getEnv("TELEGRAM_CHAT_IDS", cfg.Telegram.ChatIDs)
}

// getEnv returns an environment variable value or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
