// Package config loads and validates the larkbridge configuration from an
// optional YAML file plus environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by ApplyEnv.
const (
	EnvAppID             = "LARK_APP_ID"
	EnvAppSecret         = "LARK_APP_SECRET"
	EnvVerificationToken = "LARK_VERIFICATION_TOKEN"
)

type Config struct {
	Lark    LarkConfig    `yaml:"lark"`
	Server  ServerConfig  `yaml:"server"`
	Webhook WebhookConfig `yaml:"webhook"`
	Minutes MinutesConfig `yaml:"minutes"`
	Catalog CatalogConfig `yaml:"catalog"`
	Logging LoggingConfig `yaml:"logging"`
}

type LarkConfig struct {
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`
	BaseURL   string `yaml:"base_url"`
	// TimeoutSec bounds every outbound API call.
	TimeoutSec int `yaml:"timeout_sec"`
	// TokenMarginSec is subtracted from the token lifetime so a refresh
	// happens before the remote expiry.
	TokenMarginSec int `yaml:"token_margin_sec"`
}

type ServerConfig struct {
	Listen         string `yaml:"listen"`
	SSEPingSec     int    `yaml:"sse_ping_sec"`
	BodyLimitBytes int64  `yaml:"body_limit_bytes"`
}

type WebhookConfig struct {
	DedupWindowSec    int    `yaml:"dedup_window_sec"`
	VerificationToken string `yaml:"verification_token"`
}

type MinutesConfig struct {
	PendingTTLSec int `yaml:"pending_ttl_sec"`
	// WikiSpaceID is the wiki space that receives archived minutes pages.
	// Archival is refused with an in-chat error when unset.
	WikiSpaceID string `yaml:"wiki_space_id"`
}

type CatalogConfig struct {
	// TemplatesDir optionally overrides the embedded template catalog with
	// YAML files from a local directory, reloaded on change.
	TemplatesDir string `yaml:"templates_dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration with all defaults applied.
func Default() Config {
	return Config{
		Lark: LarkConfig{
			BaseURL:        "https://open.feishu.cn/open-apis",
			TimeoutSec:     30,
			TokenMarginSec: 60,
		},
		Server: ServerConfig{
			Listen:         ":8000",
			SSEPingSec:     30,
			BodyLimitBytes: 1 << 20,
		},
		Webhook: WebhookConfig{DedupWindowSec: 300},
		Minutes: MinutesConfig{PendingTTLSec: 3600},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the configuration file at path on top of the defaults, then
// applies environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overlays the recognized environment variables onto the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAppID); v != "" {
		c.Lark.AppID = v
	}
	if v := os.Getenv(EnvAppSecret); v != "" {
		c.Lark.AppSecret = v
	}
	if v := os.Getenv(EnvVerificationToken); v != "" {
		c.Webhook.VerificationToken = v
	}
}

// Validate checks the settings every front end needs. Missing credentials
// are fatal at startup, not at first use.
func (c Config) Validate() error {
	if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
		return fmt.Errorf("lark app_id and app_secret are required (set %s and %s)", EnvAppID, EnvAppSecret)
	}
	if c.Lark.TimeoutSec <= 0 {
		return fmt.Errorf("lark timeout_sec must be positive, got %d", c.Lark.TimeoutSec)
	}
	if c.Server.SSEPingSec <= 0 {
		return fmt.Errorf("server sse_ping_sec must be positive, got %d", c.Server.SSEPingSec)
	}
	if c.Minutes.PendingTTLSec <= 0 {
		return fmt.Errorf("minutes pending_ttl_sec must be positive, got %d", c.Minutes.PendingTTLSec)
	}
	if c.Webhook.DedupWindowSec <= 0 {
		return fmt.Errorf("webhook dedup_window_sec must be positive, got %d", c.Webhook.DedupWindowSec)
	}
	return nil
}

// Timeout returns the outbound call timeout.
func (c LarkConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// TokenMargin returns the refresh safety margin.
func (c LarkConfig) TokenMargin() time.Duration {
	return time.Duration(c.TokenMarginSec) * time.Second
}

// PingInterval returns the SSE keepalive interval.
func (c ServerConfig) PingInterval() time.Duration {
	return time.Duration(c.SSEPingSec) * time.Second
}

// DedupWindow returns the sliding window for webhook deduplication.
func (c WebhookConfig) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowSec) * time.Second
}

// PendingTTL returns how long a pending action stays claimable.
func (c MinutesConfig) PendingTTL() time.Duration {
	return time.Duration(c.PendingTTLSec) * time.Second
}
