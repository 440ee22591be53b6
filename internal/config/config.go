package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// AppConfig holds the server configuration. Values come from an optional YAML
// file (CHESSLINK_CONFIG) overlaid by environment variables; env wins.
type AppConfig struct {
	ListenAddr string

	DatabaseURL string
	RedisURL    string

	DisconnectGrace time.Duration
	EvictDelay      time.Duration
	SnapshotTTL     time.Duration

	AllowedOrigins []string
}

// fileConfig mirrors AppConfig for YAML decoding; durations are strings so
// both "30s" and bare second counts are accepted.
type fileConfig struct {
	ListenAddr      string   `yaml:"listen_addr"`
	DatabaseURL     string   `yaml:"database_url"`
	RedisURL        string   `yaml:"redis_url"`
	DisconnectGrace string   `yaml:"disconnect_grace"`
	EvictDelay      string   `yaml:"evict_delay"`
	SnapshotTTL     string   `yaml:"snapshot_ttl"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":8080",
		DisconnectGrace: 30 * time.Second,
		EvictDelay:      5 * time.Minute,
		SnapshotTTL:     24 * time.Hour,
	}

	if path := strings.TrimSpace(os.Getenv("CHESSLINK_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		if err := applyFile(cfg, &fc); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DISCONNECT_GRACE")); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("DISCONNECT_GRACE: %w", err)
		}
		cfg.DisconnectGrace = d
	}
	if v := strings.TrimSpace(os.Getenv("EVICT_DELAY")); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("EVICT_DELAY: %w", err)
		}
		cfg.EvictDelay = d
	}
	if v := strings.TrimSpace(os.Getenv("SNAPSHOT_TTL")); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SNAPSHOT_TTL: %w", err)
		}
		cfg.SnapshotTTL = d
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	if cfg.DisconnectGrace <= 0 {
		return nil, fmt.Errorf("disconnect grace must be positive")
	}
	if cfg.EvictDelay <= 0 {
		return nil, fmt.Errorf("evict delay must be positive")
	}
	return cfg, nil
}

func applyFile(cfg *AppConfig, fc *fileConfig) error {
	if v := strings.TrimSpace(fc.ListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(fc.DatabaseURL); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(fc.RedisURL); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(fc.DisconnectGrace); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("disconnect_grace: %w", err)
		}
		cfg.DisconnectGrace = d
	}
	if v := strings.TrimSpace(fc.EvictDelay); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("evict_delay: %w", err)
		}
		cfg.EvictDelay = d
	}
	if v := strings.TrimSpace(fc.SnapshotTTL); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("snapshot_ttl: %w", err)
		}
		cfg.SnapshotTTL = d
	}
	if len(fc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = append([]string(nil), fc.AllowedOrigins...)
	}
	return nil
}

// parseDuration accepts either a Go duration string or a bare second count.
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
