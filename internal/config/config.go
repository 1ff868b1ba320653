package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the merged configuration driving a reader instance: where the
// on-disk store lives, which account(s) it is scoped to, and how to reach
// the remote session when the local cache declines or a write is needed.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Scope  ScopeConfig  `yaml:"scope"`
	Remote RemoteConfig `yaml:"remote"`
	Cache  CacheConfig  `yaml:"cache"`
	Log    LogConfig    `yaml:"log"`
}

// StoreConfig locates the on-disk database backing the local cache.
type StoreConfig struct {
	DBPath   string `yaml:"db_path"`
	BlobPath string `yaml:"blob_path"`
}

// ScopeConfig mirrors internal/snapshot.ScopeConfig; it is kept separate
// here so config stays independent of the snapshot package.
type ScopeConfig struct {
	Emails         []string `yaml:"emails"`
	UserAccountIDs []string `yaml:"user_account_ids"`
}

// RemoteConfig configures the remote session manager (C8).
type RemoteConfig struct {
	URL                  string            `yaml:"url"`
	Headers              map[string]string `yaml:"headers"`
	TimeoutSeconds       int               `yaml:"timeout_seconds"`
	SSEReadTimeoutSecond int               `yaml:"sse_read_timeout_seconds"`
	ReadTimeoutSeconds   int               `yaml:"read_timeout_seconds"`
}

// CacheConfig configures the snapshot cache (C5) and the router's
// post-write coherence window (C9).
type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CoherenceWindow time.Duration `yaml:"coherence_window"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

const defaultRemoteURL = "https://mcp.linear.app/mcp"

func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			URL:                defaultRemoteURL,
			TimeoutSeconds:     30,
			ReadTimeoutSeconds: 30,
		},
		Cache: CacheConfig{
			TTL:             300 * time.Second,
			CoherenceWindow: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration using the real environment.
func Load() (*Config, error) {
	return LoadWithEnv(os.Getenv)
}

// LoadWithEnv loads configuration using the provided environment lookup
// function, letting tests supply isolated environment values. A config
// file is read first, if present; environment variables always override
// it, matching spec.md §6's enumerated environment configuration.
func LoadWithEnv(getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPathWithEnv(getenv)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if url := getenv("LINEAR_OFFICIAL_MCP_URL"); url != "" {
		cfg.Remote.URL = url
	}
	if headers := getenv("LINEAR_OFFICIAL_MCP_HEADERS"); headers != "" {
		parsed := map[string]string{}
		if err := json.Unmarshal([]byte(headers), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse LINEAR_OFFICIAL_MCP_HEADERS: %w", err)
		}
		cfg.Remote.Headers = parsed
	}

	if emails := csvOrSingle(getenv("LINEAR_FAST_ACCOUNT_EMAILS"), getenv("LINEAR_FAST_ACCOUNT_EMAIL")); len(emails) > 0 {
		cfg.Scope.Emails = emails
	}
	if ids := csvOrSingle(getenv("LINEAR_FAST_USER_ACCOUNT_IDS"), getenv("LINEAR_FAST_USER_ACCOUNT_ID")); len(ids) > 0 {
		cfg.Scope.UserAccountIDs = ids
	}

	if dbPath := getenv("LINEAR_READER_DB_PATH"); dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	if blobPath := getenv("LINEAR_READER_BLOB_PATH"); blobPath != "" {
		cfg.Store.BlobPath = blobPath
	}

	return cfg, nil
}

// csvOrSingle prefers a comma-separated list env var over a single-value
// one, matching the *_EMAILS/*_EMAIL and *_IDS/*_ID pairing in spec.md §6.
func csvOrSingle(csv, single string) []string {
	if csv != "" {
		parts := strings.Split(csv, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	if single != "" {
		return []string{single}
	}
	return nil
}

func getConfigPathWithEnv(getenv func(string) string) string {
	if xdgConfig := getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "linear-reader", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "linear-reader", "config.yaml")
}
