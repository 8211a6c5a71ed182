// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/liftsync/config.yaml",
	"/etc/liftsync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix is the prefix of every environment variable read into the config.
const EnvPrefix = "LIFTSYNC_"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:             "/data/liftsync",
			InMemory:         false,
			EncryptionSecret: "",
			SyncWrites:       true,
			Compression:      true,
			MemTableSize:     16 << 20, // 16MB
			ValueLogFileSize: 64 << 20, // 64MB
			NumCompactors:    2,
			GCRatio:          0.5,
			GCInterval:       5 * time.Minute,
			CloseTimeout:     10 * time.Second,
		},
		Remote: RemoteConfig{
			BaseURL:           "",
			Timeout:           15 * time.Second,
			UserAgent:         "liftsync",
			WorkoutsResource:  "workouts",
			TemplatesResource: "templates",
			UsersResource:     "users",
			HealthPath:        "/healthz",
			ProbeInterval:     30 * time.Second,
			ProbeTimeout:      5 * time.Second,
			Breaker: BreakerConfig{
				MaxRequests:  3,
				Interval:     time.Minute,
				Timeout:      30 * time.Second,
				MinRequests:  5,
				FailureRatio: 0.6,
			},
		},
		Session: SessionConfig{
			JWTSecret: "", // required
		},
		Sync: SyncConfig{
			MaxRetries:      3,
			RetryDelay:      2 * time.Second,
			Debounce:        100 * time.Millisecond,
			RefreshCooldown: 60 * time.Second,
		},
		Server: ServerConfig{
			Host:              "127.0.0.1", // local apps only
			Port:              8787,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: LIFTSYNC_* overrides
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// LIFTSYNC_REMOTE_BASE_URL -> remote.base_url
	envProvider := env.Provider(EnvPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// ConfigFile returns the config file LoadWithKoanf reads, or "" when none exists.
func ConfigFile() string {
	return findConfigFile()
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices
// for fields that expect []string. Needed because env vars are always strings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (defaults or YAML)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased, prefix removed)
// to koanf config paths. Section names contain underscores, so a plain
// underscore-to-dot replacement cannot be used.
var envMappings = map[string]string{
	// Storage
	"storage_path":                "storage.path",
	"storage_in_memory":           "storage.in_memory",
	"storage_encryption_secret":   "storage.encryption_secret",
	"storage_sync_writes":         "storage.sync_writes",
	"storage_compression":         "storage.compression",
	"storage_memtable_size":       "storage.memtable_size",
	"storage_value_log_file_size": "storage.value_log_file_size",
	"storage_num_compactors":      "storage.num_compactors",
	"storage_gc_ratio":            "storage.gc_ratio",
	"storage_gc_interval":         "storage.gc_interval",
	"storage_close_timeout":       "storage.close_timeout",

	// Remote entity service
	"remote_base_url":           "remote.base_url",
	"remote_timeout":            "remote.timeout",
	"remote_user_agent":         "remote.user_agent",
	"remote_workouts_resource":  "remote.workouts_resource",
	"remote_templates_resource": "remote.templates_resource",
	"remote_users_resource":     "remote.users_resource",
	"remote_health_path":        "remote.health_path",
	"remote_probe_interval":     "remote.probe_interval",
	"remote_probe_timeout":      "remote.probe_timeout",

	"remote_breaker_max_requests":  "remote.breaker.max_requests",
	"remote_breaker_interval":      "remote.breaker.interval",
	"remote_breaker_timeout":       "remote.breaker.timeout",
	"remote_breaker_min_requests":  "remote.breaker.min_requests",
	"remote_breaker_failure_ratio": "remote.breaker.failure_ratio",

	// Session
	"jwt_secret":         "session.jwt_secret",
	"session_jwt_secret": "session.jwt_secret",

	// Sync engine
	"sync_max_retries":      "sync.max_retries",
	"sync_retry_delay":      "sync.retry_delay",
	"sync_debounce":         "sync.debounce",
	"sync_refresh_cooldown": "sync.refresh_cooldown",

	// Local HTTP API
	"server_host":                "server.host",
	"server_port":                "server.port",
	"http_port":                  "server.port",
	"server_read_timeout":        "server.read_timeout",
	"server_write_timeout":       "server.write_timeout",
	"server_shutdown_timeout":    "server.shutdown_timeout",
	"cors_origins":               "server.cors_origins",
	"server_cors_origins":        "server.cors_origins",
	"server_rate_limit_requests": "server.rate_limit_requests",
	"server_rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":         "server.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - LIFTSYNC_REMOTE_BASE_URL -> remote.base_url
//   - LIFTSYNC_LOG_LEVEL -> logging.level
//   - LIFTSYNC_UNKNOWN -> "" (skipped)
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	return ""
}

// WatchConfigFile calls callback whenever the file at path changes.
// The caller is responsible for reloading and swapping the config safely.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
