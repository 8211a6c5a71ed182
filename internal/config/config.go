// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package config

import (
	"time"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/netstatus"
	"github.com/tomtom215/liftsync/internal/remote"
	"github.com/tomtom215/liftsync/internal/storage"
	"github.com/tomtom215/liftsync/internal/syncer"
)

// Config holds the daemon configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: defaultConfig()
//  2. Config File: optional YAML file (config.yaml, /etc/liftsync/config.yaml or CONFIG_PATH)
//  3. Environment Variables: LIFTSYNC_* overrides
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	kv, err := storage.OpenBadger(cfg.Storage.BadgerConfig())
type Config struct {
	Storage StorageConfig `koanf:"storage"`
	Remote  RemoteConfig  `koanf:"remote"`
	Session SessionConfig `koanf:"session"`
	Sync    SyncConfig    `koanf:"sync"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// StorageConfig configures the durable key-value store behind the queues.
type StorageConfig struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory keeps queues in process memory. Queued work is lost on exit.
	InMemory bool `koanf:"in_memory"`

	// EncryptionSecret enables AES-256-GCM encryption of stored values.
	EncryptionSecret string `koanf:"encryption_secret"`

	SyncWrites       bool    `koanf:"sync_writes"`
	Compression      bool    `koanf:"compression"`
	MemTableSize     int64   `koanf:"memtable_size" validate:"gte=1048576"`
	ValueLogFileSize int64   `koanf:"value_log_file_size" validate:"gte=1048576"`
	NumCompactors    int     `koanf:"num_compactors" validate:"gte=2"`
	GCRatio          float64 `koanf:"gc_ratio" validate:"gt=0,lt=1"`

	// GCInterval is how often the value log is compacted.
	GCInterval time.Duration `koanf:"gc_interval" validate:"gt=0"`

	CloseTimeout time.Duration `koanf:"close_timeout" validate:"gt=0"`
}

// BadgerConfig converts the section into storage options.
func (s StorageConfig) BadgerConfig() storage.BadgerConfig {
	return storage.BadgerConfig{
		Path:             s.Path,
		SyncWrites:       s.SyncWrites,
		Compression:      s.Compression,
		MemTableSize:     s.MemTableSize,
		ValueLogFileSize: s.ValueLogFileSize,
		NumCompactors:    s.NumCompactors,
		GCRatio:          s.GCRatio,
		CloseTimeout:     s.CloseTimeout,
	}
}

// RemoteConfig points the sync engine at the backend entity service.
type RemoteConfig struct {
	// BaseURL of the backend. Empty runs the daemon local-only: mutations
	// queue up but are never delivered.
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	UserAgent string        `koanf:"user_agent"`

	// Resources are the REST collection paths per entity kind.
	WorkoutsResource  string `koanf:"workouts_resource" validate:"required"`
	TemplatesResource string `koanf:"templates_resource" validate:"required"`
	UsersResource     string `koanf:"users_resource" validate:"required"`

	// HealthPath is probed every ProbeInterval to drive the online flag.
	// An empty path disables probing; connectivity then comes from the API.
	HealthPath    string        `koanf:"health_path"`
	ProbeInterval time.Duration `koanf:"probe_interval" validate:"gt=0"`
	ProbeTimeout  time.Duration `koanf:"probe_timeout" validate:"gt=0"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// ClientConfig converts the section into remote client options.
func (r RemoteConfig) ClientConfig() remote.Config {
	return remote.Config{
		BaseURL:   r.BaseURL,
		Timeout:   r.Timeout,
		UserAgent: r.UserAgent,
	}
}

// ProberConfig returns the health prober options. ok is false when probing
// is disabled.
func (r RemoteConfig) ProberConfig() (cfg netstatus.ProberConfig, ok bool) {
	if r.BaseURL == "" || r.HealthPath == "" {
		return netstatus.ProberConfig{}, false
	}
	return netstatus.ProberConfig{
		URL:      netstatus.HealthURL(r.BaseURL, r.HealthPath),
		Interval: r.ProbeInterval,
		Timeout:  r.ProbeTimeout,
	}, true
}

// BreakerConfig configures the circuit breaker in front of each remote client.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests" validate:"gte=1"`
	Interval     time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	MinRequests  uint32        `koanf:"min_requests" validate:"gte=1"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gt=0,lte=1"`
}

// Remote converts the section into breaker options.
func (b BreakerConfig) Remote() remote.BreakerConfig {
	return remote.BreakerConfig{
		MaxRequests:  b.MaxRequests,
		Interval:     b.Interval,
		Timeout:      b.Timeout,
		MinRequests:  b.MinRequests,
		FailureRatio: b.FailureRatio,
	}
}

// SessionConfig configures bearer token validation.
type SessionConfig struct {
	// JWTSecret verifies HS256 tokens presented at login.
	JWTSecret string `koanf:"jwt_secret" validate:"required"`
}

// SyncConfig tunes the orchestrator and its triggers.
type SyncConfig struct {
	// MaxRetries is the retry count at which a mutation is quarantined.
	MaxRetries int           `koanf:"max_retries" validate:"gte=1,lte=100"`
	RetryDelay time.Duration `koanf:"retry_delay" validate:"gte=0"`

	// Debounce collapses bursts of local writes into one run.
	Debounce time.Duration `koanf:"debounce" validate:"gte=0"`

	// RefreshCooldown throttles user data refreshes on reconnect.
	RefreshCooldown time.Duration `koanf:"refresh_cooldown" validate:"gte=0"`
}

// Policy converts the section into the pipeline retry policy.
func (s SyncConfig) Policy() syncer.Policy {
	p := syncer.DefaultPolicy()
	p.MaxRetries = s.MaxRetries
	p.RetryDelay = s.RetryDelay
	return p
}

// TriggerConfig converts the section into trigger options.
func (s SyncConfig) TriggerConfig() syncer.TriggerConfig {
	return syncer.TriggerConfig{Debounce: s.Debounce}
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"gte=1,lte=65535"`

	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// CORSOrigins may be given as a comma separated env var.
	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller adds file:line to every event.
	Caller bool `koanf:"caller"`
}

// Logging converts the section into logger options.
func (l LoggingConfig) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = l.Level
	cfg.Format = l.Format
	cfg.Caller = l.Caller
	return cfg
}

// Load reads configuration from defaults, the config file and environment
// variables, in that order.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
