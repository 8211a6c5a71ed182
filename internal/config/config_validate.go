// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/liftsync/internal/validation"
)

const (
	// minJWTSecretLength matches the HS256 key size.
	minJWTSecretLength = 32

	minEncryptionSecretLength = 16
)

// Validate checks that required configuration is present and valid.
// Field ranges come from the validate struct tags; cross-field rules
// are checked by the validateX methods.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return fmt.Errorf("invalid configuration: %w", verr)
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateRemote(); err != nil {
		return err
	}

	if err := c.validateSession(); err != nil {
		return err
	}

	return c.validateServer()
}

func (c *Config) validateStorage() error {
	if !c.Storage.InMemory && strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("LIFTSYNC_STORAGE_PATH is required unless LIFTSYNC_STORAGE_IN_MEMORY=true")
	}
	if c.Storage.EncryptionSecret != "" && len(c.Storage.EncryptionSecret) < minEncryptionSecretLength {
		return fmt.Errorf("LIFTSYNC_STORAGE_ENCRYPTION_SECRET must be at least %d characters", minEncryptionSecretLength)
	}
	return nil
}

// validateRemote allows an empty base URL: the daemon then queues locally
// and never delivers.
func (c *Config) validateRemote() error {
	if c.Remote.BaseURL == "" {
		return nil
	}
	if err := validateHTTPURL(c.Remote.BaseURL, "LIFTSYNC_REMOTE_BASE_URL"); err != nil {
		return err
	}
	if c.Remote.HealthPath != "" && !strings.HasPrefix(c.Remote.HealthPath, "/") {
		return fmt.Errorf("LIFTSYNC_REMOTE_HEALTH_PATH must start with /, got: %s", c.Remote.HealthPath)
	}
	return nil
}

func (c *Config) validateSession() error {
	if len(c.Session.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("LIFTSYNC_JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	return nil
}

func (c *Config) validateServer() error {
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			if len(c.Server.CORSOrigins) > 1 {
				return fmt.Errorf("LIFTSYNC_CORS_ORIGINS cannot mix * with explicit origins")
			}
			continue
		}
		if err := validateHTTPURL(origin, "LIFTSYNC_CORS_ORIGINS"); err != nil {
			return err
		}
	}
	return nil
}
