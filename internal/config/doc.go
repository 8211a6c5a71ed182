// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

/*
Package config loads the daemon configuration with Koanf v2.

Sources are layered, later ones winning:

 1. Built-in defaults (defaultConfig)
 2. A YAML file: $CONFIG_PATH, config.yaml, config.yml or /etc/liftsync/config.yaml
 3. LIFTSYNC_* environment variables

# Environment Variables

Only mapped variables are read; anything else with the prefix is ignored.

	LIFTSYNC_STORAGE_PATH            BadgerDB directory (default /data/liftsync)
	LIFTSYNC_STORAGE_IN_MEMORY       keep queues in memory only
	LIFTSYNC_STORAGE_ENCRYPTION_SECRET  encrypt stored queue values
	LIFTSYNC_REMOTE_BASE_URL         backend base URL; empty disables delivery
	LIFTSYNC_REMOTE_HEALTH_PATH      probed to drive the online flag
	LIFTSYNC_JWT_SECRET              HS256 secret for session tokens (required)
	LIFTSYNC_SYNC_MAX_RETRIES        attempts before quarantine (default 3)
	LIFTSYNC_SYNC_RETRY_DELAY        pause after a transient failure (default 2s)
	LIFTSYNC_HTTP_PORT               local API port (default 8787)
	LIFTSYNC_CORS_ORIGINS            comma separated allowed origins
	LIFTSYNC_LOG_LEVEL               trace, debug, info, warn, error
	LIFTSYNC_LOG_FORMAT              json or console

See envMappings for the full list.

# Example YAML

	storage:
	  path: /var/lib/liftsync
	remote:
	  base_url: https://api.example.com
	  breaker:
	    failure_ratio: 0.5
	session:
	  jwt_secret: change-me-to-a-32-character-secret
	sync:
	  max_retries: 5
	logging:
	  format: console

# Validation

Validate runs the validate struct tags through internal/validation, then
cross-field checks: the JWT secret length, the storage path unless
in_memory is set, and the base URL shape.
*/
package config
