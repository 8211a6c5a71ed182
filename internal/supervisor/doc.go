// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

/*
Package supervisor runs the daemon's long-lived services under suture v4.

# Overview

	RootSupervisor ("liftsync")
	├── DataSupervisor ("data-layer")
	│   └── StorageGCService (Badger only)
	├── SyncSupervisor ("sync-layer")
	│   ├── syncer.Trigger
	│   ├── netstatus.Prober (when remote.base_url and health_path are set)
	│   └── HubService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Each layer counts failures on its own. A trigger that keeps failing backs
off without stopping the HTTP API, so apps can still queue writes.

Supervisor events (starts, failures, backoff) are logged through
sutureslog into the zerolog-backed slog.Logger from logging.NewSlogLogger.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddSyncService(trigger)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}
*/
package supervisor
