// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

// Package main is the entry point for the liftsync daemon.
//
// liftsync runs next to a workout app on the device. The app writes
// workouts, templates and the user profile through the local HTTP API;
// every write is applied locally at once and queued. When the device is
// online and a user is logged in, the queued mutations are delivered to
// the backend in order.
//
// # Application Architecture
//
//  1. Configuration: Koanf v2 (defaults, config.yaml, LIFTSYNC_* env)
//  2. Storage: BadgerDB (or memory), optionally encrypted
//  3. Queues, repositories and reconcilers per entity kind
//  4. Remote clients behind circuit breakers, one pipeline per kind
//  5. Orchestrator, trigger and refresher
//  6. WebSocket hub with the status broadcaster
//  7. HTTP API on a chi router
//  8. Supervisor tree (suture v4) running everything long-lived
//
// # Example Usage
//
//	export LIFTSYNC_JWT_SECRET=$(openssl rand -hex 32)
//	export LIFTSYNC_REMOTE_BASE_URL=https://api.example.com
//	export LIFTSYNC_STORAGE_PATH=$HOME/.local/share/liftsync
//	./liftsync
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. In-flight HTTP requests
// get the server shutdown timeout, a running sync stops after the current
// mutation, and the store is closed last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/liftsync/internal/config"
	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/supervisor"
	"github.com/tomtom215/liftsync/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging.Logging())
	logging.Info().Msg("Starting liftsync with supervisor tree")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("liftsync stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	kv, gc, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage")
		}
	}()

	d, err := newDaemon(cfg, kv)
	if err != nil {
		return err
	}
	defer d.Close()

	watchConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	if gc != nil {
		tree.AddDataService(services.NewStorageGCService(gc, cfg.Storage.GCInterval))
	}

	tree.AddSyncService(services.NewHubService(d.hub))
	tree.AddSyncService(d.trigger)
	if d.prober != nil {
		tree.AddSyncService(d.prober)
		logging.Info().Msg("Connectivity prober added to supervisor tree")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           d.handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return nil
}

// watchConfig applies log level and format changes from the config file
// without a restart. Other settings need a restart.
func watchConfig() {
	path := config.ConfigFile()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		cfg, err := config.Load()
		if err != nil {
			logging.Warn().Err(err).Msg("Config reload failed; keeping current settings")
			return
		}
		logging.Init(cfg.Logging.Logging())
		logging.Info().Str("level", cfg.Logging.Level).Msg("Logging settings reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}
