// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

// Package logging provides the zerolog-based global logger used across Liftsync.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("kind", "workout").Int("pending", 3).Msg("Queue drained")
//	logging.Error().Err(err).Str("queue_id", id).Msg("Delivery failed")
//
// # Sync Run Correlation
//
// Each orchestrator run gets a short run ID. Ctx attaches it (and the API
// request ID, when present) to every line logged for that run:
//
//	ctx = logging.ContextWithRunID(ctx, logging.GenerateRunID())
//	logging.Ctx(ctx).Info().Msg("Sync run started")
//
// # Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// Use structured fields instead of Msgf.
//
// # slog Adapter
//
// NewSlogLogger bridges to libraries that take a *slog.Logger, such as the
// suture supervisor event hook.
//
// # Session Logging
//
// SecurityLogger records login and logout transitions with user IDs and
// token IDs masked.
//
// # Testing
//
//	var buf bytes.Buffer
//	logger := logging.NewTestLogger(&buf)
//	logger.Info().Msg("test message")
package logging
