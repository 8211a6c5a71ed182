// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

/*
Package websocket pushes sync status to connected UI clients.

Key Components:

  - Hub: registers clients and fans messages out to them
  - Client: one gorilla/websocket connection with read and write pumps
  - StatusBroadcaster: turns queue, network and session changes into messages

Message Types:

  - queue_counts: pending and failed counts per kind for the current user
  - sync_completed: summary of a finished orchestrator run
  - network: online flag after a connectivity transition
  - session: login or logout of the current user
  - ping / pong: client keepalive

Every message is a JSON object {"type": ..., "data": ...}.

Usage:

	hub := websocket.NewHub()
	go hub.RunWithContext(ctx)

	b := websocket.NewStatusBroadcaster(hub, countsFn)
	unsubscribe := b.Attach(bus, monitor, sess)
	defer unsubscribe()
	orchestrator.SetOnRunCompleted(b.SyncCompleted)

Thread Safety:

The hub owns the client set. Broadcasts never block: when the hub's buffer is
full the message is dropped and logged, and a client whose send buffer is full
is disconnected.
*/
package websocket
