// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

/*
Package syncer drains the mutation queues to the remote backend.

Components:
  - Pipeline: delivers one kind's queue in FIFO order and reconciles results
  - Orchestrator: runs every pipeline in registration order for the current
    user, at most one run at a time
  - Trigger: suture service that starts runs on reconnect, on login and
    (debounced) on queue changes
  - Refresher: rate limited pull of the user's data from the backend

Delivery policy, per mutation:
  - retryCount >= MaxRetries: entity marked failed, mutation quarantined, no call
  - success: entity reconciled, mutation completed
  - terminal error: entity marked failed, mutation quarantined immediately
  - transient error: retryCount incremented, then a fixed RetryDelay pause
  - unknown type: logged and left in place

Runs requested while one is active are dropped. A queue change that lands
after the active run took its snapshot emits on the bus again, and the
debounced trigger schedules the run that picks it up.
*/
package syncer
