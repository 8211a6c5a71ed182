// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

// Package reconcile folds server responses back into the local entity
// collections. Every write is keyed by clientId and touches exactly one
// entity; an unknown clientId is logged and ignored.
package reconcile

import (
	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/models"
)

// Store is the entity collection surface the reconciler writes to.
type Store[E any] interface {
	Update(clientID string, fn func(E) E) (E, bool)
	Remove(clientID string) bool
}

// Reconciler applies sync results for one entity kind.
type Reconciler[E models.Entity[E]] struct {
	kind  models.Kind
	store Store[E]
}

// New returns a reconciler writing to store.
func New[E models.Entity[E]](kind models.Kind, store Store[E]) *Reconciler[E] {
	return &Reconciler[E]{kind: kind, store: store}
}

// ReconcileID records the server id echoed for clientID and marks it synced.
func (r *Reconciler[E]) ReconcileID(clientID, serverID string) bool {
	return r.apply(clientID, "reconcile_id", func(e E) E {
		return e.WithServerID(serverID).WithSyncStatus(models.SyncStatusSynced)
	})
}

// Reconcile replaces the local entity with the server's authoritative copy,
// keeping the local clientId and any nested collections the server omitted.
func (r *Reconciler[E]) Reconcile(clientID string, server E) bool {
	return r.apply(clientID, "reconcile", func(local E) E {
		return server.AdoptLocal(local).WithSyncStatus(models.SyncStatusSynced)
	})
}

// MarkSynced sets the entity's status to synced.
func (r *Reconciler[E]) MarkSynced(clientID string) bool {
	return r.setStatus(clientID, models.SyncStatusSynced)
}

// MarkFailed sets the entity's status to failed.
func (r *Reconciler[E]) MarkFailed(clientID string) bool {
	return r.setStatus(clientID, models.SyncStatusFailed)
}

// MarkSyncing sets the entity's status to syncing while a delivery is in flight.
func (r *Reconciler[E]) MarkSyncing(clientID string) bool {
	return r.setStatus(clientID, models.SyncStatusSyncing)
}

// MarkPending sets the entity's status back to pending, e.g. when a failed
// mutation is requeued.
func (r *Reconciler[E]) MarkPending(clientID string) bool {
	return r.setStatus(clientID, models.SyncStatusPending)
}

// RemoveByClientID discards an entity entirely. Used to roll back optimistic
// state that must not survive.
func (r *Reconciler[E]) RemoveByClientID(clientID string) bool {
	removed := r.store.Remove(clientID)
	if !removed {
		r.missing(clientID, "remove")
	}
	return removed
}

func (r *Reconciler[E]) setStatus(clientID string, status models.SyncStatus) bool {
	return r.apply(clientID, string(status), func(e E) E {
		return e.WithSyncStatus(status)
	})
}

func (r *Reconciler[E]) apply(clientID, op string, fn func(E) E) bool {
	if _, ok := r.store.Update(clientID, fn); !ok {
		r.missing(clientID, op)
		return false
	}
	return true
}

func (r *Reconciler[E]) missing(clientID, op string) {
	logging.Debug().
		Str("kind", string(r.kind)).
		Str("client_id", clientID).
		Str("op", op).
		Msg("No local entity to reconcile")
}
