// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package entity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/models"
)

// Syncable is an entity that can assign its own identity and snapshot
// itself into a payload.
type Syncable[P any, E any] interface {
	models.Entity[E]
	WithIdentity(clientID, userID string) E
	ToPayload() P
}

// Enqueuer is the queue surface the mutator writes to.
type Enqueuer[P any] interface {
	EnqueueCreate(ctx context.Context, payload P, userID string) (models.Mutation[P], error)
	EnqueueUpdate(ctx context.Context, payload P, userID string) (models.Mutation[P], error)
	EnqueueDelete(ctx context.Context, clientID, serverID, userID string) (*models.Mutation[P], error)
}

// Mutator applies a change to the local repository first, then queues it
// for delivery. A failed enqueue rolls the local change back.
type Mutator[P models.Payload[P], E Syncable[P, E]] struct {
	kind  models.Kind
	repo  *Repository[E]
	queue Enqueuer[P]
	newID func() string
}

// NewMutator wires a repository to its queue.
func NewMutator[P models.Payload[P], E Syncable[P, E]](kind models.Kind, repo *Repository[E], queue Enqueuer[P]) *Mutator[P, E] {
	return &Mutator[P, E]{
		kind:  kind,
		repo:  repo,
		queue: queue,
		newID: func() string { return uuid.New().String() },
	}
}

// Repository returns the backing collection.
func (m *Mutator[P, E]) Repository() *Repository[E] { return m.repo }

// Create assigns a fresh clientId, stores e as pending and queues a CREATE.
func (m *Mutator[P, E]) Create(ctx context.Context, userID string, e E) (E, error) {
	e = e.WithIdentity(m.newID(), userID).
		WithServerID("").
		WithSyncStatus(models.SyncStatusPending)

	if err := m.repo.Put(e); err != nil {
		return e, err
	}
	if _, err := m.queue.EnqueueCreate(ctx, e.ToPayload(), userID); err != nil {
		m.repo.Remove(e.ClientKey())
		return e, fmt.Errorf("queue %s create: %w", m.kind, err)
	}

	logging.Debug().
		Str("kind", string(m.kind)).
		Str("client_id", e.ClientKey()).
		Msg("Created entity locally")
	return e, nil
}

// Update stores e over the entity with the same clientId and queues a full
// snapshot UPDATE. Identity fields are taken from the stored entity.
func (m *Mutator[P, E]) Update(ctx context.Context, userID string, e E) (E, error) {
	current, err := m.owned(userID, e.ClientKey())
	if err != nil {
		return e, err
	}

	e = e.WithIdentity(current.ClientKey(), current.Owner()).
		WithServerID(current.ServerKey()).
		WithSyncStatus(models.SyncStatusPending)

	if err := m.repo.Put(e); err != nil {
		return e, err
	}
	if _, err := m.queue.EnqueueUpdate(ctx, e.ToPayload(), userID); err != nil {
		_ = m.repo.Put(current)
		return current, fmt.Errorf("queue %s update: %w", m.kind, err)
	}
	return e, nil
}

// Delete removes the entity locally and queues a DELETE when the server knows
// about it. The returned mutation is nil when nothing needs to be sent.
func (m *Mutator[P, E]) Delete(ctx context.Context, userID, clientID string) (*models.Mutation[P], error) {
	current, err := m.owned(userID, clientID)
	if err != nil {
		return nil, err
	}

	// The entity leaves the repository before its CREATE can be cancelled;
	// a sync run that finds both gone queues a DELETE for the server copy.
	m.repo.Remove(clientID)
	mutation, err := m.queue.EnqueueDelete(ctx, clientID, current.ServerKey(), userID)
	if err != nil {
		_ = m.repo.Put(current)
		return nil, fmt.Errorf("queue %s delete: %w", m.kind, err)
	}
	return mutation, nil
}

func (m *Mutator[P, E]) owned(userID, clientID string) (E, error) {
	current, ok := m.repo.Get(clientID)
	if !ok {
		return current, fmt.Errorf("%w: %s %s", ErrNotFound, m.kind, clientID)
	}
	if current.Owner() != userID {
		return current, ErrForbidden
	}
	return current, nil
}
