// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package api

import (
	"context"
	"fmt"

	"github.com/tomtom215/liftsync/internal/models"
	"github.com/tomtom215/liftsync/internal/queue"
)

// QueueView is the type-erased view of one kind's queues.
type QueueView interface {
	Kind() models.Kind
	Pending(ctx context.Context, userID string) (interface{}, error)
	Failed(ctx context.Context, userID string) (interface{}, error)
	Counts(ctx context.Context, userID string) (models.QueueCounts, error)
	RetryFailed(ctx context.Context, userID, queueID string) (interface{}, error)
	ClearFailed(ctx context.Context, userID string) (int, error)
	ClearUser(ctx context.Context, userID string) (int, error)
}

// StatusMarker resets an entity's sync status after a manual retry.
type StatusMarker interface {
	MarkPending(clientID string) bool
}

// QueueAdapter exposes a typed queue as a QueueView.
type QueueAdapter[P models.Payload[P]] struct {
	queue  *queue.Queue[P]
	status StatusMarker
}

// NewQueueAdapter wraps q. status is told when a failed record is retried.
func NewQueueAdapter[P models.Payload[P]](q *queue.Queue[P], status StatusMarker) *QueueAdapter[P] {
	return &QueueAdapter[P]{queue: q, status: status}
}

func (a *QueueAdapter[P]) Kind() models.Kind { return a.queue.Kind() }

func (a *QueueAdapter[P]) Pending(ctx context.Context, userID string) (interface{}, error) {
	return orEmpty[P](a.queue.GetQueueForUser(ctx, userID))
}

func (a *QueueAdapter[P]) Failed(ctx context.Context, userID string) (interface{}, error) {
	return orEmpty[P](a.queue.GetFailedForUser(ctx, userID))
}

func (a *QueueAdapter[P]) Counts(ctx context.Context, userID string) (models.QueueCounts, error) {
	return a.queue.GetQueueCounts(ctx, userID)
}

// RetryFailed moves the user's failed record back to pending. A queueId
// owned by another user reads as not found.
func (a *QueueAdapter[P]) RetryFailed(ctx context.Context, userID, queueID string) (interface{}, error) {
	failed, err := a.queue.GetFailedForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	owned := false
	for _, m := range failed {
		if m.QueueID == queueID {
			owned = true
			break
		}
	}
	if !owned {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, queueID)
	}

	m, err := a.queue.RetryFailed(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if a.status != nil && m.Type != models.MutationDelete {
		a.status.MarkPending(m.ClientID)
	}
	return m, nil
}

func (a *QueueAdapter[P]) ClearFailed(ctx context.Context, userID string) (int, error) {
	return a.queue.ClearFailed(ctx, userID)
}

func (a *QueueAdapter[P]) ClearUser(ctx context.Context, userID string) (int, error) {
	return a.queue.ClearUser(ctx, userID)
}

// orEmpty keeps an empty queue serialising as [] rather than null.
func orEmpty[P any](list []models.Mutation[P], err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Mutation[P]{}
	}
	return list, nil
}
