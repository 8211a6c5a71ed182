// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package queue

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/metrics"
	"github.com/tomtom215/liftsync/internal/models"
	"github.com/tomtom215/liftsync/internal/storage"
)

const (
	prefixPending = "queue:"
	prefixFailed  = "failed:"
)

// PendingKey returns the storage key of a kind's pending queue.
func PendingKey(kind models.Kind) string { return prefixPending + string(kind) }

// FailedKey returns the storage key of a kind's failed queue.
func FailedKey(kind models.Kind) string { return prefixFailed + string(kind) }

// ListStore reads and replaces one JSON-encoded list of mutations. It does no
// locking of its own.
type ListStore[P any] struct {
	kv  storage.KV
	key string
}

// NewListStore returns a ListStore bound to key.
func NewListStore[P any](kv storage.KV, key string) ListStore[P] {
	return ListStore[P]{kv: kv, key: key}
}

// Key returns the storage key.
func (s ListStore[P]) Key() string { return s.key }

// Load returns the stored list. Missing or undecodable data yields an empty
// list; only storage failures are returned as errors.
func (s ListStore[P]) Load(ctx context.Context) ([]models.Mutation[P], error) {
	data, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.key, err)
	}
	if !found || len(data) == 0 {
		return []models.Mutation[P]{}, nil
	}

	var list []models.Mutation[P]
	if err := json.Unmarshal(data, &list); err != nil {
		metrics.QueueCorruptReads.WithLabelValues(s.key).Inc()
		logging.Warn().
			Err(err).
			Str("key", s.key).
			Int("bytes", len(data)).
			Msg("Corrupt queue data, treating as empty")
		return []models.Mutation[P]{}, nil
	}
	if list == nil {
		list = []models.Mutation[P]{}
	}
	return list, nil
}

// Save replaces the stored list.
func (s ListStore[P]) Save(ctx context.Context, list []models.Mutation[P]) error {
	if list == nil {
		list = []models.Mutation[P]{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}
