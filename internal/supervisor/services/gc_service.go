// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package services

import (
	"context"
	"time"

	"github.com/tomtom215/liftsync/internal/logging"
)

// GCRunner is satisfied by *storage.BadgerKV.
type GCRunner interface {
	RunGC() error
}

// StorageGCService periodically reclaims value log space. Queue writes
// replace whole lists, so without it the Badger directory only grows.
//
// A failed GC run is logged and retried on the next tick; it never makes
// the service return, because the store stays usable.
type StorageGCService struct {
	store    GCRunner
	interval time.Duration
	name     string
}

// NewStorageGCService creates the service. A non-positive interval
// defaults to 5 minutes.
func NewStorageGCService(store GCRunner, interval time.Duration) *StorageGCService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &StorageGCService{
		store:    store,
		interval: interval,
		name:     "storage-gc",
	}
}

// Serve implements suture.Service.
func (s *StorageGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.store.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Storage GC failed")
				continue
			}
			logging.Debug().Dur("took", time.Since(start)).Msg("Storage GC finished")
		}
	}
}

func (s *StorageGCService) String() string {
	return s.name
}
