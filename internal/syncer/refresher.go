// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tomtom215/liftsync/internal/entity"
	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/metrics"
	"github.com/tomtom215/liftsync/internal/models"
)

// RefreshFunc pulls one kind's data for userID from the backend.
type RefreshFunc func(ctx context.Context, userID string) error

// Refresher pulls the user's data from the backend at most once per cooldown
// unless forced.
type Refresher struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	kinds   []models.Kind
	sources map[models.Kind]RefreshFunc
}

// NewRefresher returns a refresher allowing one unforced refresh per cooldown.
func NewRefresher(cooldown time.Duration) *Refresher {
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &Refresher{
		limiter: rate.NewLimiter(rate.Every(cooldown), 1),
		sources: make(map[models.Kind]RefreshFunc),
	}
}

// Register adds the refresh source for kind. Sources run in registration order.
func (r *Refresher) Register(kind models.Kind, fn RefreshFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[kind]; !exists {
		r.kinds = append(r.kinds, kind)
	}
	r.sources[kind] = fn
}

// Refresh runs every source for userID. Unless force is set, a call within
// the cooldown of the previous refresh is skipped and reports false. A forced
// refresh still consumes the cooldown.
func (r *Refresher) Refresh(ctx context.Context, userID string, force bool) (bool, error) {
	allowed := r.limiter.Allow()
	if !allowed && !force {
		metrics.RefreshRuns.WithLabelValues("throttled").Inc()
		return false, nil
	}

	r.mu.Lock()
	kinds := append([]models.Kind(nil), r.kinds...)
	sources := make([]RefreshFunc, 0, len(kinds))
	for _, k := range kinds {
		sources = append(sources, r.sources[k])
	}
	r.mu.Unlock()

	var errs []error
	for i, fn := range sources {
		if err := fn(ctx, userID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("kind", string(kinds[i])).Msg("Refresh failed")
			errs = append(errs, fmt.Errorf("refresh %s: %w", kinds[i], err))
		}
	}
	if len(errs) > 0 {
		metrics.RefreshRuns.WithLabelValues("error").Inc()
		return true, errors.Join(errs...)
	}
	metrics.RefreshRuns.WithLabelValues("ran").Inc()
	return true, nil
}

// Lister lists a user's entities on the backend.
type Lister[E any] interface {
	List(ctx context.Context) ([]E, error)
}

// Identifiable entities can be given a local identity when first seen.
type Identifiable[E any] interface {
	models.Entity[E]
	WithIdentity(clientID, userID string) E
}

// RepositorySource returns a RefreshFunc that folds the server's list into
// repo. Synced local copies take the server version and unseen server
// entities are added as synced. Local entities with unsynced changes are
// left alone, as are local entities the server does not list.
func RepositorySource[E Identifiable[E]](lister Lister[E], repo *entity.Repository[E]) RefreshFunc {
	return func(ctx context.Context, userID string) error {
		items, err := lister.List(ctx)
		if err != nil {
			return err
		}

		seen := make(map[string]struct{}, len(items))
		for _, s := range items {
			serverID := s.ServerKey()
			if serverID == "" {
				continue
			}
			seen[serverID] = struct{}{}

			if local, ok := repo.FindByServerID(serverID); ok {
				if local.Status() == models.SyncStatusSynced {
					repo.Update(local.ClientKey(), func(l E) E {
						return s.AdoptLocal(l).WithSyncStatus(models.SyncStatusSynced)
					})
				}
				continue
			}
			if key := s.ClientKey(); key != "" {
				if _, ok := repo.Get(key); ok {
					// CREATE acknowledged but not yet reconciled locally.
					continue
				}
			}

			clientID := s.ClientKey()
			if clientID == "" {
				clientID = uuid.NewString()
			}
			if err := repo.Put(s.WithIdentity(clientID, userID).WithSyncStatus(models.SyncStatusSynced)); err != nil {
				return err
			}
		}

		return nil
	}
}
