// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

// Package entity holds the local entity collections and the optimistic
// mutation facade that feeds the queues.
//
// A Repository is the single authoritative collection for one kind:
// optimistic writes and reconciled server state share it and differ only by
// sync status.
package entity

import (
	"errors"
	"sync"

	"github.com/tomtom215/liftsync/internal/models"
)

var (
	// ErrNotFound is returned when no entity has the requested clientId.
	ErrNotFound = errors.New("entity not found")

	// ErrMissingClientID is returned when storing an entity without a clientId.
	ErrMissingClientID = errors.New("entity has no clientId")

	// ErrForbidden is returned when a user touches another user's entity.
	ErrForbidden = errors.New("entity belongs to another user")
)

// Repository is an insertion-ordered in-memory collection keyed by clientId.
type Repository[E models.Entity[E]] struct {
	mu    sync.RWMutex
	items map[string]E
	order []string
}

// NewRepository returns an empty repository.
func NewRepository[E models.Entity[E]]() *Repository[E] {
	return &Repository[E]{items: make(map[string]E)}
}

// Get returns the entity with clientID.
func (r *Repository[E]) Get(clientID string) (E, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[clientID]
	return e, ok
}

// FindByServerID returns the entity whose server id is id.
func (r *Repository[E]) FindByServerID(id string) (E, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id != "" {
		for _, key := range r.order {
			if e := r.items[key]; e.ServerKey() == id {
				return e, true
			}
		}
	}
	var zero E
	return zero, false
}

// Put inserts e or replaces the entity with the same clientId in place.
func (r *Repository[E]) Put(e E) error {
	key := e.ClientKey()
	if key == "" {
		return ErrMissingClientID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[key]; !exists {
		r.order = append(r.order, key)
	}
	r.items[key] = e
	return nil
}

// Update replaces the entity with clientID by fn(current). It reports false
// and leaves the collection untouched when clientID is unknown.
func (r *Repository[E]) Update(clientID string, fn func(E) E) (E, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[clientID]
	if !ok {
		var zero E
		return zero, false
	}
	next := fn(current)
	r.items[clientID] = next
	return next, true
}

// Remove deletes the entity with clientID and reports whether it existed.
func (r *Repository[E]) Remove(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[clientID]; !ok {
		return false
	}
	delete(r.items, clientID)
	for i, key := range r.order {
		if key == clientID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns every entity in insertion order.
func (r *Repository[E]) List() []E {
	return r.filter(func(E) bool { return true })
}

// ListForUser returns the entities owned by userID in insertion order.
func (r *Repository[E]) ListForUser(userID string) []E {
	return r.filter(func(e E) bool { return e.Owner() == userID })
}

// Len returns the number of stored entities.
func (r *Repository[E]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Repository[E]) filter(keep func(E) bool) []E {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]E, 0, len(r.order))
	for _, key := range r.order {
		if e := r.items[key]; keep(e) {
			out = append(out, e)
		}
	}
	return out
}
