// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

// Package eventbus provides a payload-free in-process signal used to wake the
// sync orchestrator whenever a mutation queue changes.
package eventbus

import (
	"fmt"
	"sync"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/metrics"
)

// Bus fans a signal out to every subscriber. The zero value is ready to use.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func()
	order  []uint64
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that removes it. The returned
// function is safe to call more than once.
func (b *Bus) Subscribe(fn func()) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[uint64]func())
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Emit calls every subscriber synchronously in subscription order. A panicking
// subscriber is logged and skipped; the remaining subscribers still run.
func (b *Bus) Emit() {
	b.mu.RLock()
	fns := make([]func(), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		b.call(fn)
	}
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

func (b *Bus) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.EventBusSubscriberFailures.Inc()
			logging.Error().
				Err(fmt.Errorf("%v", r)).
				Msg("Event bus subscriber panicked")
		}
	}()
	fn()
}
