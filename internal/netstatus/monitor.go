// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

// Package netstatus tracks whether the remote backend is reachable.
//
// The Monitor holds the current online flag and notifies subscribers only on
// change. It can be driven externally (the daemon's PUT /api/v1/network) or
// by a Prober polling the backend's health endpoint.
package netstatus

import (
	"sync"

	"github.com/tomtom215/liftsync/internal/logging"
)

// Monitor is the network status provider.
type Monitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(online bool)
	order  []int
}

// NewMonitor returns a monitor with the given initial state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online, subs: make(map[int]func(bool))}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline updates the state and notifies subscribers when it changed.
// It reports whether a transition happened.
func (m *Monitor) SetOnline(online bool) bool {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.order))
	for _, id := range m.order {
		fns = append(fns, m.subs[id])
	}
	m.mu.Unlock()

	logging.Info().Bool("online", online).Msg("Network status changed")
	for _, fn := range fns {
		fn(online)
	}
	return true
}

// Subscribe registers fn for state transitions.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.order = append(m.order, id)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			for i, v := range m.order {
				if v == id {
					m.order = append(m.order[:i], m.order[i+1:]...)
					break
				}
			}
		})
	}
}
