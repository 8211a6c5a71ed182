// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package websocket

import (
	"context"
	"time"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/models"
	"github.com/tomtom215/liftsync/internal/session"
	"github.com/tomtom215/liftsync/internal/syncer"
)

// Broadcaster sends a typed message to every client.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// CountsFunc returns the current user and their queue counts per kind. An
// empty userID means nobody is logged in.
type CountsFunc func(ctx context.Context) (userID string, counts map[models.Kind]models.QueueCounts, err error)

// QueueCountsData is sent with queue_counts.
type QueueCountsData struct {
	Timestamp string                             `json:"timestamp"`
	UserID    string                             `json:"user_id"`
	Queues    map[models.Kind]models.QueueCounts `json:"queues"`
}

// SyncCompletedData is sent with sync_completed.
type SyncCompletedData struct {
	Timestamp   string              `json:"timestamp"`
	RunID       string              `json:"run_id"`
	Synced      int                 `json:"synced"`
	Quarantined int                 `json:"quarantined"`
	DurationMs  int64               `json:"duration_ms"`
	Kinds       []syncer.KindReport `json:"kinds"`
}

// NetworkData is sent with network.
type NetworkData struct {
	Timestamp string `json:"timestamp"`
	Online    bool   `json:"online"`
}

// SessionData is sent with session.
type SessionData struct {
	Timestamp     string `json:"timestamp"`
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
}

// StatusBroadcaster publishes sync status changes through a Broadcaster.
type StatusBroadcaster struct {
	out    Broadcaster
	counts CountsFunc
	now    func() time.Time
}

// NewStatusBroadcaster returns a broadcaster writing to out.
func NewStatusBroadcaster(out Broadcaster, counts CountsFunc) *StatusBroadcaster {
	return &StatusBroadcaster{out: out, counts: counts, now: time.Now}
}

func (b *StatusBroadcaster) timestamp() string {
	return b.now().UTC().Format(time.RFC3339)
}

// QueueChanged broadcasts fresh queue counts for the current user.
func (b *StatusBroadcaster) QueueChanged() {
	userID, counts, err := b.counts(context.Background())
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read queue counts for broadcast")
		return
	}
	if userID == "" {
		return
	}
	b.out.BroadcastJSON(MessageTypeQueueCounts, QueueCountsData{
		Timestamp: b.timestamp(),
		UserID:    userID,
		Queues:    counts,
	})
}

// SyncCompleted broadcasts a run summary. It matches the orchestrator's
// completion callback.
func (b *StatusBroadcaster) SyncCompleted(report syncer.RunReport) {
	b.out.BroadcastJSON(MessageTypeSyncCompleted, SyncCompletedData{
		Timestamp:   b.timestamp(),
		RunID:       report.RunID,
		Synced:      report.Synced(),
		Quarantined: report.Quarantined(),
		DurationMs:  report.Duration.Milliseconds(),
		Kinds:       report.Kinds,
	})
}

// NetworkChanged broadcasts a connectivity transition.
func (b *StatusBroadcaster) NetworkChanged(online bool) {
	b.out.BroadcastJSON(MessageTypeNetwork, NetworkData{Timestamp: b.timestamp(), Online: online})
}

// SessionChanged broadcasts a login or logout, followed by the new user's
// queue counts.
func (b *StatusBroadcaster) SessionChanged(tr session.Transition) {
	b.out.BroadcastJSON(MessageTypeSession, SessionData{
		Timestamp:     b.timestamp(),
		Authenticated: tr.Authenticated,
		UserID:        tr.UserID,
	})
	if tr.Authenticated {
		b.QueueChanged()
	}
}

// Attach subscribes the broadcaster to its sources and returns a function
// that detaches it.
func (b *StatusBroadcaster) Attach(
	bus interface{ Subscribe(func()) func() },
	network interface{ Subscribe(func(bool)) func() },
	sess interface {
		Subscribe(func(session.Transition)) func()
	},
) (detach func()) {
	unsubs := []func(){
		bus.Subscribe(b.QueueChanged),
		network.Subscribe(b.NetworkChanged),
		sess.Subscribe(b.SessionChanged),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
