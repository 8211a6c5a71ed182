// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/liftsync/internal/eventbus"
	"github.com/tomtom215/liftsync/internal/models"
	"github.com/tomtom215/liftsync/internal/netstatus"
	"github.com/tomtom215/liftsync/internal/session"
	"github.com/tomtom215/liftsync/internal/syncer"
)

// recordingBroadcaster captures broadcasts in order.
type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recordingBroadcaster) BroadcastJSON(messageType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Message{Type: messageType, Data: data})
}

func (r *recordingBroadcaster) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Type
	}
	return out
}

func fixedCounts(userID string) CountsFunc {
	return func(context.Context) (string, map[models.Kind]models.QueueCounts, error) {
		return userID, map[models.Kind]models.QueueCounts{
			models.KindWorkout: {Pending: 2, Failed: 1},
		}, nil
	}
}

func TestStatusBroadcaster_QueueChanged(t *testing.T) {
	out := &recordingBroadcaster{}
	b := NewStatusBroadcaster(out, fixedCounts("u1"))
	b.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	b.QueueChanged()

	if len(out.msgs) != 1 {
		t.Fatalf("msgs = %+v", out.msgs)
	}
	data, ok := out.msgs[0].Data.(QueueCountsData)
	if !ok {
		t.Fatalf("data = %T", out.msgs[0].Data)
	}
	if data.UserID != "u1" || data.Queues[models.KindWorkout].Pending != 2 || data.Timestamp != "2026-05-01T12:00:00Z" {
		t.Errorf("data = %+v", data)
	}
}

func TestStatusBroadcaster_SkipsWithoutUserOrOnError(t *testing.T) {
	out := &recordingBroadcaster{}
	NewStatusBroadcaster(out, fixedCounts("")).QueueChanged()

	failing := func(context.Context) (string, map[models.Kind]models.QueueCounts, error) {
		return "", nil, errors.New("storage closed")
	}
	NewStatusBroadcaster(out, failing).QueueChanged()

	if len(out.msgs) != 0 {
		t.Errorf("msgs = %+v, want none", out.msgs)
	}
}

func TestStatusBroadcaster_SyncCompleted(t *testing.T) {
	out := &recordingBroadcaster{}
	b := NewStatusBroadcaster(out, fixedCounts("u1"))

	b.SyncCompleted(syncer.RunReport{
		RunID:    "run1",
		Duration: 1500 * time.Millisecond,
		Kinds: []syncer.KindReport{
			{Kind: models.KindWorkout, Synced: 2, Terminal: 1},
			{Kind: models.KindTemplate, Synced: 1, Exhausted: 1},
		},
	})

	data := out.msgs[0].Data.(SyncCompletedData)
	if data.RunID != "run1" || data.Synced != 3 || data.Quarantined != 2 || data.DurationMs != 1500 {
		t.Errorf("data = %+v", data)
	}
}

func TestStatusBroadcaster_Attach(t *testing.T) {
	out := &recordingBroadcaster{}
	b := NewStatusBroadcaster(out, fixedCounts("u1"))

	bus := eventbus.New()
	monitor := netstatus.NewMonitor(false)
	secret := "status-test-secret-with-32-characters"
	sess, err := session.New(secret)
	if err != nil {
		t.Fatal(err)
	}

	detach := b.Attach(bus, monitor, sess)

	bus.Emit()
	monitor.SetOnline(true)
	token, _ := session.IssueToken(secret, "u1", time.Hour)
	if _, err := sess.Login(token); err != nil {
		t.Fatal(err)
	}

	want := []string{MessageTypeQueueCounts, MessageTypeNetwork, MessageTypeSession, MessageTypeQueueCounts}
	got := out.types()
	if len(got) != len(want) {
		t.Fatalf("types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("types[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	detach()
	bus.Emit()
	if len(out.types()) != len(want) {
		t.Error("broadcast after detach")
	}
}
