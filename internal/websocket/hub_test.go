// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package websocket

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/liftsync/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// startHub runs a hub until the test ends.
func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// createTestClient creates a client without a connection.
func createTestClient(hub *Hub, buffer int) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, buffer)}
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.GetClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.GetClientCount(), want)
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return Message{}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	checks := []struct {
		name  string
		check bool
	}{
		{"clients map", hub.clients != nil},
		{"broadcast channel", hub.broadcast != nil},
		{"Register channel", hub.Register != nil},
		{"Unregister channel", hub.Unregister != nil},
		{"empty clients", hub.GetClientCount() == 0},
	}
	for _, c := range checks {
		if !c.check {
			t.Errorf("%s not initialized", c.name)
		}
	}
}

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	hub := startHub(t)
	a := createTestClient(hub, 8)
	b := createTestClient(hub, 8)

	hub.Register <- a
	hub.Register <- b
	waitForCount(t, hub, 2)

	hub.BroadcastJSON(MessageTypeNetwork, NetworkData{Online: true})
	for _, c := range []*Client{a, b} {
		if msg := receive(t, c); msg.Type != MessageTypeNetwork {
			t.Errorf("type = %q", msg.Type)
		}
	}

	hub.Unregister <- a
	waitForCount(t, hub, 1)
	if _, ok := <-a.send; ok {
		t.Error("unregistered client's channel should be closed")
	}

	// Unregistering twice is harmless.
	hub.Unregister <- a
	waitForCount(t, hub, 1)
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := startHub(t)
	slow := createTestClient(hub, 1)
	hub.Register <- slow
	waitForCount(t, hub, 1)

	hub.BroadcastJSON("a", nil)
	hub.BroadcastJSON("b", nil)

	waitForCount(t, hub, 0)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()

	c := createTestClient(hub, 1)
	hub.Register <- c
	waitForCount(t, hub, 1)

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if hub.GetClientCount() != 0 {
		t.Error("clients left after shutdown")
	}
	if _, ok := <-c.send; ok {
		t.Error("client channel should be closed on shutdown")
	}
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()

	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled = %q", got)
	}
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline = %q", got)
	}
}

func TestHub_BroadcastChannelFull(t *testing.T) {
	hub := NewHub()
	for i := 0; i < cap(hub.broadcast)+10; i++ {
		hub.BroadcastJSON("overflow", i)
	}
	if len(hub.broadcast) != cap(hub.broadcast) {
		t.Errorf("buffer len = %d", len(hub.broadcast))
	}
}

func TestMarshalMessage(t *testing.T) {
	data, err := MarshalMessage(Message{Type: MessageTypeQueueCounts, Data: map[string]int{"pending": 2}})
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.Contains(got, `"type":"queue_counts"`) || !strings.Contains(got, `"pending":2`) {
		t.Errorf("json = %s", got)
	}
}
