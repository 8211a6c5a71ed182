// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package eventbus

import (
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/liftsync/internal/metrics"
)

func TestBus_EmitCallsSubscribersInOrder(t *testing.T) {
	bus := New()
	var calls []int

	bus.Subscribe(func() { calls = append(calls, 1) })
	bus.Subscribe(func() { calls = append(calls, 2) })
	bus.Subscribe(func() { calls = append(calls, 3) })

	bus.Emit()

	if len(calls) != 3 || calls[0] != 1 || calls[1] != 2 || calls[2] != 3 {
		t.Errorf("calls = %v, want [1 2 3]", calls)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	var a, b atomic.Int32

	unsubA := bus.Subscribe(func() { a.Add(1) })
	bus.Subscribe(func() { b.Add(1) })

	bus.Emit()
	unsubA()
	unsubA()
	bus.Emit()

	if a.Load() != 1 {
		t.Errorf("unsubscribed handler called %d times, want 1", a.Load())
	}
	if b.Load() != 2 {
		t.Errorf("remaining handler called %d times, want 2", b.Load())
	}
	if bus.Len() != 1 {
		t.Errorf("Len = %d, want 1", bus.Len())
	}
}

func TestBus_PanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := New()
	var after atomic.Int32
	before := testutil.ToFloat64(metrics.EventBusSubscriberFailures)

	bus.Subscribe(func() { panic("listener bug") })
	bus.Subscribe(func() { after.Add(1) })

	bus.Emit()

	if after.Load() != 1 {
		t.Error("subscriber after a panicking one was not called")
	}
	if got := testutil.ToFloat64(metrics.EventBusSubscriberFailures) - before; got != 1 {
		t.Errorf("failure counter delta = %v, want 1", got)
	}
}

func TestBus_SubscribeDuringEmit(t *testing.T) {
	bus := New()
	var late atomic.Int32

	bus.Subscribe(func() {
		bus.Subscribe(func() { late.Add(1) })
	})

	bus.Emit()
	if late.Load() != 0 {
		t.Error("subscriber added during emit should not see that emit")
	}
	bus.Emit()
	if late.Load() != 1 {
		t.Errorf("late subscriber calls = %d, want 1", late.Load())
	}
}

func TestBus_ZeroValue(t *testing.T) {
	var bus Bus
	var n atomic.Int32
	bus.Subscribe(func() { n.Add(1) })
	bus.Emit()
	if n.Load() != 1 {
		t.Errorf("zero-value bus delivered %d signals, want 1", n.Load())
	}
}
