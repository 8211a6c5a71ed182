// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/session"
)

// Runner starts an orchestrator run.
type Runner interface {
	Run(ctx context.Context) (RunReport, error)
}

// NetworkSource reports connectivity and its transitions.
type NetworkSource interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// SessionSource reports the login state and its transitions.
type SessionSource interface {
	UserID() string
	Authenticated() bool
	Subscribe(fn func(session.Transition)) (unsubscribe func())
}

// SignalSource is the queue change bus.
type SignalSource interface {
	Subscribe(fn func()) (unsubscribe func())
}

type signalKind int

const (
	signalOnline signalKind = iota
	signalLogin
	signalQueue
)

// TriggerConfig configures a Trigger.
type TriggerConfig struct {
	// Debounce collapses bursts of queue signals into one run.
	Debounce time.Duration
}

// Trigger starts orchestrator runs on reconnect, login and queue changes.
// It implements suture.Service.
type Trigger struct {
	runner    Runner
	network   NetworkSource
	session   SessionSource
	bus       SignalSource
	refresher *Refresher
	debounce  time.Duration

	signals chan signalKind
	wg      sync.WaitGroup
}

// NewTrigger returns a trigger. refresher may be nil.
func NewTrigger(cfg TriggerConfig, runner Runner, network NetworkSource, sess SessionSource, bus SignalSource, refresher *Refresher) *Trigger {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Trigger{
		runner:    runner,
		network:   network,
		session:   sess,
		bus:       bus,
		refresher: refresher,
		debounce:  debounce,
		signals:   make(chan signalKind, 64),
	}
}

// String implements fmt.Stringer for suture logging.
func (t *Trigger) String() string {
	return "sync-trigger"
}

// Serve implements suture.Service.
func (t *Trigger) Serve(ctx context.Context) error {
	unsubNet := t.network.Subscribe(func(online bool) {
		if online {
			t.signal(signalOnline)
		}
	})
	defer unsubNet()
	unsubSession := t.session.Subscribe(func(tr session.Transition) {
		if tr.Authenticated {
			t.signal(signalLogin)
		}
	})
	defer unsubSession()
	unsubBus := t.bus.Subscribe(func() { t.signal(signalQueue) })
	defer unsubBus()

	defer t.wg.Wait()

	logging.Info().Dur("debounce", t.debounce).Msg("Sync trigger started")

	// Work queued before a restart is picked up without waiting for a signal.
	if t.ready() {
		t.startRun(ctx, "startup", refreshThrottled)
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Sync trigger stopped")
			return ctx.Err()

		case sig := <-t.signals:
			switch sig {
			case signalOnline:
				if t.session.Authenticated() {
					t.startRun(ctx, "online", refreshThrottled)
				}
			case signalLogin:
				t.startRun(ctx, "login", refreshForced)
			case signalQueue:
				if !t.ready() {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(t.debounce)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(t.debounce)
				}
				timerC = timer.C
			}

		case <-timerC:
			timerC = nil
			t.startRun(ctx, "queue", refreshNone)
		}
	}
}

func (t *Trigger) ready() bool {
	return t.network.Online() && t.session.Authenticated()
}

// signal never blocks the emitter. A full buffer already guarantees a pending
// wake-up.
func (t *Trigger) signal(s signalKind) {
	select {
	case t.signals <- s:
	default:
	}
}

type refreshMode int

const (
	refreshNone refreshMode = iota
	refreshThrottled
	refreshForced
)

// startRun runs the orchestrator in the background and then, if asked,
// refreshes user data. The refresh follows the run so freshly pushed changes
// are not overwritten by an older listing.
func (t *Trigger) startRun(ctx context.Context, reason string, mode refreshMode) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		_, err := t.runner.Run(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrRunInProgress):
			logging.Debug().Str("reason", reason).Msg("Sync run already active; request dropped")
		case errors.Is(err, ErrOffline), errors.Is(err, ErrUnauthenticated):
			logging.Debug().Err(err).Str("reason", reason).Msg("Sync run skipped")
		default:
			logging.Error().Err(err).Str("reason", reason).Msg("Sync run failed")
		}

		if mode != refreshNone {
			t.refresh(ctx, mode == refreshForced)
		}
	}()
}

func (t *Trigger) refresh(ctx context.Context, force bool) {
	if t.refresher == nil || ctx.Err() != nil {
		return
	}
	userID := t.session.UserID()
	if userID == "" {
		return
	}
	if _, err := t.refresher.Refresh(ctx, userID, force); err != nil {
		logging.Warn().Err(err).Msg("User data refresh failed")
	}
}
