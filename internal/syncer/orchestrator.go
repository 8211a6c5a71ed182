// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/metrics"
	"github.com/tomtom215/liftsync/internal/models"
)

var (
	// ErrRunInProgress is returned when a run is requested while one is active.
	ErrRunInProgress = errors.New("sync run already in progress")

	// ErrOffline is returned when a run is requested while offline.
	ErrOffline = errors.New("device is offline")

	// ErrUnauthenticated is returned when no user is logged in.
	ErrUnauthenticated = errors.New("no authenticated user")
)

// AuthState reports the current user.
type AuthState interface {
	UserID() string
}

// NetworkState reports connectivity.
type NetworkState interface {
	Online() bool
}

// KindReport summarizes one pipeline's pass.
type KindReport struct {
	Kind        models.Kind `json:"kind"`
	Queued      int         `json:"queued"`
	Attempted   int         `json:"attempted"`
	Synced      int         `json:"synced"`
	Transient   int         `json:"transient"`
	Terminal    int         `json:"terminal"`
	Exhausted   int         `json:"exhausted"`
	Unknown     int         `json:"unknown"`
	Skipped     int         `json:"skipped"`
	Errors      int         `json:"errors"`
	Interrupted bool        `json:"interrupted,omitempty"`
}

// RunReport summarizes one orchestrator run.
type RunReport struct {
	RunID     string        `json:"runId"`
	UserID    string        `json:"userId"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Kinds     []KindReport  `json:"kinds"`
}

// Synced returns the number of mutations delivered in the run.
func (r RunReport) Synced() int {
	n := 0
	for _, k := range r.Kinds {
		n += k.Synced
	}
	return n
}

// Quarantined returns the number of mutations moved to the failed queue.
func (r RunReport) Quarantined() int {
	n := 0
	for _, k := range r.Kinds {
		n += k.Terminal + k.Exhausted
	}
	return n
}

// Orchestrator runs every registered pipeline for the current user.
type Orchestrator struct {
	processors []Processor
	auth       AuthState
	network    NetworkState

	running atomic.Bool

	mu          sync.RWMutex
	lastRun     RunReport
	onCompleted func(RunReport)
}

// NewOrchestrator returns an orchestrator that drains processors in the
// order given. Workouts, templates, then the user profile is the order the
// daemon registers.
func NewOrchestrator(auth AuthState, network NetworkState, processors ...Processor) *Orchestrator {
	return &Orchestrator{
		processors: processors,
		auth:       auth,
		network:    network,
	}
}

// SetOnRunCompleted sets the callback invoked after every completed run.
func (o *Orchestrator) SetOnRunCompleted(fn func(RunReport)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onCompleted = fn
}

// Running reports whether a run is in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// LastRun returns the report of the most recent completed run.
func (o *Orchestrator) LastRun() RunReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastRun
}

// Run drains every queue for the current user. It returns ErrRunInProgress
// without doing anything when another run is active, and ErrUnauthenticated
// or ErrOffline when there is nothing it may do.
func (o *Orchestrator) Run(ctx context.Context) (RunReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		metrics.RecordSyncSkipped("in_progress")
		return RunReport{}, ErrRunInProgress
	}
	defer o.running.Store(false)

	userID := o.auth.UserID()
	if userID == "" {
		metrics.RecordSyncSkipped("unauthenticated")
		return RunReport{}, ErrUnauthenticated
	}
	if !o.network.Online() {
		metrics.RecordSyncSkipped("offline")
		return RunReport{}, ErrOffline
	}

	metrics.SetSyncInProgress(true)
	defer metrics.SetSyncInProgress(false)

	report := RunReport{
		RunID:     logging.GenerateRunID(),
		UserID:    userID,
		StartedAt: time.Now(),
	}
	ctx = logging.ContextWithRunID(ctx, report.RunID)
	log := logging.Ctx(ctx)
	log.Debug().Str("user_id", logging.SanitizeUserID(userID)).Msg("Sync run started")

	for _, p := range o.processors {
		if ctx.Err() != nil {
			break
		}
		kr := p.Process(ctx, userID, o.network.Online)
		report.Kinds = append(report.Kinds, kr)
		if kr.Interrupted {
			break
		}
	}

	report.Duration = time.Since(report.StartedAt)
	metrics.RecordSyncRun(report.Duration)

	log.Info().
		Int("synced", report.Synced()).
		Int("quarantined", report.Quarantined()).
		Dur("duration", report.Duration).
		Msg("Sync run completed")

	o.mu.Lock()
	o.lastRun = report
	callback := o.onCompleted
	o.mu.Unlock()

	if callback != nil {
		callback(report)
	}
	return report, nil
}
