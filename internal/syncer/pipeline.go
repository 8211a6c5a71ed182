// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/metrics"
	"github.com/tomtom215/liftsync/internal/models"
	"github.com/tomtom215/liftsync/internal/reconcile"
	"github.com/tomtom215/liftsync/internal/remote"
)

// Delivery outcomes, also used as metric labels.
const (
	OutcomeSynced      = "synced"
	OutcomeTransient   = "transient"
	OutcomeTerminal    = "terminal"
	OutcomeExhausted   = "exhausted"
	OutcomeUnknownType = "unknown_type"
)

// Policy bounds delivery retries.
type Policy struct {
	// MaxRetries is the retryCount at which a mutation is quarantined
	// without another attempt.
	MaxRetries int

	// RetryDelay is the pause after a transient failure.
	RetryDelay time.Duration

	// Sleep waits for d or until ctx is done. Defaults to a timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns 3 retries with a 2 second pause.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, RetryDelay: 2 * time.Second}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxRetries <= 0 {
		p.MaxRetries = def.MaxRetries
	}
	if p.RetryDelay < 0 {
		p.RetryDelay = 0
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MutationQueue is the queue surface a pipeline drains.
type MutationQueue[P any] interface {
	Kind() models.Kind
	GetQueueForUser(ctx context.Context, userID string) ([]models.Mutation[P], error)
	Get(ctx context.Context, queueID string) (models.Mutation[P], bool, error)
	Complete(ctx context.Context, delivered models.Mutation[P]) error
	EnqueueDelete(ctx context.Context, clientID, serverID, userID string) (*models.Mutation[P], error)
	IncrementRetry(ctx context.Context, queueID string) error
	MoveToFailedQueue(ctx context.Context, queueID string) error
}

// EntityLookup resolves a clientId to the local entity.
type EntityLookup[E any] interface {
	Get(clientID string) (E, bool)
}

// Processor drains one kind's queue for a user.
type Processor interface {
	Kind() models.Kind
	Process(ctx context.Context, userID string, online func() bool) KindReport
}

// Pipeline delivers one kind's mutations and reconciles the results.
type Pipeline[P models.Payload[P], E models.Entity[E]] struct {
	queue      MutationQueue[P]
	service    remote.Service[P, E]
	reconciler *reconcile.Reconciler[E]
	entities   EntityLookup[E]
	policy     Policy
}

// NewPipeline wires a queue to its remote service. entities supplies the
// server id for UPDATE and DELETE payloads that were queued before the
// entity's CREATE succeeded.
func NewPipeline[P models.Payload[P], E models.Entity[E]](
	queue MutationQueue[P],
	service remote.Service[P, E],
	reconciler *reconcile.Reconciler[E],
	entities EntityLookup[E],
	policy Policy,
) *Pipeline[P, E] {
	return &Pipeline[P, E]{
		queue:      queue,
		service:    service,
		reconciler: reconciler,
		entities:   entities,
		policy:     policy.withDefaults(),
	}
}

// Kind implements Processor.
func (p *Pipeline[P, E]) Kind() models.Kind { return p.queue.Kind() }

// Process implements Processor. It walks a snapshot of the user's queue and
// re-reads each record before delivering it, so records dequeued or merged
// since the snapshot are handled as they are now. It stops early when ctx is
// done or the device goes offline.
func (p *Pipeline[P, E]) Process(ctx context.Context, userID string, online func() bool) KindReport {
	report := KindReport{Kind: p.Kind()}
	log := logging.Ctx(ctx).With().Str("kind", string(p.Kind())).Logger()

	snapshot, err := p.queue.GetQueueForUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read mutation queue")
		report.Errors++
		return report
	}
	report.Queued = len(snapshot)

	for _, snap := range snapshot {
		if ctx.Err() != nil || (online != nil && !online()) {
			report.Interrupted = true
			break
		}

		m, ok, err := p.queue.Get(ctx, snap.QueueID)
		if err != nil {
			log.Error().Err(err).Str("queue_id", snap.QueueID).Msg("Failed to re-read mutation")
			report.Errors++
			continue
		}
		if !ok {
			report.Skipped++
			continue
		}

		p.processOne(ctx, &log, m, &report)
	}
	return report
}

func (p *Pipeline[P, E]) processOne(ctx context.Context, log *zerolog.Logger, m models.Mutation[P], report *KindReport) {
	kind := string(p.Kind())
	mlog := log.With().
		Str("queue_id", m.QueueID).
		Str("client_id", m.ClientID).
		Str("type", string(m.Type)).
		Int("retry_count", m.RetryCount).
		Logger()

	if m.RetryCount >= p.policy.MaxRetries {
		mlog.Warn().Int("max_retries", p.policy.MaxRetries).Msg("Retry budget exhausted; quarantining mutation")
		p.quarantine(ctx, &mlog, m)
		metrics.RecordMutationOutcome(kind, string(m.Type), OutcomeExhausted)
		report.Exhausted++
		return
	}

	if !m.Type.Valid() {
		mlog.Warn().Msg("Unknown mutation type; leaving it queued")
		metrics.RecordMutationOutcome(kind, string(m.Type), OutcomeUnknownType)
		report.Unknown++
		return
	}

	report.Attempted++
	if m.Type != models.MutationDelete {
		p.reconciler.MarkSyncing(m.ClientID)
	}

	ack, err := p.deliver(ctx, m)
	switch {
	case err == nil:
		p.succeed(ctx, &mlog, m, ack)
		metrics.RecordMutationOutcome(kind, string(m.Type), OutcomeSynced)
		report.Synced++

	case remote.IsTerminal(err):
		mlog.Warn().Err(err).Msg("Terminal delivery error; quarantining mutation")
		p.quarantine(ctx, &mlog, m)
		metrics.RecordMutationOutcome(kind, string(m.Type), OutcomeTerminal)
		report.Terminal++

	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// Shutdown, not a delivery failure. The record stays as it was.
		if m.Type != models.MutationDelete {
			p.reconciler.MarkPending(m.ClientID)
		}
		report.Interrupted = true

	default:
		mlog.Info().Err(err).Dur("retry_delay", p.policy.RetryDelay).Msg("Transient delivery error; will retry")
		if m.Type != models.MutationDelete {
			p.reconciler.MarkPending(m.ClientID)
		}
		if rerr := p.queue.IncrementRetry(ctx, m.QueueID); rerr != nil {
			mlog.Error().Err(rerr).Msg("Failed to record retry")
			report.Errors++
		}
		metrics.RecordMutationOutcome(kind, string(m.Type), OutcomeTransient)
		report.Transient++
		_ = p.policy.Sleep(ctx, p.policy.RetryDelay) //nolint:errcheck // a cancelled wait ends the run via ctx
	}
}

func (p *Pipeline[P, E]) deliver(ctx context.Context, m models.Mutation[P]) (models.Ack[E], error) {
	switch m.Type {
	case models.MutationCreate:
		return p.service.Create(ctx, m.Payload)
	case models.MutationUpdate:
		id := p.serverID(m)
		if id == "" {
			return models.Ack[E]{}, fmt.Errorf("%w: update for %s has no server id", remote.ErrInvalidMutation, m.ClientID)
		}
		return p.service.Update(ctx, id, m.Payload)
	case models.MutationDelete:
		id := p.serverID(m)
		if id == "" {
			return models.Ack[E]{}, fmt.Errorf("%w: delete for %s has no server id", remote.ErrInvalidMutation, m.ClientID)
		}
		return models.Ack[E]{}, p.service.Delete(ctx, id)
	}
	return models.Ack[E]{}, fmt.Errorf("%w: type %q", remote.ErrInvalidMutation, m.Type)
}

// serverID prefers the id carried in the payload and falls back to the local
// entity, which learns its id when its CREATE is reconciled.
func (p *Pipeline[P, E]) serverID(m models.Mutation[P]) string {
	if id := m.Payload.ServerKey(); id != "" {
		return id
	}
	if p.entities != nil {
		if e, ok := p.entities.Get(m.ClientID); ok {
			return e.ServerKey()
		}
	}
	return ""
}

func (p *Pipeline[P, E]) succeed(ctx context.Context, log *zerolog.Logger, m models.Mutation[P], ack models.Ack[E]) {
	// A record whose revision moved on during delivery holds newer local data.
	// The entity only learns its server id and stays pending for that data.
	current, stillQueued, err := p.queue.Get(ctx, m.QueueID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to re-read delivered mutation")
	}
	superseded := stillQueued && current.Revision != m.Revision

	// The entity was deleted locally while its CREATE was in flight. The
	// delete cancelled the queued CREATE, so the server copy needs a DELETE.
	if m.Type == models.MutationCreate && err == nil && !stillQueued && p.deletedLocally(m.ClientID) {
		p.deleteCreated(ctx, log, m, ackServerID(ack))
		return
	}

	if m.Type != models.MutationDelete {
		switch {
		case superseded:
			if id := ackServerID(ack); id != "" {
				p.reconciler.ReconcileID(m.ClientID, id)
			}
			p.reconciler.MarkPending(m.ClientID)
		case ack.Entity != nil:
			p.reconciler.Reconcile(m.ClientID, *ack.Entity)
		case ack.ServerID != "":
			p.reconciler.ReconcileID(m.ClientID, ack.ServerID)
		default:
			p.reconciler.MarkSynced(m.ClientID)
		}
	}

	if err := p.queue.Complete(ctx, m); err != nil {
		log.Error().Err(err).Msg("Failed to complete delivered mutation")
		return
	}
	log.Debug().Bool("superseded", superseded).Msg("Mutation delivered")
}

func (p *Pipeline[P, E]) deletedLocally(clientID string) bool {
	if p.entities == nil {
		return false
	}
	_, ok := p.entities.Get(clientID)
	return !ok
}

func (p *Pipeline[P, E]) deleteCreated(ctx context.Context, log *zerolog.Logger, m models.Mutation[P], serverID string) {
	if serverID == "" {
		log.Warn().Msg("Entity deleted during its create but the server returned no id; nothing to delete")
		return
	}
	if _, err := p.queue.EnqueueDelete(ctx, m.ClientID, serverID, m.UserID); err != nil {
		log.Error().Err(err).Str("server_id", serverID).Msg("Failed to queue delete for entity removed during its create")
		return
	}
	log.Info().Str("server_id", serverID).Msg("Entity deleted during its create; delete queued")
}

func (p *Pipeline[P, E]) quarantine(ctx context.Context, log *zerolog.Logger, m models.Mutation[P]) {
	p.reconciler.MarkFailed(m.ClientID)
	if err := p.queue.MoveToFailedQueue(ctx, m.QueueID); err != nil {
		log.Error().Err(err).Msg("Failed to quarantine mutation")
	}
}

func ackServerID[E models.Entity[E]](ack models.Ack[E]) string {
	if ack.ServerID != "" {
		return ack.ServerID
	}
	if ack.Entity != nil {
		return (*ack.Entity).ServerKey()
	}
	return ""
}
