// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

// Package queue implements the durable per-kind mutation queues.
//
// Each kind (workout, template, user) owns a pending list and a failed list,
// both persisted as a whole JSON array through a storage.KV. Enqueue
// operations collapse intents for the same clientId so that at most one
// CREATE and at most one UPDATE exist per clientId, and a DELETE never
// coexists with either:
//
//	queued      enqueueCreate   enqueueUpdate     enqueueDelete
//	(none)      append CREATE   append UPDATE     append DELETE if serverId
//	CREATE      merge fields    merge fields      remove CREATE, return nil
//	UPDATE      conflict        replace snapshot  remove UPDATE, append DELETE
//	DELETE      conflict        conflict          return existing DELETE
//
// Every operation that changes persisted state signals the event bus exactly
// once, after the write and after the queue lock is released.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/metrics"
	"github.com/tomtom215/liftsync/internal/models"
	"github.com/tomtom215/liftsync/internal/storage"
)

var (
	// ErrNotFound is returned when no record has the requested queueId.
	ErrNotFound = errors.New("queue entry not found")

	// ErrConflictingMutation is returned when an enqueue would break the
	// one-record-per-clientId rule, e.g. a CREATE for a clientId that already
	// has a DELETE queued.
	ErrConflictingMutation = errors.New("conflicting mutation already queued")

	// ErrMissingClientID is returned for payloads without a clientId.
	ErrMissingClientID = errors.New("mutation payload has no clientId")

	// ErrMissingUserID is returned when no owner is supplied.
	ErrMissingUserID = errors.New("mutation has no userId")
)

// Enqueue decisions, used as metric labels.
const (
	decisionAppended  = "appended"
	decisionMerged    = "merged"
	decisionReplaced  = "replaced"
	decisionCancelled = "cancelled"
	decisionDropped   = "dropped"
	decisionUnchanged = "unchanged"
)

// Emitter is the event bus surface the queue signals on.
type Emitter interface {
	Emit()
}

// Option configures a Queue.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock overrides the clock used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides queueId generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// Queue is the mutation queue for one entity kind.
type Queue[P models.Payload[P]] struct {
	kind    models.Kind
	pending ListStore[P]
	failed  ListStore[P]
	bus     Emitter
	opts    options

	// mu serializes every read-modify-write of both lists.
	mu sync.Mutex
}

// New creates a queue for kind persisted in kv. bus may be nil.
func New[P models.Payload[P]](kind models.Kind, kv storage.KV, bus Emitter, opts ...Option) *Queue[P] {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Queue[P]{
		kind:    kind,
		pending: NewListStore[P](kv, PendingKey(kind)),
		failed:  NewListStore[P](kv, FailedKey(kind)),
		bus:     bus,
		opts:    o,
	}
}

// NewWorkoutQueue returns the workout queue.
func NewWorkoutQueue(kv storage.KV, bus Emitter, opts ...Option) *Queue[models.WorkoutPayload] {
	return New[models.WorkoutPayload](models.KindWorkout, kv, bus, opts...)
}

// NewTemplateQueue returns the workout template queue.
func NewTemplateQueue(kv storage.KV, bus Emitter, opts ...Option) *Queue[models.TemplatePayload] {
	return New[models.TemplatePayload](models.KindTemplate, kv, bus, opts...)
}

// NewUserQueue returns the user profile queue.
func NewUserQueue(kv storage.KV, bus Emitter, opts ...Option) *Queue[models.UserPayload] {
	return New[models.UserPayload](models.KindUser, kv, bus, opts...)
}

// Kind returns the entity kind this queue holds.
func (q *Queue[P]) Kind() models.Kind { return q.kind }

// EnqueueCreate queues a CREATE for payload, or merges payload into the
// CREATE already queued for the same clientId.
func (q *Queue[P]) EnqueueCreate(ctx context.Context, payload P, userID string) (models.Mutation[P], error) {
	clientID := payload.ClientKey()
	if err := validateIdentity(clientID, userID); err != nil {
		return models.Mutation[P]{}, err
	}

	var result models.Mutation[P]
	decision := decisionAppended
	err := q.modifyPending(ctx, func(list []models.Mutation[P]) ([]models.Mutation[P], bool, error) {
		if i := indexOf(list, clientID, models.MutationCreate); i >= 0 {
			list[i].Payload = list[i].Payload.Merge(payload)
			list[i].Revision++
			result = list[i]
			decision = decisionMerged
			return list, true, nil
		}
		if i := indexOf(list, clientID, ""); i >= 0 {
			return nil, false, fmt.Errorf("%w: %s for %s", ErrConflictingMutation, list[i].Type, clientID)
		}
		result = q.newMutation(models.MutationCreate, clientID, payload, userID)
		return append(list, result), true, nil
	})
	if err != nil {
		return models.Mutation[P]{}, err
	}

	q.recordEnqueue(models.MutationCreate, decision)
	return result, nil
}

// EnqueueUpdate queues a full-snapshot UPDATE. A queued CREATE absorbs the
// update; a queued UPDATE is replaced wholesale with a fresh createdAt.
func (q *Queue[P]) EnqueueUpdate(ctx context.Context, payload P, userID string) (models.Mutation[P], error) {
	clientID := payload.ClientKey()
	if err := validateIdentity(clientID, userID); err != nil {
		return models.Mutation[P]{}, err
	}

	var result models.Mutation[P]
	decision := decisionAppended
	err := q.modifyPending(ctx, func(list []models.Mutation[P]) ([]models.Mutation[P], bool, error) {
		if i := indexOf(list, clientID, models.MutationCreate); i >= 0 {
			list[i].Payload = list[i].Payload.Merge(payload)
			list[i].Revision++
			result = list[i]
			decision = decisionMerged
			return list, true, nil
		}
		if i := indexOf(list, clientID, models.MutationUpdate); i >= 0 {
			list[i].Payload = payload
			list[i].CreatedAt = q.opts.now()
			list[i].RetryCount = 0
			list[i].Revision++
			result = list[i]
			decision = decisionReplaced
			return list, true, nil
		}
		if indexOf(list, clientID, models.MutationDelete) >= 0 {
			return nil, false, fmt.Errorf("%w: DELETE for %s", ErrConflictingMutation, clientID)
		}
		result = q.newMutation(models.MutationUpdate, clientID, payload, userID)
		return append(list, result), true, nil
	})
	if err != nil {
		return models.Mutation[P]{}, err
	}

	q.recordEnqueue(models.MutationUpdate, decision)
	return result, nil
}

// EnqueueDelete queues a DELETE for an entity. It returns nil when nothing
// needs to reach the server: the entity's CREATE was still queued (and is
// now cancelled), or the entity has no serverID.
func (q *Queue[P]) EnqueueDelete(ctx context.Context, clientID, serverID, userID string) (*models.Mutation[P], error) {
	if err := validateIdentity(clientID, userID); err != nil {
		return nil, err
	}

	var result *models.Mutation[P]
	decision := decisionAppended
	err := q.modifyPending(ctx, func(list []models.Mutation[P]) ([]models.Mutation[P], bool, error) {
		if i := indexOf(list, clientID, models.MutationCreate); i >= 0 {
			decision = decisionCancelled
			return removeAt(list, i), true, nil
		}

		changed := false
		if i := indexOf(list, clientID, models.MutationUpdate); i >= 0 {
			list = removeAt(list, i)
			changed = true
		}

		if i := indexOf(list, clientID, models.MutationDelete); i >= 0 {
			existing := list[i]
			result = &existing
			decision = decisionUnchanged
			return list, changed, nil
		}

		if serverID == "" {
			decision = decisionDropped
			return list, changed, nil
		}

		var zero P
		m := q.newMutation(models.MutationDelete, clientID, zero.ForDelete(clientID, serverID), userID)
		result = &m
		return append(list, m), true, nil
	})
	if err != nil {
		return nil, err
	}

	if decision == decisionDropped {
		logging.Warn().
			Str("kind", string(q.kind)).
			Str("client_id", clientID).
			Str("user_id", userID).
			Msg("Delete requested for entity without server id and no queued create; nothing queued")
	}
	q.recordEnqueue(models.MutationDelete, decision)
	return result, nil
}

// Dequeue removes the record with queueID. Removing a missing record is a
// no-op.
func (q *Queue[P]) Dequeue(ctx context.Context, queueID string) error {
	return q.modifyPending(ctx, func(list []models.Mutation[P]) ([]models.Mutation[P], bool, error) {
		i := indexByQueueID(list, queueID)
		if i < 0 {
			return list, false, nil
		}
		return removeAt(list, i), true, nil
	})
}

// Complete is the success path after delivering delivered. It dequeues the
// record unless it was merged or replaced during delivery. A CREATE that
// absorbed newer data becomes an UPDATE carrying that data, because the
// entity now exists on the server.
func (q *Queue[P]) Complete(ctx context.Context, delivered models.Mutation[P]) error {
	return q.modifyPending(ctx, func(list []models.Mutation[P]) ([]models.Mutation[P], bool, error) {
		i := indexByQueueID(list, delivered.QueueID)
		if i < 0 {
			return list, false, nil
		}
		if list[i].Revision == delivered.Revision {
			return removeAt(list, i), true, nil
		}
		converted := false
		if list[i].Type == models.MutationCreate && delivered.Type == models.MutationCreate {
			list[i].Type = models.MutationUpdate
			list[i].RetryCount = 0
			list[i].CreatedAt = q.opts.now()
			converted = true
		}
		logging.Debug().
			Str("kind", string(q.kind)).
			Str("queue_id", delivered.QueueID).
			Int("delivered_revision", delivered.Revision).
			Int("queued_revision", list[i].Revision).
			Msg("Newer local data queued during delivery; keeping record")
		return list, converted, nil
	})
}

// IncrementRetry bumps retryCount on the record with queueID.
func (q *Queue[P]) IncrementRetry(ctx context.Context, queueID string) error {
	return q.modifyPending(ctx, func(list []models.Mutation[P]) ([]models.Mutation[P], bool, error) {
		i := indexByQueueID(list, queueID)
		if i < 0 {
			return nil, false, fmt.Errorf("%w: %s", ErrNotFound, queueID)
		}
		list[i].RetryCount++
		return list, true, nil
	})
}

// MoveToFailedQueue removes the record from the pending list and appends it,
// with retryCount incremented, to the failed list. The failed list is written
// first so a crash in between leaves a duplicate rather than losing the record.
func (q *Queue[P]) MoveToFailedQueue(ctx context.Context, queueID string) error {
	q.mu.Lock()
	err := q.moveToFailedLocked(ctx, queueID)
	q.mu.Unlock()
	if err != nil {
		return err
	}

	metrics.QueueQuarantined.WithLabelValues(string(q.kind)).Inc()
	q.emit()
	return nil
}

func (q *Queue[P]) moveToFailedLocked(ctx context.Context, queueID string) error {
	pending, err := q.pending.Load(ctx)
	if err != nil {
		return err
	}
	i := indexByQueueID(pending, queueID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, queueID)
	}
	m := pending[i]
	m.RetryCount++

	failed, err := q.failed.Load(ctx)
	if err != nil {
		return err
	}
	failed = append(failed, m)
	if err := q.failed.Save(ctx, failed); err != nil {
		return err
	}

	pending = removeAt(pending, i)
	if err := q.pending.Save(ctx, pending); err != nil {
		return err
	}
	q.updateDepth(len(pending), len(failed))
	return nil
}

// RetryFailed moves a quarantined record back to the pending list with its
// retry budget reset. If newer work for the same clientId is already pending,
// a failed CREATE absorbs it (the entity still has no server identity);
// any other failed record is superseded and discarded.
func (q *Queue[P]) RetryFailed(ctx context.Context, queueID string) (models.Mutation[P], error) {
	q.mu.Lock()
	result, err := q.retryFailedLocked(ctx, queueID)
	q.mu.Unlock()
	if err != nil {
		return models.Mutation[P]{}, err
	}
	q.emit()
	return result, nil
}

func (q *Queue[P]) retryFailedLocked(ctx context.Context, queueID string) (models.Mutation[P], error) {
	failed, err := q.failed.Load(ctx)
	if err != nil {
		return models.Mutation[P]{}, err
	}
	fi := indexByQueueID(failed, queueID)
	if fi < 0 {
		return models.Mutation[P]{}, fmt.Errorf("%w: %s", ErrNotFound, queueID)
	}
	m := failed[fi]
	m.RetryCount = 0

	pending, err := q.pending.Load(ctx)
	if err != nil {
		return models.Mutation[P]{}, err
	}

	result := m
	if pi := indexOf(pending, m.ClientID, ""); pi >= 0 {
		if m.Type == models.MutationCreate {
			m.Payload = m.Payload.Merge(pending[pi].Payload)
			pending[pi] = m
			result = m
		} else {
			result = pending[pi]
		}
	} else {
		pending = append(pending, m)
	}

	if err := q.pending.Save(ctx, pending); err != nil {
		return models.Mutation[P]{}, err
	}
	failed = removeAt(failed, fi)
	if err := q.failed.Save(ctx, failed); err != nil {
		return models.Mutation[P]{}, err
	}
	q.updateDepth(len(pending), len(failed))
	return result, nil
}

// ClearFailed drops every failed record owned by userID.
func (q *Queue[P]) ClearFailed(ctx context.Context, userID string) (int, error) {
	q.mu.Lock()
	removed, err := q.clearLocked(ctx, q.failed, userID)
	q.mu.Unlock()
	if err != nil || removed == 0 {
		return removed, err
	}
	q.emit()
	return removed, nil
}

// ClearUser drops every pending and failed record owned by userID.
func (q *Queue[P]) ClearUser(ctx context.Context, userID string) (int, error) {
	q.mu.Lock()
	removedPending, err := q.clearLocked(ctx, q.pending, userID)
	if err != nil {
		q.mu.Unlock()
		return 0, err
	}
	removedFailed, err := q.clearLocked(ctx, q.failed, userID)
	q.mu.Unlock()

	removed := removedPending + removedFailed
	if removed > 0 {
		q.emit()
	}
	return removed, err
}

func (q *Queue[P]) clearLocked(ctx context.Context, store ListStore[P], userID string) (int, error) {
	list, err := store.Load(ctx)
	if err != nil {
		return 0, err
	}
	kept := list[:0]
	for _, m := range list {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	removed := len(list) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, store.Save(ctx, kept)
}

// Get returns the pending record with queueID.
func (q *Queue[P]) Get(ctx context.Context, queueID string) (models.Mutation[P], bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list, err := q.pending.Load(ctx)
	if err != nil {
		return models.Mutation[P]{}, false, err
	}
	if i := indexByQueueID(list, queueID); i >= 0 {
		return list[i], true, nil
	}
	return models.Mutation[P]{}, false, nil
}

// GetQueueForUser returns the pending records owned by userID in FIFO order.
func (q *Queue[P]) GetQueueForUser(ctx context.Context, userID string) ([]models.Mutation[P], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return filterByUser(ctx, q.pending, userID)
}

// GetFailedForUser returns the failed records owned by userID.
func (q *Queue[P]) GetFailedForUser(ctx context.Context, userID string) ([]models.Mutation[P], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return filterByUser(ctx, q.failed, userID)
}

// GetQueueCounts returns pending and failed counts for userID.
func (q *Queue[P]) GetQueueCounts(ctx context.Context, userID string) (models.QueueCounts, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := filterByUser(ctx, q.pending, userID)
	if err != nil {
		return models.QueueCounts{}, err
	}
	failed, err := filterByUser(ctx, q.failed, userID)
	if err != nil {
		return models.QueueCounts{}, err
	}
	return models.QueueCounts{Pending: len(pending), Failed: len(failed)}, nil
}

// modifyPending runs fn over the pending list under the queue lock, saves the
// result when fn reports a change, then emits outside the lock.
func (q *Queue[P]) modifyPending(ctx context.Context, fn func([]models.Mutation[P]) ([]models.Mutation[P], bool, error)) error {
	q.mu.Lock()
	list, err := q.pending.Load(ctx)
	if err != nil {
		q.mu.Unlock()
		return err
	}
	next, changed, err := fn(list)
	if err == nil && changed {
		if err = q.pending.Save(ctx, next); err == nil {
			metrics.QueueDepth.WithLabelValues(string(q.kind), "pending").Set(float64(len(next)))
		}
	}
	q.mu.Unlock()

	if err != nil {
		return err
	}
	if changed {
		q.emit()
	}
	return nil
}

func (q *Queue[P]) newMutation(t models.MutationType, clientID string, payload P, userID string) models.Mutation[P] {
	return models.Mutation[P]{
		QueueID:   q.opts.newID(),
		ClientID:  clientID,
		Type:      t,
		Payload:   payload,
		UserID:    userID,
		CreatedAt: q.opts.now(),
	}
}

func (q *Queue[P]) emit() {
	if q.bus != nil {
		q.bus.Emit()
	}
}

func (q *Queue[P]) recordEnqueue(t models.MutationType, decision string) {
	metrics.RecordEnqueue(string(q.kind), string(t), decision)
}

func (q *Queue[P]) updateDepth(pending, failed int) {
	metrics.UpdateQueueDepth(string(q.kind), pending, failed)
}

func validateIdentity(clientID, userID string) error {
	if clientID == "" {
		return ErrMissingClientID
	}
	if userID == "" {
		return ErrMissingUserID
	}
	return nil
}

// indexOf returns the index of the record for clientID with type t, or of
// any record for clientID when t is empty.
func indexOf[P any](list []models.Mutation[P], clientID string, t models.MutationType) int {
	for i := range list {
		if list[i].ClientID == clientID && (t == "" || list[i].Type == t) {
			return i
		}
	}
	return -1
}

func indexByQueueID[P any](list []models.Mutation[P], queueID string) int {
	for i := range list {
		if list[i].QueueID == queueID {
			return i
		}
	}
	return -1
}

func removeAt[P any](list []models.Mutation[P], i int) []models.Mutation[P] {
	return append(list[:i], list[i+1:]...)
}

func filterByUser[P any](ctx context.Context, store ListStore[P], userID string) ([]models.Mutation[P], error) {
	list, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Mutation[P], 0, len(list))
	for _, m := range list {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}
