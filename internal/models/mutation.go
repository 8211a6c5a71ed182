// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package models

import (
	"fmt"
	"time"
)

// Kind identifies a syncable entity type. Each kind owns one pending queue
// and one failed queue.
type Kind string

const (
	KindWorkout  Kind = "workout"
	KindTemplate Kind = "template"
	KindUser     Kind = "user"
)

// Kinds lists every kind in orchestrator processing order.
var Kinds = []Kind{KindWorkout, KindTemplate, KindUser}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindWorkout, KindTemplate, KindUser:
		return true
	}
	return false
}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return k, nil
}

// MutationType is the intent carried by a queued mutation.
type MutationType string

const (
	MutationCreate MutationType = "CREATE"
	MutationUpdate MutationType = "UPDATE"
	MutationDelete MutationType = "DELETE"
)

// Valid reports whether t is CREATE, UPDATE or DELETE.
func (t MutationType) Valid() bool {
	switch t {
	case MutationCreate, MutationUpdate, MutationDelete:
		return true
	}
	return false
}

// SyncStatus is carried on the owning entity, never on the mutation.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// Mutation is one queue entry. Payload is the desired end state for
// CREATE/UPDATE and {clientId, id} for DELETE.
//
// Revision is bumped whenever the record is merged or replaced in place, so a
// delivery of an older revision can tell that newer local data is queued.
type Mutation[P any] struct {
	QueueID    string       `json:"queueId"`
	ClientID   string       `json:"clientId"`
	Type       MutationType `json:"type"`
	Payload    P            `json:"payload"`
	UserID     string       `json:"userId"`
	CreatedAt  time.Time    `json:"createdAt"`
	RetryCount int          `json:"retryCount"`
	Revision   int          `json:"revision,omitempty"`
}

// QueueCounts is the read-only projection used by status indicators.
type QueueCounts struct {
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

// Payload is implemented by the typed per-kind payload structs.
//
// Merge applies newer on top of the receiver, field by field: a field set in
// newer wins, an absent field keeps the receiver's value. ForDelete builds the
// DELETE payload and is called on the zero value.
type Payload[P any] interface {
	ClientKey() string
	ServerKey() string
	Merge(newer P) P
	ForDelete(clientID, serverID string) P
}

// Entity is implemented by the local entity types the reconciler writes to.
//
// AdoptLocal is called on the authoritative server copy with the current local
// copy: it must keep the local clientId and fall back to local nested
// collections the server omitted.
type Entity[E any] interface {
	ClientKey() string
	ServerKey() string
	Owner() string
	Status() SyncStatus
	WithServerID(id string) E
	WithSyncStatus(status SyncStatus) E
	AdoptLocal(local E) E
}

// Ack is the result of a successful CREATE or UPDATE delivery. Entity is set
// when the server returned a full body; otherwise ServerID may carry a bare
// identifier echo.
type Ack[E any] struct {
	ServerID string
	Entity   *E
}
