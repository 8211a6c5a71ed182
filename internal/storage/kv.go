// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

// Package storage provides the string-keyed persistence primitive behind the
// durable mutation queues.
//
// Three implementations are available:
//   - BadgerKV: BadgerDB on disk (fsync, snappy compression)
//   - MemoryKV: process-local map, used by tests and storage.in_memory
//   - EncryptedKV: AES-256-GCM wrapper around any other KV
//
// The layer provides no read-modify-write isolation. Callers that need it
// serialize access themselves.
package storage

import (
	"context"
	"errors"
)

// KV is a string-keyed get/set/remove store for opaque values.
type KV interface {
	// Get returns the value for key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases underlying resources.
	Close() error
}

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("storage closed")

	// ErrEmptyKey is returned when an empty key is supplied.
	ErrEmptyKey = errors.New("empty storage key")
)
