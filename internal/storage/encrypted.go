// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/tomtom215/liftsync/internal/logging"
)

const (
	encryptionSalt = "liftsync-queue-store"
	encryptionInfo = "queue-encryption-v1"

	aesKeySize   = 32
	gcmNonceSize = 12
)

var (
	// ErrEmptySecret is returned when no encryption secret is configured.
	ErrEmptySecret = errors.New("encryption secret cannot be empty")

	// ErrCiphertextTooShort is returned when stored data cannot hold a nonce.
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// EncryptedKV encrypts values with AES-256-GCM before handing them to the
// wrapped store. Keys are stored in the clear.
//
// A value that fails to decrypt reads as missing, matching how the queue
// layer treats corrupt data.
type EncryptedKV struct {
	inner KV
	aead  cipher.AEAD
}

// NewEncrypted wraps inner using a key derived from secret with HKDF-SHA256.
func NewEncrypted(inner KV, secret string) (*EncryptedKV, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &EncryptedKV{inner: inner, aead: aead}, nil
}

func deriveKey(secret string) ([]byte, error) {
	reader := hkdf.New(sha256.New, []byte(secret), []byte(encryptionSalt), []byte(encryptionInfo))
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Get implements KV.
func (e *EncryptedKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sealed, found, err := e.inner.Get(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}

	plain, err := e.open(key, sealed)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Discarding undecryptable value")
		return nil, false, nil
	}
	return plain, true, nil
}

// Set implements KV.
func (e *EncryptedKV) Set(ctx context.Context, key string, value []byte) error {
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	// The key is bound as additional data so values cannot be swapped between keys.
	sealed := e.aead.Seal(nonce, nonce, value, []byte(key))
	return e.inner.Set(ctx, key, sealed)
}

// Remove implements KV.
func (e *EncryptedKV) Remove(ctx context.Context, key string) error {
	return e.inner.Remove(ctx, key)
}

// Close implements KV.
func (e *EncryptedKV) Close() error {
	return e.inner.Close()
}

func (e *EncryptedKV) open(key string, sealed []byte) ([]byte, error) {
	if len(sealed) < gcmNonceSize {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := sealed[:gcmNonceSize], sealed[gcmNonceSize:]
	plain, err := e.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plain, nil
}
