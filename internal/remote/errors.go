// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidMutation marks a mutation that can never be delivered as-is,
// e.g. an UPDATE for an entity with no server id.
var ErrInvalidMutation = errors.New("invalid mutation")

// StatusError is a non-2xx response from the remote service.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote returned %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote returned %d", e.StatusCode)
}

// Class tells the orchestrator what to do with a failed delivery.
type Class int

const (
	// Transient failures are retried after a delay.
	Transient Class = iota
	// Terminal failures go straight to the failed queue.
	Terminal
)

func (c Class) String() string {
	if c == Terminal {
		return "terminal"
	}
	return "transient"
}

// Classify maps a delivery error to its class. Client errors (4xx other than
// 401, 408 and 429) and ErrInvalidMutation are terminal. Everything else,
// including network failures, timeouts, 5xx and an open circuit, is transient.
// 401 is a session problem rather than a payload problem, so it is retried
// once the user logs in again.
func Classify(err error) Class {
	if errors.Is(err, ErrInvalidMutation) {
		return Terminal
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusUnauthorized,
			se.StatusCode == http.StatusRequestTimeout,
			se.StatusCode == http.StatusTooManyRequests:
			return Transient
		case se.StatusCode >= 400 && se.StatusCode < 500:
			return Terminal
		}
	}
	return Transient
}

// IsTerminal reports whether err should bypass the retry budget.
func IsTerminal(err error) bool {
	return err != nil && Classify(err) == Terminal
}
