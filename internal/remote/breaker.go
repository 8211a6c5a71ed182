// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package remote

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/metrics"
	"github.com/tomtom215/liftsync/internal/models"
)

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
	// Interval resets the closed-state counts.
	Interval time.Duration
	// Timeout is how long the circuit stays open.
	Timeout time.Duration
	// MinRequests is the sample size before the failure ratio is considered.
	MinRequests uint32
	// FailureRatio opens the circuit once reached.
	FailureRatio float64
}

// DefaultBreakerConfig returns the settings used for entity services.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// Breaker wraps a Service with a circuit breaker. Terminal errors count as
// breaker successes: a bad payload says nothing about the server's health.
// A rejected call surfaces as a transient error.
type Breaker[P any, E any] struct {
	inner Service[P, E]
	cb    *gobreaker.CircuitBreaker[models.Ack[E]]
	name  string
}

// NewBreaker wraps inner in a breaker named name.
func NewBreaker[P any, E any](name string, inner Service[P, E], cfg BreakerConfig) *Breaker[P, E] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[models.Ack[E]](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.FailureRatio {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},

		IsSuccessful: func(err error) bool {
			return err == nil || IsTerminal(err) || errors.Is(err, context.Canceled)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().
				Str("breaker", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Breaker[P, E]{inner: inner, cb: cb, name: name}
}

// State returns the current breaker state name.
func (b *Breaker[P, E]) State() string {
	return stateToString(b.cb.State())
}

// Create implements Service.
func (b *Breaker[P, E]) Create(ctx context.Context, payload P) (models.Ack[E], error) {
	return b.execute(func() (models.Ack[E], error) {
		return b.inner.Create(ctx, payload)
	})
}

// Update implements Service.
func (b *Breaker[P, E]) Update(ctx context.Context, id string, payload P) (models.Ack[E], error) {
	return b.execute(func() (models.Ack[E], error) {
		return b.inner.Update(ctx, id, payload)
	})
}

// Delete implements Service.
func (b *Breaker[P, E]) Delete(ctx context.Context, id string) error {
	_, err := b.execute(func() (models.Ack[E], error) {
		return models.Ack[E]{}, b.inner.Delete(ctx, id)
	})
	return err
}

func (b *Breaker[P, E]) execute(fn func() (models.Ack[E], error)) (models.Ack[E], error) {
	ack, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		logging.Warn().Err(err).Str("breaker", b.name).Msg("[CIRCUIT BREAKER] Request rejected")
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return ack, err
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
