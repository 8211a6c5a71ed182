// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/models"
	"github.com/tomtom215/liftsync/internal/queue"
)

// queueFromRequest resolves the {kind} URL parameter. It writes the error
// response and returns nil when the kind is unknown.
func (h *Handler) queueFromRequest(w http.ResponseWriter, r *http.Request) QueueView {
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, http.StatusNotFound, "UNKNOWN_KIND", "Unknown entity kind", nil)
		return nil
	}
	q, ok := h.queues[kind]
	if !ok {
		respondError(w, http.StatusNotFound, "UNKNOWN_KIND", "No queue for "+string(kind), nil)
		return nil
	}
	return q
}

// PendingQueue lists the current user's pending mutations in FIFO order.
func (h *Handler) PendingQueue(w http.ResponseWriter, r *http.Request) {
	q := h.queueFromRequest(w, r)
	if q == nil {
		return
	}
	list, err := q.Pending(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "Failed to read queue", err)
		return
	}
	respondData(w, http.StatusOK, list)
}

// FailedQueue lists the current user's quarantined mutations.
func (h *Handler) FailedQueue(w http.ResponseWriter, r *http.Request) {
	q := h.queueFromRequest(w, r)
	if q == nil {
		return
	}
	list, err := q.Failed(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "Failed to read failed queue", err)
		return
	}
	respondData(w, http.StatusOK, list)
}

// RetryFailed moves one quarantined mutation back to the pending queue.
// The queue signal that follows schedules a sync run.
func (h *Handler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	q := h.queueFromRequest(w, r)
	if q == nil {
		return
	}
	queueID := chi.URLParam(r, "queueId")

	m, err := q.RetryFailed(r.Context(), userIDFromContext(r.Context()), queueID)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Failed mutation not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "Failed to retry mutation", err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("kind", string(q.Kind())).
		Str("queue_id", sanitizeLogValue(queueID)).
		Msg("Failed mutation requeued")
	respondData(w, http.StatusOK, m)
}

// ClearResult reports how many records were dropped.
type ClearResult struct {
	Removed int `json:"removed"`
}

// ClearFailed drops every quarantined mutation of the current user.
func (h *Handler) ClearFailed(w http.ResponseWriter, r *http.Request) {
	q := h.queueFromRequest(w, r)
	if q == nil {
		return
	}
	n, err := q.ClearFailed(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "Failed to clear failed queue", err)
		return
	}
	respondData(w, http.StatusOK, ClearResult{Removed: n})
}
