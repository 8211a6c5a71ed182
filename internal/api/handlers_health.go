// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/liftsync/internal/models"
)

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime_seconds"`
}

// Healthz reports that the daemon is serving. It does not depend on the
// remote API: working offline is the normal case.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, HealthStatus{
		Status: "healthy",
		Uptime: time.Since(h.startTime).Seconds(),
	})
}

// Status returns connectivity, session and queue counts for the current user.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID, counts, err := h.QueueCounts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "Failed to read queue counts", err)
		return
	}

	respondData(w, http.StatusOK, models.StatusResponse{
		Online:        h.network.Online(),
		Authenticated: userID != "",
		UserID:        userID,
		SyncRunning:   h.sync.Running(),
		Queues:        counts,
	})
}
