// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/syncer"
)

// TriggerSync runs the orchestrator and returns its report. A run that is
// already in flight is not joined; the caller gets 409 and can poll status.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	report, err := h.sync.Run(r.Context())
	switch {
	case errors.Is(err, syncer.ErrRunInProgress):
		respondError(w, http.StatusConflict, "SYNC_IN_PROGRESS", "A sync run is already in progress", nil)
		return
	case errors.Is(err, syncer.ErrOffline):
		respondError(w, http.StatusServiceUnavailable, "OFFLINE", "Device is offline", nil)
		return
	case errors.Is(err, syncer.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Log in before syncing", nil)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "SYNC_ERROR", "Sync run failed", err)
		return
	}
	respondData(w, http.StatusOK, report)
}

// LastSync returns the report of the most recent completed run.
func (h *Handler) LastSync(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, h.sync.LastRun())
}

// NetworkRequest is the body of PUT /api/v1/network.
type NetworkRequest struct {
	Online *bool `json:"online" validate:"required"`
}

// NetworkState is returned by PUT /api/v1/network.
type NetworkState struct {
	Online  bool `json:"online"`
	Changed bool `json:"changed"`
}

// SetNetwork lets the host platform report connectivity. Going online while
// logged in triggers a sync run.
func (h *Handler) SetNetwork(w http.ResponseWriter, r *http.Request) {
	var req NetworkRequest
	if apiErr := decodeJSON(r, w, &req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}
	changed := h.network.SetOnline(*req.Online)
	respondData(w, http.StatusOK, NetworkState{Online: *req.Online, Changed: changed})
}

// SessionRequest is the body of POST /api/v1/session.
type SessionRequest struct {
	Token string `json:"token" validate:"required,max=8192"`
}

// SessionState describes the current session.
type SessionState struct {
	Authenticated bool       `json:"authenticated"`
	UserID        string     `json:"userId,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	Purged        int        `json:"purged,omitempty"`
}

// Login validates the bearer token and starts a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if apiErr := decodeJSON(r, w, &req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	userID, err := h.session.Login(req.Token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Token rejected", nil)
		return
	}

	state := SessionState{Authenticated: true, UserID: userID}
	if exp := h.session.ExpiresAt(); !exp.IsZero() {
		state.ExpiresAt = &exp
	}
	respondData(w, http.StatusOK, state)
}

// Logout ends the session. Queued work stays on disk for the next login of
// the same user unless ?purge=true is given.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := h.session.UserID()
	purged := 0

	if userID != "" && r.URL.Query().Get("purge") == "true" {
		for _, kind := range h.order {
			n, err := h.queues[kind].ClearUser(r.Context(), userID)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "Failed to purge queues", err)
				return
			}
			purged += n
		}
		logging.Ctx(r.Context()).Info().Int("purged", purged).Msg("Purged queued work on logout")
	}

	h.session.Logout()
	respondData(w, http.StatusOK, SessionState{Authenticated: false, Purged: purged})
}
