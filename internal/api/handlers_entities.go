// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/liftsync/internal/entity"
	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/models"
	"github.com/tomtom215/liftsync/internal/queue"
)

// entityRequest is a validated request body that becomes an entity.
type entityRequest[E any] interface {
	toEntity() E
}

// decoder turns a request body into an entity, or an error to send back.
type decoder[E any] func(w http.ResponseWriter, r *http.Request) (E, *models.APIError)

func decodeEntity[R entityRequest[E], E any](w http.ResponseWriter, r *http.Request) (E, *models.APIError) {
	var req R
	if apiErr := decodeJSON(r, w, &req); apiErr != nil {
		var zero E
		return zero, apiErr
	}
	return req.toEntity(), nil
}

// EntityHandler serves local CRUD for one kind. Writes go through the
// mutator, so every change lands in the repository and the queue together.
type EntityHandler[P models.Payload[P], E entity.Syncable[P, E]] struct {
	kind    models.Kind
	mutator *entity.Mutator[P, E]
	decode  decoder[E]

	// singleton allows at most one entity per user.
	singleton bool
}

// NewWorkoutHandler serves /api/v1/workouts.
func NewWorkoutHandler(m *entity.Mutator[models.WorkoutPayload, models.Workout]) *EntityHandler[models.WorkoutPayload, models.Workout] {
	return &EntityHandler[models.WorkoutPayload, models.Workout]{
		kind:    models.KindWorkout,
		mutator: m,
		decode:  decodeEntity[WorkoutRequest, models.Workout],
	}
}

// NewTemplateHandler serves /api/v1/templates.
func NewTemplateHandler(m *entity.Mutator[models.TemplatePayload, models.WorkoutTemplate]) *EntityHandler[models.TemplatePayload, models.WorkoutTemplate] {
	return &EntityHandler[models.TemplatePayload, models.WorkoutTemplate]{
		kind:    models.KindTemplate,
		mutator: m,
		decode:  decodeEntity[TemplateRequest, models.WorkoutTemplate],
	}
}

// NewProfileHandler serves /api/v1/profile. A user has one profile.
func NewProfileHandler(m *entity.Mutator[models.UserPayload, models.UserProfile]) *EntityHandler[models.UserPayload, models.UserProfile] {
	return &EntityHandler[models.UserPayload, models.UserProfile]{
		kind:      models.KindUser,
		mutator:   m,
		decode:    decodeEntity[ProfileRequest, models.UserProfile],
		singleton: true,
	}
}

// Routes mounts the CRUD endpoints on r.
func (h *EntityHandler[P, E]) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{clientId}", h.Get)
	r.Put("/{clientId}", h.Update)
	r.Delete("/{clientId}", h.Delete)
}

// List returns the current user's entities in creation order.
func (h *EntityHandler[P, E]) List(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	respondData(w, http.StatusOK, h.mutator.Repository().ListForUser(userID))
}

// Get returns one entity by clientId.
func (h *EntityHandler[P, E]) Get(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	clientID := chi.URLParam(r, "clientId")

	e, ok := h.mutator.Repository().Get(clientID)
	if !ok || e.Owner() != userID {
		respondError(w, http.StatusNotFound, "NOT_FOUND", string(h.kind)+" not found", nil)
		return
	}
	respondData(w, http.StatusOK, e)
}

// Create stores a new entity locally and queues its CREATE.
func (h *EntityHandler[P, E]) Create(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	e, apiErr := h.decode(w, r)
	if apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}
	if h.singleton && len(h.mutator.Repository().ListForUser(userID)) > 0 {
		respondError(w, http.StatusConflict, "ALREADY_EXISTS", string(h.kind)+" already exists for this user", nil)
		return
	}

	created, err := h.mutator.Create(r.Context(), userID, e)
	if err != nil {
		h.respondMutationError(w, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("kind", string(h.kind)).
		Str("client_id", created.ClientKey()).
		Msg("Entity created locally")
	respondData(w, http.StatusCreated, created)
}

// Update replaces an entity's fields and queues a full-snapshot UPDATE.
func (h *EntityHandler[P, E]) Update(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	clientID := chi.URLParam(r, "clientId")

	e, apiErr := h.decode(w, r)
	if apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}
	e = e.WithIdentity(clientID, userID)

	updated, err := h.mutator.Update(r.Context(), userID, e)
	if err != nil {
		h.respondMutationError(w, err)
		return
	}
	respondData(w, http.StatusOK, updated)
}

// DeleteResult reports whether a DELETE reached the queue. It does not when
// the entity was never synced: the pending CREATE is cancelled instead.
type DeleteResult struct {
	ClientID string `json:"clientId"`
	Queued   bool   `json:"queued"`
	QueueID  string `json:"queueId,omitempty"`
}

// Delete removes an entity locally and queues its DELETE when needed.
func (h *EntityHandler[P, E]) Delete(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	clientID := chi.URLParam(r, "clientId")

	m, err := h.mutator.Delete(r.Context(), userID, clientID)
	if err != nil {
		h.respondMutationError(w, err)
		return
	}

	result := DeleteResult{ClientID: clientID}
	if m != nil {
		result.Queued = true
		result.QueueID = m.QueueID
	}
	respondData(w, http.StatusOK, result)
}

// respondMutationError maps mutator and queue errors to HTTP statuses.
// Another user's entity reads as not found.
func (h *EntityHandler[P, E]) respondMutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrNotFound), errors.Is(err, entity.ErrForbidden):
		respondError(w, http.StatusNotFound, "NOT_FOUND", string(h.kind)+" not found", nil)
	case errors.Is(err, queue.ErrConflictingMutation):
		respondError(w, http.StatusConflict, "CONFLICTING_MUTATION", "A conflicting change is already queued", err)
	case errors.Is(err, queue.ErrMissingClientID), errors.Is(err, queue.ErrMissingUserID), errors.Is(err, entity.ErrMissingClientID):
		respondError(w, http.StatusBadRequest, "INVALID_MUTATION", "Mutation is missing its identity", err)
	default:
		respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "Failed to queue change", err)
	}
}
