// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/models"
	"github.com/tomtom215/liftsync/internal/syncer"
	ws "github.com/tomtom215/liftsync/internal/websocket"
)

// UserSource reports the logged-in user, "" when nobody is.
type UserSource interface {
	UserID() string
}

// SessionManager is the session surface used by the API.
type SessionManager interface {
	UserSource
	Login(token string) (string, error)
	Logout()
	ExpiresAt() time.Time
}

// NetworkManager is the connectivity surface used by the API.
type NetworkManager interface {
	Online() bool
	SetOnline(online bool) bool
}

// SyncRunner starts orchestrator runs.
type SyncRunner interface {
	Run(ctx context.Context) (syncer.RunReport, error)
	Running() bool
	LastRun() syncer.RunReport
}

// Dependencies groups everything the handlers read from or write to.
// Hub may be nil, in which case /ws answers 503.
type Dependencies struct {
	Session   SessionManager
	Network   NetworkManager
	Sync      SyncRunner
	Hub       *ws.Hub
	Workouts  *EntityHandler[models.WorkoutPayload, models.Workout]
	Templates *EntityHandler[models.TemplatePayload, models.WorkoutTemplate]
	Profiles  *EntityHandler[models.UserPayload, models.UserProfile]
	Queues    []QueueView

	// AllowedOrigins is checked for websocket upgrades. "*" allows any.
	AllowedOrigins []string
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_health.go: health and status
//   - handlers_queue.go: queue inspection and failed-record actions
//   - handlers_sync.go: sync, network and session control
//   - handlers_entities.go: local entity CRUD
type Handler struct {
	session        SessionManager
	network        NetworkManager
	sync           SyncRunner
	wsHub          *ws.Hub
	workouts       *EntityHandler[models.WorkoutPayload, models.Workout]
	templates      *EntityHandler[models.TemplatePayload, models.WorkoutTemplate]
	profiles       *EntityHandler[models.UserPayload, models.UserProfile]
	queues         map[models.Kind]QueueView
	order          []models.Kind
	allowedOrigins []string
	startTime      time.Time
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies) *Handler {
	h := &Handler{
		session:        deps.Session,
		network:        deps.Network,
		sync:           deps.Sync,
		wsHub:          deps.Hub,
		workouts:       deps.Workouts,
		templates:      deps.Templates,
		profiles:       deps.Profiles,
		queues:         make(map[models.Kind]QueueView, len(deps.Queues)),
		allowedOrigins: deps.AllowedOrigins,
		startTime:      time.Now(),
	}
	for _, q := range deps.Queues {
		h.queues[q.Kind()] = q
		h.order = append(h.order, q.Kind())
	}
	return h
}

// QueueCounts returns the current user's counts for every registered kind.
// Its signature matches websocket.CountsFunc.
func (h *Handler) QueueCounts(ctx context.Context) (string, map[models.Kind]models.QueueCounts, error) {
	userID := h.session.UserID()
	counts := make(map[models.Kind]models.QueueCounts, len(h.order))
	if userID == "" {
		return "", counts, nil
	}
	for _, kind := range h.order {
		c, err := h.queues[kind].Counts(ctx, userID)
		if err != nil {
			return userID, nil, err
		}
		counts[kind] = c
	}
	return userID, counts, nil
}

// WebSocket upgrades the connection and registers it with the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins. Browsers
// always send Origin, so a missing header is rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

type userIDKey struct{}

func contextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// userIDFromContext returns the userId stored by RequireSession.
func userIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}
