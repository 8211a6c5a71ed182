// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/liftsync/internal/entity"
	"github.com/tomtom215/liftsync/internal/eventbus"
	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/models"
	"github.com/tomtom215/liftsync/internal/netstatus"
	"github.com/tomtom215/liftsync/internal/queue"
	"github.com/tomtom215/liftsync/internal/reconcile"
	"github.com/tomtom215/liftsync/internal/session"
	"github.com/tomtom215/liftsync/internal/storage"
	"github.com/tomtom215/liftsync/internal/syncer"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

const testSecret = "test-secret-that-is-long-enough-for-hs256"

// fakeRunner records Run calls and returns a scripted error.
type fakeRunner struct {
	calls   atomic.Int32
	err     error
	report  syncer.RunReport
	running atomic.Bool
}

func (f *fakeRunner) Run(context.Context) (syncer.RunReport, error) {
	f.calls.Add(1)
	return f.report, f.err
}

func (f *fakeRunner) Running() bool              { return f.running.Load() }
func (f *fakeRunner) LastRun() syncer.RunReport { return f.report }

type harness struct {
	t        *testing.T
	server   http.Handler
	session  *session.Session
	network  *netstatus.Monitor
	runner   *fakeRunner
	workouts *queue.Queue[models.WorkoutPayload]
	repo     *entity.Repository[models.Workout]
	recon    *reconcile.Reconciler[models.Workout]
	bus      *eventbus.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	sess, err := session.New(testSecret)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	kv := storage.NewMemory()
	bus := eventbus.New()

	wq := queue.NewWorkoutQueue(kv, bus)
	tq := queue.NewTemplateQueue(kv, bus)
	uq := queue.NewUserQueue(kv, bus)

	wrepo := entity.NewRepository[models.Workout]()
	trepo := entity.NewRepository[models.WorkoutTemplate]()
	urepo := entity.NewRepository[models.UserProfile]()

	wrecon := reconcile.New[models.Workout](models.KindWorkout, wrepo)
	trecon := reconcile.New[models.WorkoutTemplate](models.KindTemplate, trepo)
	urecon := reconcile.New[models.UserProfile](models.KindUser, urepo)

	h := &harness{
		t:        t,
		session:  sess,
		network:  netstatus.NewMonitor(true),
		runner:   &fakeRunner{},
		workouts: wq,
		repo:     wrepo,
		recon:    wrecon,
		bus:      bus,
	}

	handler := NewHandler(Dependencies{
		Session:   sess,
		Network:   h.network,
		Sync:      h.runner,
		Workouts:  NewWorkoutHandler(entity.NewMutator[models.WorkoutPayload, models.Workout](models.KindWorkout, wrepo, wq)),
		Templates: NewTemplateHandler(entity.NewMutator[models.TemplatePayload, models.WorkoutTemplate](models.KindTemplate, trepo, tq)),
		Profiles:  NewProfileHandler(entity.NewMutator[models.UserPayload, models.UserProfile](models.KindUser, urepo, uq)),
		Queues: []QueueView{
			NewQueueAdapter[models.WorkoutPayload](wq, wrecon),
			NewQueueAdapter[models.TemplatePayload](tq, trecon),
			NewQueueAdapter[models.UserPayload](uq, urecon),
		},
		AllowedOrigins: []string{"http://localhost:5173"},
	})
	h.server = NewRouter(handler, nil).SetupChi()
	return h
}

func (h *harness) login(userID string) {
	h.t.Helper()
	token, err := session.IssueToken(testSecret, userID, 0)
	if err != nil {
		h.t.Fatalf("IssueToken: %v", err)
	}
	if _, err := h.session.Login(token); err != nil {
		h.t.Fatalf("Login: %v", err)
	}
}

type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func (h *harness) do(method, path, body string) (*httptest.ResponseRecorder, envelope) {
	h.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			h.t.Fatalf("%s %s: invalid JSON %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rec, env := h.do(http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("status = %d %q", rec.Code, env.Status)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing request id header")
	}
}

func TestRequestID_KeepsIncomingHeader(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Errorf("request id = %q", got)
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	st := decodeData[models.StatusResponse](t, env)
	if st.Authenticated || !st.Online || len(st.Queues) != 0 {
		t.Errorf("logged out status = %+v", st)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("API responses must not be cached")
	}

	h.login("user-a")
	h.do(http.MethodPost, "/api/v1/workouts", `{"title":"Leg Day"}`)

	_, env = h.do(http.MethodGet, "/api/v1/status", "")
	st = decodeData[models.StatusResponse](t, env)
	if !st.Authenticated || st.UserID != "user-a" {
		t.Errorf("status = %+v", st)
	}
	if st.Queues[models.KindWorkout].Pending != 1 || len(st.Queues) != 3 {
		t.Errorf("queues = %+v", st.Queues)
	}
}

func TestEntityRoutes_RequireSession(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/api/v1/workouts", "/api/v1/templates", "/api/v1/profile", "/api/v1/queues/workout"} {
		rec, env := h.do(http.MethodGet, path, "")
		if rec.Code != http.StatusUnauthorized || env.Error == nil || env.Error.Code != "UNAUTHENTICATED" {
			t.Errorf("GET %s = %d %+v", path, rec.Code, env.Error)
		}
	}
}

func TestSession_LoginLogout(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(http.MethodPost, "/api/v1/session", `{"token":"not-a-jwt"}`)
	if rec.Code != http.StatusUnauthorized || env.Error.Code != "INVALID_TOKEN" {
		t.Fatalf("bad token = %d %+v", rec.Code, env.Error)
	}

	rec, _ = h.do(http.MethodPost, "/api/v1/session", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing token = %d", rec.Code)
	}

	token, err := session.IssueToken(testSecret, "user-a", 0)
	if err != nil {
		t.Fatal(err)
	}
	rec, env = h.do(http.MethodPost, "/api/v1/session", `{"token":"`+token+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d %+v", rec.Code, env.Error)
	}
	state := decodeData[SessionState](t, env)
	if !state.Authenticated || state.UserID != "user-a" {
		t.Errorf("state = %+v", state)
	}

	rec, env = h.do(http.MethodDelete, "/api/v1/session", "")
	if rec.Code != http.StatusOK || decodeData[SessionState](t, env).Authenticated {
		t.Errorf("logout = %d %s", rec.Code, env.Data)
	}
	if h.session.Authenticated() {
		t.Error("session still authenticated")
	}
}

func TestLogout_PurgeClearsQueues(t *testing.T) {
	h := newHarness(t)
	h.login("user-a")
	h.do(http.MethodPost, "/api/v1/workouts", `{"title":"A"}`)
	h.do(http.MethodPost, "/api/v1/templates", `{"name":"Push"}`)

	rec, env := h.do(http.MethodDelete, "/api/v1/session?purge=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("logout = %d", rec.Code)
	}
	if got := decodeData[SessionState](t, env).Purged; got != 2 {
		t.Errorf("purged = %d, want 2", got)
	}
	counts, err := h.workouts.GetQueueCounts(context.Background(), "user-a")
	if err != nil || counts.Pending != 0 {
		t.Errorf("counts = %+v, %v", counts, err)
	}
}

func TestWorkouts_CreateUpdateDeleteBeforeSync(t *testing.T) {
	h := newHarness(t)
	h.login("user-a")

	rec, env := h.do(http.MethodPost, "/api/v1/workouts",
		`{"title":"Leg Day","exercises":[{"exerciseId":"squat","name":"Squat","sets":[{"reps":5,"weightKg":100,"completed":true}]}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %+v", rec.Code, env.Error)
	}
	created := decodeData[models.Workout](t, env)
	if created.ClientID == "" || created.SyncStatus != models.SyncStatusPending || created.UserID != "user-a" {
		t.Fatalf("created = %+v", created)
	}
	if len(created.Exercises) != 1 || created.Exercises[0].Sets[0].WeightKg != 100 {
		t.Errorf("exercises = %+v", created.Exercises)
	}

	rec, env = h.do(http.MethodPut, "/api/v1/workouts/"+created.ClientID, `{"title":"Leg Day (heavy)"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d %+v", rec.Code, env.Error)
	}
	if got := decodeData[models.Workout](t, env); got.Title != "Leg Day (heavy)" || got.ClientID != created.ClientID {
		t.Errorf("updated = %+v", got)
	}

	_, env = h.do(http.MethodGet, "/api/v1/queues/workout", "")
	pending := decodeData[[]models.Mutation[models.WorkoutPayload]](t, env)
	if len(pending) != 1 || pending[0].Type != models.MutationCreate || *pending[0].Payload.Title != "Leg Day (heavy)" {
		t.Fatalf("pending = %+v", pending)
	}

	rec, env = h.do(http.MethodDelete, "/api/v1/workouts/"+created.ClientID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d", rec.Code)
	}
	if res := decodeData[DeleteResult](t, env); res.Queued {
		t.Errorf("delete of unsynced workout should not queue: %+v", res)
	}

	_, env = h.do(http.MethodGet, "/api/v1/queues/workout", "")
	if pending := decodeData[[]models.Mutation[models.WorkoutPayload]](t, env); len(pending) != 0 {
		t.Errorf("pending after delete = %+v", pending)
	}
	if h.repo.Len() != 0 {
		t.Error("entity not removed locally")
	}
}

func TestWorkouts_DeleteSyncedQueuesDelete(t *testing.T) {
	h := newHarness(t)
	h.login("user-a")

	_, env := h.do(http.MethodPost, "/api/v1/workouts", `{"title":"A"}`)
	w := decodeData[models.Workout](t, env)
	h.recon.ReconcileID(w.ClientID, "srv-1")
	list, _ := h.workouts.GetQueueForUser(context.Background(), "user-a")
	if err := h.workouts.Dequeue(context.Background(), list[0].QueueID); err != nil {
		t.Fatal(err)
	}

	_, env = h.do(http.MethodDelete, "/api/v1/workouts/"+w.ClientID, "")
	res := decodeData[DeleteResult](t, env)
	if !res.Queued || res.QueueID == "" {
		t.Fatalf("result = %+v", res)
	}
	pending, _ := h.workouts.GetQueueForUser(context.Background(), "user-a")
	if len(pending) != 1 || pending[0].Type != models.MutationDelete || pending[0].Payload.ServerKey() != "srv-1" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestWorkouts_Validation(t *testing.T) {
	h := newHarness(t)
	h.login("user-a")

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing title", `{"notes":"x"}`, "VALIDATION_ERROR"},
		{"negative reps", `{"title":"A","exercises":[{"exerciseId":"s","name":"S","sets":[{"reps":-1}]}]}`, "VALIDATION_ERROR"},
		{"unknown field", `{"title":"A","colour":"red"}`, "INVALID_BODY"},
		{"not json", `{"title":`, "INVALID_BODY"},
		{"empty body", ``, "INVALID_BODY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := h.do(http.MethodPost, "/api/v1/workouts", tt.body)
			if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("= %d %+v, want 400 %s", rec.Code, env.Error, tt.code)
			}
		})
	}

	_, env := h.do(http.MethodPost, "/api/v1/workouts", `{"notes":"x"}`)
	if env.Error.Details["field"] != "title" {
		t.Errorf("details = %v", env.Error.Details)
	}
	if h.repo.Len() != 0 {
		t.Error("invalid request reached the repository")
	}
}

func TestWorkouts_OtherUsersDataIsHidden(t *testing.T) {
	h := newHarness(t)
	h.login("user-a")
	_, env := h.do(http.MethodPost, "/api/v1/workouts", `{"title":"Mine"}`)
	w := decodeData[models.Workout](t, env)

	h.login("user-b")
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec, _ := h.do(method, "/api/v1/workouts/"+w.ClientID, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s other user's workout = %d", method, rec.Code)
		}
	}
	rec, _ := h.do(http.MethodPut, "/api/v1/workouts/"+w.ClientID, `{"title":"Stolen"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("PUT other user's workout = %d", rec.Code)
	}

	_, env = h.do(http.MethodGet, "/api/v1/workouts", "")
	if list := decodeData[[]models.Workout](t, env); len(list) != 0 {
		t.Errorf("user-b sees %d workouts", len(list))
	}
	_, env = h.do(http.MethodGet, "/api/v1/queues/workout", "")
	if list := decodeData[[]models.Mutation[models.WorkoutPayload]](t, env); len(list) != 0 {
		t.Errorf("user-b sees %d queued mutations", len(list))
	}
}

func TestProfile_OnePerUser(t *testing.T) {
	h := newHarness(t)
	h.login("user-a")

	rec, env := h.do(http.MethodPost, "/api/v1/profile", `{"displayName":"Sam","weightUnit":"kg"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %+v", rec.Code, env.Error)
	}
	profile := decodeData[models.UserProfile](t, env)
	if profile.Goals == nil {
		t.Error("goals should default to an empty list")
	}

	rec, env = h.do(http.MethodPost, "/api/v1/profile", `{"displayName":"Sam","weightUnit":"kg"}`)
	if rec.Code != http.StatusConflict || env.Error.Code != "ALREADY_EXISTS" {
		t.Errorf("second create = %d %+v", rec.Code, env.Error)
	}

	rec, env = h.do(http.MethodPut, "/api/v1/profile/"+profile.ClientID, `{"displayName":"Sam","weightUnit":"stone"}`)
	if rec.Code != http.StatusBadRequest || env.Error.Details["field"] != "weightUnit" {
		t.Errorf("bad unit = %d %+v", rec.Code, env.Error)
	}

	rec, _ = h.do(http.MethodPut, "/api/v1/profile/"+profile.ClientID, `{"displayName":"Sam","weightUnit":"lb","goals":["squat 200"]}`)
	if rec.Code != http.StatusOK {
		t.Errorf("update = %d", rec.Code)
	}
}

func TestTemplates_Create(t *testing.T) {
	h := newHarness(t)
	h.login("user-a")

	rec, env := h.do(http.MethodPost, "/api/v1/templates",
		`{"name":"Push","exercises":[{"exerciseId":"bench","name":"Bench","targetSets":3,"targetReps":8}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %+v", rec.Code, env.Error)
	}
	tmpl := decodeData[models.WorkoutTemplate](t, env)
	if len(tmpl.Exercises) != 1 || tmpl.Exercises[0].TargetSets != 3 {
		t.Errorf("template = %+v", tmpl)
	}

	rec, _ = h.do(http.MethodPost, "/api/v1/templates", `{"name":"Pull","exercises":[{"exerciseId":"row","name":"Row","targetSets":0,"targetReps":8}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero target sets = %d", rec.Code)
	}
}

func TestQueues_RetryFailed(t *testing.T) {
	h := newHarness(t)
	h.login("user-a")
	ctx := context.Background()

	_, env := h.do(http.MethodPost, "/api/v1/workouts", `{"title":"A"}`)
	w := decodeData[models.Workout](t, env)
	list, _ := h.workouts.GetQueueForUser(ctx, "user-a")
	if err := h.workouts.MoveToFailedQueue(ctx, list[0].QueueID); err != nil {
		t.Fatal(err)
	}
	h.recon.MarkFailed(w.ClientID)

	_, env = h.do(http.MethodGet, "/api/v1/queues/workout/failed", "")
	failed := decodeData[[]models.Mutation[models.WorkoutPayload]](t, env)
	if len(failed) != 1 {
		t.Fatalf("failed = %+v", failed)
	}

	var signals atomic.Int32
	defer h.bus.Subscribe(func() { signals.Add(1) })()

	rec, _ := h.do(http.MethodPost, "/api/v1/queues/workout/failed/"+failed[0].QueueID+"/retry", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("retry = %d", rec.Code)
	}
	if signals.Load() == 0 {
		t.Error("retry should signal the event bus")
	}
	counts, _ := h.workouts.GetQueueCounts(ctx, "user-a")
	if counts.Pending != 1 || counts.Failed != 0 {
		t.Errorf("counts = %+v", counts)
	}
	if e, _ := h.repo.Get(w.ClientID); e.SyncStatus != models.SyncStatusPending {
		t.Errorf("entity status = %s", e.SyncStatus)
	}

	rec, _ = h.do(http.MethodPost, "/api/v1/queues/workout/failed/nope/retry", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown queueId = %d", rec.Code)
	}
}

func TestQueues_RetryIsScopedToUser(t *testing.T) {
	h := newHarness(t)
	h.login("user-a")
	ctx := context.Background()

	h.do(http.MethodPost, "/api/v1/workouts", `{"title":"A"}`)
	list, _ := h.workouts.GetQueueForUser(ctx, "user-a")
	if err := h.workouts.MoveToFailedQueue(ctx, list[0].QueueID); err != nil {
		t.Fatal(err)
	}

	h.login("user-b")
	rec, _ := h.do(http.MethodPost, "/api/v1/queues/workout/failed/"+list[0].QueueID+"/retry", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("retry of another user's record = %d", rec.Code)
	}
	rec, env := h.do(http.MethodDelete, "/api/v1/queues/workout/failed", "")
	if rec.Code != http.StatusOK || decodeData[ClearResult](t, env).Removed != 0 {
		t.Errorf("clear as user-b = %d %s", rec.Code, env.Data)
	}

	h.login("user-a")
	_, env = h.do(http.MethodDelete, "/api/v1/queues/workout/failed", "")
	if got := decodeData[ClearResult](t, env).Removed; got != 1 {
		t.Errorf("removed = %d", got)
	}
}

func TestQueues_UnknownKind(t *testing.T) {
	h := newHarness(t)
	h.login("user-a")

	rec, env := h.do(http.MethodGet, "/api/v1/queues/exercise", "")
	if rec.Code != http.StatusNotFound || env.Error.Code != "UNKNOWN_KIND" {
		t.Errorf("= %d %+v", rec.Code, env.Error)
	}
}

func TestTriggerSync_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"ok", nil, http.StatusOK, ""},
		{"busy", syncer.ErrRunInProgress, http.StatusConflict, "SYNC_IN_PROGRESS"},
		{"offline", syncer.ErrOffline, http.StatusServiceUnavailable, "OFFLINE"},
		{"logged out", syncer.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.runner.err = tt.err
			h.runner.report = syncer.RunReport{RunID: "run-1", UserID: "user-a"}

			rec, env := h.do(http.MethodPost, "/api/v1/sync", "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.code != "" {
				if env.Error == nil || env.Error.Code != tt.code {
					t.Errorf("error = %+v", env.Error)
				}
				return
			}
			if got := decodeData[syncer.RunReport](t, env); got.RunID != "run-1" {
				t.Errorf("report = %+v", got)
			}
			if h.runner.calls.Load() != 1 {
				t.Errorf("calls = %d", h.runner.calls.Load())
			}
		})
	}
}

func TestSetNetwork(t *testing.T) {
	h := newHarness(t)

	var changes []bool
	defer h.network.Subscribe(func(online bool) { changes = append(changes, online) })()

	rec, _ := h.do(http.MethodPut, "/api/v1/network", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing online = %d", rec.Code)
	}

	rec, env := h.do(http.MethodPut, "/api/v1/network", `{"online":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if st := decodeData[NetworkState](t, env); st.Online || !st.Changed {
		t.Errorf("state = %+v", st)
	}
	_, env = h.do(http.MethodPut, "/api/v1/network", `{"online":false}`)
	if decodeData[NetworkState](t, env).Changed {
		t.Error("repeat report should not change state")
	}
	if len(changes) != 1 || changes[0] {
		t.Errorf("changes = %v", changes)
	}
}

func TestQueueCounts_LoggedOut(t *testing.T) {
	h := newHarness(t)
	handler := NewHandler(Dependencies{Session: h.session})

	userID, counts, err := handler.QueueCounts(context.Background())
	if err != nil || userID != "" || len(counts) != 0 {
		t.Errorf("= %q %v %v", userID, counts, err)
	}
}
