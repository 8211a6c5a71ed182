// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package entity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/liftsync/internal/models"
	"github.com/tomtom215/liftsync/internal/queue"
	"github.com/tomtom215/liftsync/internal/storage"
)

func TestRepository_PutGetUpdateRemove(t *testing.T) {
	repo := NewRepository[models.Workout]()

	if err := repo.Put(models.Workout{Title: "no id"}); !errors.Is(err, ErrMissingClientID) {
		t.Errorf("Put without clientId err = %v", err)
	}

	_ = repo.Put(models.Workout{ClientID: "a", UserID: "u1", Title: "A"})
	_ = repo.Put(models.Workout{ClientID: "b", UserID: "u2", Title: "B"})
	_ = repo.Put(models.Workout{ClientID: "c", UserID: "u1", Title: "C"})
	_ = repo.Put(models.Workout{ClientID: "a", UserID: "u1", Title: "A2"})

	list := repo.List()
	if len(list) != 3 || list[0].Title != "A2" || list[2].ClientID != "c" {
		t.Errorf("List = %+v", list)
	}
	if got := repo.ListForUser("u1"); len(got) != 2 {
		t.Errorf("ListForUser len = %d, want 2", len(got))
	}

	updated, ok := repo.Update("b", func(w models.Workout) models.Workout {
		return w.WithServerID("s-b")
	})
	if !ok || updated.ID != "s-b" {
		t.Errorf("Update = %+v, %v", updated, ok)
	}
	if found, ok := repo.FindByServerID("s-b"); !ok || found.ClientID != "b" {
		t.Errorf("FindByServerID = %+v, %v", found, ok)
	}
	if _, ok := repo.FindByServerID(""); ok {
		t.Error("empty server id should never match")
	}
	if _, ok := repo.Update("zzz", func(w models.Workout) models.Workout { return w }); ok {
		t.Error("Update of unknown clientId should report false")
	}

	if !repo.Remove("a") || repo.Remove("a") {
		t.Error("Remove should succeed once")
	}
	if repo.Len() != 2 {
		t.Errorf("Len = %d, want 2", repo.Len())
	}
}

func newWorkoutMutator(t *testing.T) (*Mutator[models.WorkoutPayload, models.Workout], *queue.Queue[models.WorkoutPayload]) {
	t.Helper()
	q := queue.NewWorkoutQueue(storage.NewMemory(), nil)
	repo := NewRepository[models.Workout]()
	return NewMutator[models.WorkoutPayload, models.Workout](models.KindWorkout, repo, q), q
}

func TestMutator_CreateUpdateBeforeSync(t *testing.T) {
	ctx := context.Background()
	m, q := newWorkoutMutator(t)

	created, err := m.Create(ctx, "u1", models.Workout{Title: "Leg Day"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ClientID == "" || created.UserID != "u1" || created.SyncStatus != models.SyncStatusPending {
		t.Errorf("created = %+v", created)
	}

	created.Title = "Leg Day v2"
	if _, err := m.Update(ctx, "u1", created); err != nil {
		t.Fatalf("Update: %v", err)
	}

	list, _ := q.GetQueueForUser(ctx, "u1")
	if len(list) != 1 || list[0].Type != models.MutationCreate || *list[0].Payload.Title != "Leg Day v2" {
		t.Errorf("queue = %+v", list)
	}
	stored, _ := m.Repository().Get(created.ClientID)
	if stored.Title != "Leg Day v2" {
		t.Errorf("stored title = %q", stored.Title)
	}
}

func TestMutator_UpdateClearsFieldsBeforeSync(t *testing.T) {
	ctx := context.Background()
	m, q := newWorkoutMutator(t)
	done := time.Date(2026, 10, 19, 2, 18, 4, 0, time.UTC)

	created, err := m.Create(ctx, "u1", models.Workout{Title: "Pull", Notes: "lats", TemplateID: "t1", CompletedAt: &done})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	created.TemplateID = ""
	created.CompletedAt = nil
	created.Notes = ""
	if _, err := m.Update(ctx, "u1", created); err != nil {
		t.Fatalf("Update: %v", err)
	}

	list, _ := q.GetQueueForUser(ctx, "u1")
	if len(list) != 1 || list[0].Type != models.MutationCreate {
		t.Fatalf("queue = %+v", list)
	}
	p := list[0].Payload
	if p.TemplateID != nil || p.CompletedAt != nil {
		t.Errorf("cleared fields still queued: templateId=%v completedAt=%v", p.TemplateID, p.CompletedAt)
	}
	if p.Notes == nil || *p.Notes != "" || p.Title == nil || *p.Title != "Pull" {
		t.Errorf("payload = %+v", p)
	}
	if p.ClientID != created.ClientID {
		t.Errorf("ClientID = %q, want %q", p.ClientID, created.ClientID)
	}
}

func TestMutator_ProfileClearsWeightUnitBeforeSync(t *testing.T) {
	ctx := context.Background()
	q := queue.NewUserQueue(storage.NewMemory(), nil)
	m := NewMutator[models.UserPayload, models.UserProfile](models.KindUser, NewRepository[models.UserProfile](), q)

	created, err := m.Create(ctx, "u1", models.UserProfile{DisplayName: "Sam", WeightUnit: "lb", Goals: []string{"strength"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	created.WeightUnit = ""
	created.Goals = nil
	if _, err := m.Update(ctx, "u1", created); err != nil {
		t.Fatalf("Update: %v", err)
	}

	list, _ := q.GetQueueForUser(ctx, "u1")
	if len(list) != 1 {
		t.Fatalf("queue = %+v", list)
	}
	if p := list[0].Payload; p.WeightUnit != nil || len(p.Goals) != 0 {
		t.Errorf("payload = %+v, want weight unit and goals cleared", p)
	}
}

func TestMutator_UpdateKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	m, q := newWorkoutMutator(t)

	_ = m.Repository().Put(models.Workout{ClientID: "c1", ID: "s1", UserID: "u1", Title: "old", SyncStatus: models.SyncStatusSynced})

	got, err := m.Update(ctx, "u1", models.Workout{ClientID: "c1", Title: "new", ID: "forged"})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "s1" || got.UserID != "u1" || got.SyncStatus != models.SyncStatusPending {
		t.Errorf("updated = %+v", got)
	}

	list, _ := q.GetQueueForUser(ctx, "u1")
	if len(list) != 1 || list[0].Type != models.MutationUpdate || list[0].Payload.ServerKey() != "s1" {
		t.Errorf("queue = %+v", list)
	}
}

func TestMutator_DeleteUnsyncedCancelsCreate(t *testing.T) {
	ctx := context.Background()
	m, q := newWorkoutMutator(t)

	created, _ := m.Create(ctx, "u1", models.Workout{Title: "oops"})
	mutation, err := m.Delete(ctx, "u1", created.ClientID)
	if err != nil {
		t.Fatal(err)
	}
	if mutation != nil {
		t.Errorf("expected no DELETE, got %+v", mutation)
	}
	if _, ok := m.Repository().Get(created.ClientID); ok {
		t.Error("entity should be removed locally")
	}
	if list, _ := q.GetQueueForUser(ctx, "u1"); len(list) != 0 {
		t.Errorf("queue = %+v", list)
	}
}

func TestMutator_DeleteSyncedQueuesDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := newWorkoutMutator(t)
	_ = m.Repository().Put(models.Workout{ClientID: "c1", ID: "s1", UserID: "u1"})

	mutation, err := m.Delete(ctx, "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if mutation == nil || mutation.Type != models.MutationDelete || mutation.Payload.ServerKey() != "s1" {
		t.Errorf("mutation = %+v", mutation)
	}
}

func TestMutator_OwnershipAndMissing(t *testing.T) {
	ctx := context.Background()
	m, _ := newWorkoutMutator(t)
	_ = m.Repository().Put(models.Workout{ClientID: "c1", UserID: "u1"})

	if _, err := m.Update(ctx, "u2", models.Workout{ClientID: "c1"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Update other user err = %v", err)
	}
	if _, err := m.Delete(ctx, "u1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete missing err = %v", err)
	}
}

// failingQueue rejects every enqueue.
type failingQueue struct{}

var errQueueDown = errors.New("queue down")

func (failingQueue) EnqueueCreate(context.Context, models.TemplatePayload, string) (models.Mutation[models.TemplatePayload], error) {
	return models.Mutation[models.TemplatePayload]{}, errQueueDown
}

func (failingQueue) EnqueueUpdate(context.Context, models.TemplatePayload, string) (models.Mutation[models.TemplatePayload], error) {
	return models.Mutation[models.TemplatePayload]{}, errQueueDown
}

func (failingQueue) EnqueueDelete(context.Context, string, string, string) (*models.Mutation[models.TemplatePayload], error) {
	return nil, errQueueDown
}

func TestMutator_RollsBackOnQueueFailure(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[models.WorkoutTemplate]()
	m := NewMutator[models.TemplatePayload, models.WorkoutTemplate](models.KindTemplate, repo, failingQueue{})

	if _, err := m.Create(ctx, "u1", models.WorkoutTemplate{Name: "PPL"}); !errors.Is(err, errQueueDown) {
		t.Errorf("Create err = %v", err)
	}
	if repo.Len() != 0 {
		t.Error("failed create left an entity behind")
	}

	_ = repo.Put(models.WorkoutTemplate{ClientID: "t1", UserID: "u1", Name: "before"})
	if _, err := m.Update(ctx, "u1", models.WorkoutTemplate{ClientID: "t1", Name: "after"}); !errors.Is(err, errQueueDown) {
		t.Errorf("Update err = %v", err)
	}
	if got, _ := repo.Get("t1"); got.Name != "before" {
		t.Errorf("failed update not rolled back, name = %q", got.Name)
	}

	if _, err := m.Delete(ctx, "u1", "t1"); !errors.Is(err, errQueueDown) {
		t.Errorf("Delete err = %v", err)
	}
	if _, ok := repo.Get("t1"); !ok {
		t.Error("failed delete removed the entity")
	}
}
