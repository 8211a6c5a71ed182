// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/liftsync/internal/entity"
	"github.com/tomtom215/liftsync/internal/models"
)

type staticLister []models.Workout

func (l staticLister) List(context.Context) ([]models.Workout, error) {
	return l, nil
}

type failingLister struct{}

func (failingLister) List(context.Context) ([]models.Workout, error) {
	return nil, errors.New("backend unavailable")
}

func TestRefresher_Cooldown(t *testing.T) {
	r := NewRefresher(time.Hour)
	calls := 0
	r.Register(models.KindWorkout, func(context.Context, string) error {
		calls++
		return nil
	})
	ctx := context.Background()

	tests := []struct {
		name    string
		force   bool
		wantRan bool
		wantN   int
	}{
		{"first refresh runs", false, true, 1},
		{"second inside cooldown is throttled", false, false, 1},
		{"forced ignores cooldown", true, true, 2},
		{"still throttled after forced", false, false, 2},
	}

	for _, tt := range tests {
		ran, err := r.Refresh(ctx, "u1", tt.force)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if ran != tt.wantRan || calls != tt.wantN {
			t.Errorf("%s: ran=%v calls=%d, want %v %d", tt.name, ran, calls, tt.wantRan, tt.wantN)
		}
	}
}

func TestRefresher_JoinsErrors(t *testing.T) {
	r := NewRefresher(time.Hour)
	repo := entity.NewRepository[models.Workout]()
	r.Register(models.KindWorkout, RepositorySource[models.Workout](failingLister{}, repo))

	ran, err := r.Refresh(context.Background(), "u1", true)
	if !ran || err == nil {
		t.Errorf("ran=%v err=%v, want true and an error", ran, err)
	}
}

func TestRepositorySource_Merge(t *testing.T) {
	repo := entity.NewRepository[models.Workout]()
	seed := []models.Workout{
		{ClientID: "c1", ID: "s1", UserID: "u1", Title: "Old", SyncStatus: models.SyncStatusSynced},
		{ClientID: "c2", ID: "s2", UserID: "u1", Title: "Local edit", SyncStatus: models.SyncStatusPending},
		{ClientID: "c4", UserID: "u1", Title: "Never synced", SyncStatus: models.SyncStatusPending},
	}
	for _, w := range seed {
		if err := repo.Put(w); err != nil {
			t.Fatal(err)
		}
	}

	server := staticLister{
		{ID: "s1", Title: "Server title"},
		{ID: "s2", Title: "Server copy"},
		{ID: "s3", ClientID: "c3", Title: "From another device"},
		{ID: "s5", Title: "No client id"},
		{Title: "No server id"},
	}

	if err := RepositorySource[models.Workout](server, repo)(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}

	if w, _ := repo.Get("c1"); w.Title != "Server title" || w.UserID != "u1" || w.SyncStatus != models.SyncStatusSynced {
		t.Errorf("c1 = %+v", w)
	}
	if w, _ := repo.Get("c2"); w.Title != "Local edit" || w.SyncStatus != models.SyncStatusPending {
		t.Errorf("c2 = %+v, want unsynced local edit kept", w)
	}
	if w, ok := repo.Get("c3"); !ok || w.UserID != "u1" || w.SyncStatus != models.SyncStatusSynced {
		t.Errorf("c3 = %+v, %v", w, ok)
	}
	if _, ok := repo.Get("c4"); !ok {
		t.Error("local-only entity removed")
	}
	w5, ok := repo.FindByServerID("s5")
	if !ok || w5.ClientID == "" {
		t.Errorf("s5 = %+v, want a generated clientId", w5)
	}
	if repo.Len() != 5 {
		t.Errorf("Len = %d, want 5", repo.Len())
	}
}
