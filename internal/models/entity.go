// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package models

import "time"

// Workout is a logged training session.
type Workout struct {
	ClientID    string        `json:"clientId"`
	ID          string        `json:"id,omitempty"`
	UserID      string        `json:"userId"`
	Title       string        `json:"title"`
	Notes       string        `json:"notes,omitempty"`
	TemplateID  string        `json:"templateId,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Exercises   []ExerciseLog `json:"exercises"`
	SyncStatus  SyncStatus    `json:"syncStatus,omitempty"`
}

func (w Workout) ClientKey() string  { return w.ClientID }
func (w Workout) ServerKey() string  { return w.ID }
func (w Workout) Owner() string      { return w.UserID }
func (w Workout) Status() SyncStatus { return w.SyncStatus }

func (w Workout) WithServerID(id string) Workout {
	w.ID = id
	return w
}

func (w Workout) WithIdentity(clientID, userID string) Workout {
	w.ClientID = clientID
	w.UserID = userID
	return w
}

func (w Workout) WithSyncStatus(status SyncStatus) Workout {
	w.SyncStatus = status
	return w
}

func (w Workout) AdoptLocal(local Workout) Workout {
	w.ClientID = local.ClientID
	if w.UserID == "" {
		w.UserID = local.UserID
	}
	if w.Exercises == nil {
		w.Exercises = local.Exercises
	}
	return w
}

// ToPayload returns the full snapshot payload for w.
func (w Workout) ToPayload() WorkoutPayload {
	p := WorkoutPayload{
		Snapshot:    true,
		ClientID:    w.ClientID,
		Title:       Ptr(w.Title),
		Notes:       Ptr(w.Notes),
		CompletedAt: w.CompletedAt,
		Exercises:   w.Exercises,
	}
	if w.ID != "" {
		p.ID = Ptr(w.ID)
	}
	if w.TemplateID != "" {
		p.TemplateID = Ptr(w.TemplateID)
	}
	if !w.StartedAt.IsZero() {
		p.StartedAt = Ptr(w.StartedAt)
	}
	if p.Exercises == nil {
		p.Exercises = []ExerciseLog{}
	}
	return p
}

// WorkoutTemplate is a reusable workout plan.
type WorkoutTemplate struct {
	ClientID    string             `json:"clientId"`
	ID          string             `json:"id,omitempty"`
	UserID      string             `json:"userId"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Archived    bool               `json:"archived,omitempty"`
	Exercises   []TemplateExercise `json:"exercises"`
	SyncStatus  SyncStatus         `json:"syncStatus,omitempty"`
}

func (t WorkoutTemplate) ClientKey() string  { return t.ClientID }
func (t WorkoutTemplate) ServerKey() string  { return t.ID }
func (t WorkoutTemplate) Owner() string      { return t.UserID }
func (t WorkoutTemplate) Status() SyncStatus { return t.SyncStatus }

func (t WorkoutTemplate) WithServerID(id string) WorkoutTemplate {
	t.ID = id
	return t
}

func (t WorkoutTemplate) WithIdentity(clientID, userID string) WorkoutTemplate {
	t.ClientID = clientID
	t.UserID = userID
	return t
}

func (t WorkoutTemplate) WithSyncStatus(status SyncStatus) WorkoutTemplate {
	t.SyncStatus = status
	return t
}

func (t WorkoutTemplate) AdoptLocal(local WorkoutTemplate) WorkoutTemplate {
	t.ClientID = local.ClientID
	if t.UserID == "" {
		t.UserID = local.UserID
	}
	if t.Exercises == nil {
		t.Exercises = local.Exercises
	}
	return t
}

// ToPayload returns the full snapshot payload for t.
func (t WorkoutTemplate) ToPayload() TemplatePayload {
	p := TemplatePayload{
		Snapshot:    true,
		ClientID:    t.ClientID,
		Name:        Ptr(t.Name),
		Description: Ptr(t.Description),
		Archived:    Ptr(t.Archived),
		Exercises:   t.Exercises,
	}
	if t.ID != "" {
		p.ID = Ptr(t.ID)
	}
	if p.Exercises == nil {
		p.Exercises = []TemplateExercise{}
	}
	return p
}

// UserProfile holds per-user preferences synced to the server.
type UserProfile struct {
	ClientID         string     `json:"clientId"`
	ID               string     `json:"id,omitempty"`
	UserID           string     `json:"userId"`
	DisplayName      string     `json:"displayName"`
	WeightUnit       string     `json:"weightUnit"`
	BodyweightKg     float64    `json:"bodyweightKg,omitempty"`
	RestTimerSeconds int        `json:"restTimerSeconds,omitempty"`
	Goals            []string   `json:"goals"`
	SyncStatus       SyncStatus `json:"syncStatus,omitempty"`
}

func (u UserProfile) ClientKey() string  { return u.ClientID }
func (u UserProfile) ServerKey() string  { return u.ID }
func (u UserProfile) Owner() string      { return u.UserID }
func (u UserProfile) Status() SyncStatus { return u.SyncStatus }

func (u UserProfile) WithServerID(id string) UserProfile {
	u.ID = id
	return u
}

func (u UserProfile) WithIdentity(clientID, userID string) UserProfile {
	u.ClientID = clientID
	u.UserID = userID
	return u
}

func (u UserProfile) WithSyncStatus(status SyncStatus) UserProfile {
	u.SyncStatus = status
	return u
}

func (u UserProfile) AdoptLocal(local UserProfile) UserProfile {
	u.ClientID = local.ClientID
	if u.UserID == "" {
		u.UserID = local.UserID
	}
	if u.Goals == nil {
		u.Goals = local.Goals
	}
	return u
}

// ToPayload returns the full snapshot payload for u.
func (u UserProfile) ToPayload() UserPayload {
	p := UserPayload{
		Snapshot:         true,
		ClientID:         u.ClientID,
		DisplayName:      Ptr(u.DisplayName),
		BodyweightKg:     Ptr(u.BodyweightKg),
		RestTimerSeconds: Ptr(u.RestTimerSeconds),
		Goals:            u.Goals,
	}
	if u.ID != "" {
		p.ID = Ptr(u.ID)
	}
	if u.WeightUnit != "" {
		p.WeightUnit = Ptr(u.WeightUnit)
	}
	if p.Goals == nil {
		p.Goals = []string{}
	}
	return p
}
