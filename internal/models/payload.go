// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package models

import "time"

// ExerciseSet is one performed set inside a logged exercise.
type ExerciseSet struct {
	Reps      int      `json:"reps"`
	WeightKg  float64  `json:"weightKg"`
	RPE       *float64 `json:"rpe,omitempty"`
	Completed bool     `json:"completed"`
}

// ExerciseLog is an exercise performed during a workout.
type ExerciseLog struct {
	ExerciseID string        `json:"exerciseId"`
	Name       string        `json:"name"`
	Notes      string        `json:"notes,omitempty"`
	Sets       []ExerciseSet `json:"sets"`
}

// TemplateExercise is a planned exercise in a workout template.
type TemplateExercise struct {
	ExerciseID  string `json:"exerciseId"`
	Name        string `json:"name"`
	TargetSets  int    `json:"targetSets"`
	TargetReps  int    `json:"targetReps"`
	RestSeconds int    `json:"restSeconds,omitempty"`
}

// WorkoutPayload is the wire shape of a workout mutation. Nil fields are
// "not provided"; slices are never omitempty so an explicit empty list
// survives persistence. A Snapshot payload describes the whole entity, so a
// nil field in it means cleared.
type WorkoutPayload struct {
	Snapshot    bool          `json:"-"`
	ClientID    string        `json:"clientId" validate:"required"`
	ID          *string       `json:"id,omitempty"`
	Title       *string       `json:"title,omitempty"`
	Notes       *string       `json:"notes,omitempty"`
	TemplateID  *string       `json:"templateId,omitempty"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Exercises   []ExerciseLog `json:"exercises"`
}

func (p WorkoutPayload) ClientKey() string { return p.ClientID }
func (p WorkoutPayload) ServerKey() string { return deref(p.ID) }

func (p WorkoutPayload) Merge(newer WorkoutPayload) WorkoutPayload {
	if newer.Snapshot {
		newer.ClientID = p.ClientID
		newer.ID = pick(newer.ID, p.ID)
		return newer
	}
	return WorkoutPayload{
		ClientID:    p.ClientID,
		ID:          pick(newer.ID, p.ID),
		Title:       pick(newer.Title, p.Title),
		Notes:       pick(newer.Notes, p.Notes),
		TemplateID:  pick(newer.TemplateID, p.TemplateID),
		StartedAt:   pick(newer.StartedAt, p.StartedAt),
		CompletedAt: pick(newer.CompletedAt, p.CompletedAt),
		Exercises:   pickSlice(newer.Exercises, p.Exercises),
	}
}

func (WorkoutPayload) ForDelete(clientID, serverID string) WorkoutPayload {
	return WorkoutPayload{ClientID: clientID, ID: &serverID}
}

// TemplatePayload is the wire shape of a workout template mutation.
type TemplatePayload struct {
	Snapshot    bool               `json:"-"`
	ClientID    string             `json:"clientId" validate:"required"`
	ID          *string            `json:"id,omitempty"`
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	Archived    *bool              `json:"archived,omitempty"`
	Exercises   []TemplateExercise `json:"exercises"`
}

func (p TemplatePayload) ClientKey() string { return p.ClientID }
func (p TemplatePayload) ServerKey() string { return deref(p.ID) }

func (p TemplatePayload) Merge(newer TemplatePayload) TemplatePayload {
	if newer.Snapshot {
		newer.ClientID = p.ClientID
		newer.ID = pick(newer.ID, p.ID)
		return newer
	}
	return TemplatePayload{
		ClientID:    p.ClientID,
		ID:          pick(newer.ID, p.ID),
		Name:        pick(newer.Name, p.Name),
		Description: pick(newer.Description, p.Description),
		Archived:    pick(newer.Archived, p.Archived),
		Exercises:   pickSlice(newer.Exercises, p.Exercises),
	}
}

func (TemplatePayload) ForDelete(clientID, serverID string) TemplatePayload {
	return TemplatePayload{ClientID: clientID, ID: &serverID}
}

// UserPayload is the wire shape of a user profile/preference mutation.
type UserPayload struct {
	Snapshot         bool     `json:"-"`
	ClientID         string   `json:"clientId" validate:"required"`
	ID               *string  `json:"id,omitempty"`
	DisplayName      *string  `json:"displayName,omitempty"`
	WeightUnit       *string  `json:"weightUnit,omitempty" validate:"omitempty,oneof=kg lb"`
	BodyweightKg     *float64 `json:"bodyweightKg,omitempty"`
	RestTimerSeconds *int     `json:"restTimerSeconds,omitempty"`
	Goals            []string `json:"goals"`
}

func (p UserPayload) ClientKey() string { return p.ClientID }
func (p UserPayload) ServerKey() string { return deref(p.ID) }

func (p UserPayload) Merge(newer UserPayload) UserPayload {
	if newer.Snapshot {
		newer.ClientID = p.ClientID
		newer.ID = pick(newer.ID, p.ID)
		return newer
	}
	return UserPayload{
		ClientID:         p.ClientID,
		ID:               pick(newer.ID, p.ID),
		DisplayName:      pick(newer.DisplayName, p.DisplayName),
		WeightUnit:       pick(newer.WeightUnit, p.WeightUnit),
		BodyweightKg:     pick(newer.BodyweightKg, p.BodyweightKg),
		RestTimerSeconds: pick(newer.RestTimerSeconds, p.RestTimerSeconds),
		Goals:            pickSlice(newer.Goals, p.Goals),
	}
}

func (UserPayload) ForDelete(clientID, serverID string) UserPayload {
	return UserPayload{ClientID: clientID, ID: &serverID}
}

func pick[T any](newer, older *T) *T {
	if newer != nil {
		return newer
	}
	return older
}

func pickSlice[T any](newer, older []T) []T {
	if newer != nil {
		return newer
	}
	return older
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ptr returns a pointer to v. Handy when building payloads.
func Ptr[T any](v T) *T {
	return &v
}
