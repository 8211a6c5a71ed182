// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package api

import (
	"time"

	"github.com/tomtom215/liftsync/internal/models"
)

// WorkoutRequest is the body of POST/PUT /api/v1/workouts.
type WorkoutRequest struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Notes       string            `json:"notes" validate:"max=4000"`
	TemplateID  string            `json:"templateId" validate:"omitempty,max=100"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt *time.Time        `json:"completedAt"`
	Exercises   []ExerciseRequest `json:"exercises" validate:"max=100,dive"`
}

// ExerciseRequest is one logged exercise inside a WorkoutRequest.
type ExerciseRequest struct {
	ExerciseID string       `json:"exerciseId" validate:"required,max=100"`
	Name       string       `json:"name" validate:"required,max=200"`
	Notes      string       `json:"notes" validate:"max=2000"`
	Sets       []SetRequest `json:"sets" validate:"max=100,dive"`
}

// SetRequest is one performed set.
type SetRequest struct {
	Reps      int      `json:"reps" validate:"gte=0,lte=1000"`
	WeightKg  float64  `json:"weightKg" validate:"gte=0,lte=2000"`
	RPE       *float64 `json:"rpe" validate:"omitempty,gte=0,lte=10"`
	Completed bool     `json:"completed"`
}

func (r WorkoutRequest) toEntity() models.Workout {
	w := models.Workout{
		Title:       r.Title,
		Notes:       r.Notes,
		TemplateID:  r.TemplateID,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Exercises:   make([]models.ExerciseLog, 0, len(r.Exercises)),
	}
	for _, e := range r.Exercises {
		log := models.ExerciseLog{
			ExerciseID: e.ExerciseID,
			Name:       e.Name,
			Notes:      e.Notes,
			Sets:       make([]models.ExerciseSet, 0, len(e.Sets)),
		}
		for _, s := range e.Sets {
			log.Sets = append(log.Sets, models.ExerciseSet(s))
		}
		w.Exercises = append(w.Exercises, log)
	}
	return w
}

// TemplateRequest is the body of POST/PUT /api/v1/templates.
type TemplateRequest struct {
	Name        string                    `json:"name" validate:"required,max=200"`
	Description string                    `json:"description" validate:"max=4000"`
	Archived    bool                      `json:"archived"`
	Exercises   []TemplateExerciseRequest `json:"exercises" validate:"max=100,dive"`
}

// TemplateExerciseRequest is one planned exercise.
type TemplateExerciseRequest struct {
	ExerciseID  string `json:"exerciseId" validate:"required,max=100"`
	Name        string `json:"name" validate:"required,max=200"`
	TargetSets  int    `json:"targetSets" validate:"min=1,max=100"`
	TargetReps  int    `json:"targetReps" validate:"min=1,max=1000"`
	RestSeconds int    `json:"restSeconds" validate:"gte=0,lte=3600"`
}

func (r TemplateRequest) toEntity() models.WorkoutTemplate {
	t := models.WorkoutTemplate{
		Name:        r.Name,
		Description: r.Description,
		Archived:    r.Archived,
		Exercises:   make([]models.TemplateExercise, 0, len(r.Exercises)),
	}
	for _, e := range r.Exercises {
		t.Exercises = append(t.Exercises, models.TemplateExercise(e))
	}
	return t
}

// ProfileRequest is the body of POST/PUT /api/v1/profile.
type ProfileRequest struct {
	DisplayName      string   `json:"displayName" validate:"required,max=100"`
	WeightUnit       string   `json:"weightUnit" validate:"required,weightunit"`
	BodyweightKg     float64  `json:"bodyweightKg" validate:"gte=0,lte=1000"`
	RestTimerSeconds int      `json:"restTimerSeconds" validate:"gte=0,lte=3600"`
	Goals            []string `json:"goals" validate:"max=20,dive,required,max=200"`
}

func (r ProfileRequest) toEntity() models.UserProfile {
	goals := r.Goals
	if goals == nil {
		goals = []string{}
	}
	return models.UserProfile{
		DisplayName:      r.DisplayName,
		WeightUnit:       r.WeightUnit,
		BodyweightKg:     r.BodyweightKg,
		RestTimerSeconds: r.RestTimerSeconds,
		Goals:            goals,
	}
}
