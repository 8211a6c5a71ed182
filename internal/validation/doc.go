// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

// Package validation validates request bodies with go-playground/validator v10.
//
// A single validator instance is shared (it caches struct metadata) and
// reports fields by their JSON names. Failures convert to the API's
// VALIDATION_ERROR shape:
//
//	type createWorkoutRequest struct {
//	    Title     string        `json:"title" validate:"required,max=200"`
//	    Exercises []ExerciseLog `json:"exercises" validate:"dive"`
//	}
//
//	if err := validation.ValidateStruct(&req); err != nil {
//	    apiErr := err.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
//
// Custom tags:
//   - kind: a queue kind (workout, template, user)
//   - weightunit: kg or lb
package validation
