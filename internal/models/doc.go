// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

/*
Package models defines the data structures shared by every Liftsync layer.

Key Components:

  - Mutation: one queued CREATE, UPDATE or DELETE intent, generic over payload
  - WorkoutPayload, TemplatePayload, UserPayload: typed wire payloads with
    per-field last-write-wins merge
  - Workout, WorkoutTemplate, UserProfile: local entities carrying both the
    client-generated clientId and the server-assigned id
  - APIResponse: standard response envelope for the local daemon API

Identity:

Every entity carries a ClientID assigned once at local creation and an ID that
stays empty until its CREATE succeeds. The queue and the reconciler key on
ClientID only.

Payload fields are pointers (or nil-able slices) so that "not provided" and
"provided as zero" stay distinguishable through Merge:

	older := models.WorkoutPayload{ClientID: "c1", Title: models.Ptr("Leg Day")}
	newer := models.WorkoutPayload{ClientID: "c1", Notes: models.Ptr("felt strong")}
	merged := older.Merge(newer) // Title "Leg Day", Notes "felt strong"
*/
package models
