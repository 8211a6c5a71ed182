// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

/*
Package api serves the daemon's local HTTP surface on a chi router.

Local apps use it to write entities while offline, inspect the queues and
drive the session and network state the sync engine reacts to.

# Endpoints

	GET    /healthz                                   liveness
	GET    /metrics                                   Prometheus
	GET    /ws                                        status push (websocket)
	GET    /api/v1/status                             online, session, queue counts
	PUT    /api/v1/network                            {"online": bool}
	POST   /api/v1/session                            {"token": "<jwt>"}
	DELETE /api/v1/session[?purge=true]               logout
	POST   /api/v1/sync                               run now, returns the report
	GET    /api/v1/sync/last                          last report
	GET    /api/v1/queues/{kind}                      pending mutations
	GET    /api/v1/queues/{kind}/failed               quarantined mutations
	DELETE /api/v1/queues/{kind}/failed               drop quarantined mutations
	POST   /api/v1/queues/{kind}/failed/{queueId}/retry
	GET|POST            /api/v1/{workouts|templates|profile}
	GET|PUT|DELETE      /api/v1/{workouts|templates|profile}/{clientId}

Queue and entity routes require a session. Responses use the
models.APIResponse envelope.

# Middleware

Every request gets an X-Request-ID that logging.Ctx attaches to log lines.
CORS is handled by go-chi/cors and rate limits by go-chi/httprate.
Request latency is recorded per chi route pattern.
*/
package api
