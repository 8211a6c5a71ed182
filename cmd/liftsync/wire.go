// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package main

import (
	"fmt"
	"net/http"

	"github.com/tomtom215/liftsync/internal/api"
	"github.com/tomtom215/liftsync/internal/config"
	"github.com/tomtom215/liftsync/internal/entity"
	"github.com/tomtom215/liftsync/internal/eventbus"
	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/models"
	"github.com/tomtom215/liftsync/internal/netstatus"
	"github.com/tomtom215/liftsync/internal/queue"
	"github.com/tomtom215/liftsync/internal/reconcile"
	"github.com/tomtom215/liftsync/internal/remote"
	"github.com/tomtom215/liftsync/internal/session"
	"github.com/tomtom215/liftsync/internal/storage"
	"github.com/tomtom215/liftsync/internal/supervisor/services"
	"github.com/tomtom215/liftsync/internal/syncer"
	ws "github.com/tomtom215/liftsync/internal/websocket"
)

// daemon holds the wired components main hands to the supervisor tree.
type daemon struct {
	session      *session.Session
	monitor      *netstatus.Monitor
	bus          *eventbus.Bus
	orchestrator *syncer.Orchestrator
	trigger      *syncer.Trigger
	prober       *netstatus.Prober // nil when probing is disabled
	hub          *ws.Hub
	handler      http.Handler

	detach func()
}

// Close detaches the status broadcaster from its sources.
func (d *daemon) Close() {
	if d.detach != nil {
		d.detach()
	}
}

// openStorage opens the configured store. gc is nil unless the store is
// Badger; the encryption wrapper leaves the underlying GC reachable.
func openStorage(cfg config.StorageConfig) (kv storage.KV, gc services.GCRunner, err error) {
	if cfg.InMemory {
		logging.Warn().Msg("Storage is in memory; queued mutations are lost on exit")
		kv = storage.NewMemory()
	} else {
		badgerKV, err := storage.OpenBadger(cfg.BadgerConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("open storage: %w", err)
		}
		kv, gc = badgerKV, badgerKV
		logging.Info().Str("path", cfg.Path).Msg("Badger storage opened")
	}

	if cfg.EncryptionSecret == "" {
		return kv, gc, nil
	}
	encrypted, err := storage.NewEncrypted(kv, cfg.EncryptionSecret)
	if err != nil {
		_ = kv.Close()
		return nil, nil, fmt.Errorf("enable storage encryption: %w", err)
	}
	logging.Info().Msg("Storage encryption enabled")
	return encrypted, gc, nil
}

// kindStack is one entity kind's local side: queue, repository, reconciler
// and the mutator the API writes through.
type kindStack[P models.Payload[P], E entity.Syncable[P, E]] struct {
	queue   *queue.Queue[P]
	repo    *entity.Repository[E]
	recon   *reconcile.Reconciler[E]
	mutator *entity.Mutator[P, E]
}

func newKindStack[P models.Payload[P], E entity.Syncable[P, E]](kind models.Kind, q *queue.Queue[P]) kindStack[P, E] {
	repo := entity.NewRepository[E]()
	return kindStack[P, E]{
		queue:   q,
		repo:    repo,
		recon:   reconcile.New[E](kind, repo),
		mutator: entity.NewMutator[P, E](kind, repo, q),
	}
}

// pipeline connects the stack to a remote resource behind a circuit breaker
// and registers the resource as a refresh source.
func (s kindStack[P, E]) pipeline(cfg *config.Config, resource string, tokens remote.TokenSource, refresher *syncer.Refresher) *syncer.Pipeline[P, E] {
	client := remote.NewClient[P, E](cfg.Remote.ClientConfig(), resource, tokens)
	breaker := remote.NewBreaker[P, E](resource, client, cfg.Remote.Breaker.Remote())
	refresher.Register(s.queue.Kind(), syncer.RepositorySource[E](client, s.repo))
	return syncer.NewPipeline[P, E](s.queue, breaker, s.recon, s.repo, cfg.Sync.Policy())
}

// newDaemon wires every component on top of kv. Nothing is started.
func newDaemon(cfg *config.Config, kv storage.KV) (*daemon, error) {
	sess, err := session.New(cfg.Session.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	bus := eventbus.New()

	workouts := newKindStack[models.WorkoutPayload, models.Workout](models.KindWorkout, queue.NewWorkoutQueue(kv, bus))
	templates := newKindStack[models.TemplatePayload, models.WorkoutTemplate](models.KindTemplate, queue.NewTemplateQueue(kv, bus))
	profiles := newKindStack[models.UserPayload, models.UserProfile](models.KindUser, queue.NewUserQueue(kv, bus))

	proberCfg, probing := cfg.Remote.ProberConfig()

	// With a prober the daemon starts offline and waits for the first
	// successful probe; otherwise the host app reports connectivity.
	monitor := netstatus.NewMonitor(!probing)

	refresher := syncer.NewRefresher(cfg.Sync.RefreshCooldown)

	// Workouts reference templates and the profile carries preferences the
	// apps read last, so the orchestrator drains in this order.
	var processors []syncer.Processor
	if cfg.Remote.BaseURL != "" {
		processors = append(processors,
			workouts.pipeline(cfg, cfg.Remote.WorkoutsResource, sess, refresher),
			templates.pipeline(cfg, cfg.Remote.TemplatesResource, sess, refresher),
			profiles.pipeline(cfg, cfg.Remote.UsersResource, sess, refresher),
		)
		logging.Info().Str("base_url", cfg.Remote.BaseURL).Msg("Remote entity service configured")
	} else {
		logging.Warn().Msg("No remote.base_url configured; mutations are queued but never delivered")
	}

	orchestrator := syncer.NewOrchestrator(sess, monitor, processors...)
	trigger := syncer.NewTrigger(cfg.Sync.TriggerConfig(), orchestrator, monitor, sess, bus, refresher)

	hub := ws.NewHub()
	handler := api.NewHandler(api.Dependencies{
		Session:   sess,
		Network:   monitor,
		Sync:      orchestrator,
		Hub:       hub,
		Workouts:  api.NewWorkoutHandler(workouts.mutator),
		Templates: api.NewTemplateHandler(templates.mutator),
		Profiles:  api.NewProfileHandler(profiles.mutator),
		Queues: []api.QueueView{
			api.NewQueueAdapter[models.WorkoutPayload](workouts.queue, workouts.recon),
			api.NewQueueAdapter[models.TemplatePayload](templates.queue, templates.recon),
			api.NewQueueAdapter[models.UserPayload](profiles.queue, profiles.recon),
		},
		AllowedOrigins: cfg.Server.CORSOrigins,
	})

	status := ws.NewStatusBroadcaster(hub, handler.QueueCounts)
	detach := status.Attach(bus, monitor, sess)
	orchestrator.SetOnRunCompleted(status.SyncCompleted)

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Server.RateLimitRequests
	mwCfg.RateLimitWindow = cfg.Server.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Server.RateLimitDisabled

	d := &daemon{
		session:      sess,
		monitor:      monitor,
		bus:          bus,
		orchestrator: orchestrator,
		trigger:      trigger,
		hub:          hub,
		handler:      api.NewRouter(handler, api.NewChiMiddleware(mwCfg)).SetupChi(),
		detach:       detach,
	}
	if probing {
		d.prober = netstatus.NewProber(proberCfg, monitor)
	}
	return d, nil
}
