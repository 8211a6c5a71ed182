// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/liftsync/internal/config"
	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/models"
	"github.com/tomtom215/liftsync/internal/session"
	"github.com/tomtom215/liftsync/internal/storage"
	"github.com/tomtom215/liftsync/internal/syncer"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

const testSecret = "0123456789abcdef0123456789abcdef"

// loadTestConfig loads the real config layers with env overrides only.
func loadTestConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv(config.ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LIFTSYNC_JWT_SECRET", testSecret)
	t.Setenv("LIFTSYNC_STORAGE_IN_MEMORY", "true")
	t.Setenv("LIFTSYNC_REMOTE_BASE_URL", baseURL)
	t.Setenv("LIFTSYNC_REMOTE_HEALTH_PATH", "")
	t.Setenv("LIFTSYNC_SYNC_RETRY_DELAY", "1ms")
	t.Setenv("LIFTSYNC_DISABLE_RATE_LIMIT", "true")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func login(t *testing.T, h http.Handler, userID string) {
	t.Helper()
	token, err := session.IssueToken(testSecret, userID, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if code, env := call(t, h, http.MethodPost, "/api/v1/session", `{"token":"`+token+`"}`); code != http.StatusOK {
		t.Fatalf("login = %d %+v", code, env.Error)
	}
}

func TestDaemon_OfflineWriteThenSync(t *testing.T) {
	var posts atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/workouts" {
			http.Error(w, "unexpected", http.StatusNotFound)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		posts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"srv-1"}`))
	}))
	defer backend.Close()

	d, err := newDaemon(loadTestConfig(t, backend.URL), storage.NewMemory())
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	defer d.Close()
	h := d.handler

	login(t, h, "user-a")

	// Offline write is applied locally and queued.
	call(t, h, http.MethodPut, "/api/v1/network", `{"online":false}`)
	code, env := call(t, h, http.MethodPost, "/api/v1/workouts", `{"title":"Leg day","startedAt":"2026-01-05T07:00:00Z"}`)
	if code != http.StatusCreated {
		t.Fatalf("create = %d %+v", code, env.Error)
	}
	created := decode[models.Workout](t, env.Data)
	if created.SyncStatus != models.SyncStatusPending || created.ID != "" {
		t.Fatalf("created = %+v", created)
	}

	if code, _ := call(t, h, http.MethodPost, "/api/v1/sync", ""); code != http.StatusServiceUnavailable {
		t.Errorf("sync while offline = %d, want 503", code)
	}

	// Reconnect and sync.
	call(t, h, http.MethodPut, "/api/v1/network", `{"online":true}`)
	code, env = call(t, h, http.MethodPost, "/api/v1/sync", "")
	if code != http.StatusOK {
		t.Fatalf("sync = %d %+v", code, env.Error)
	}
	report := decode[syncer.RunReport](t, env.Data)
	if report.Synced() != 1 || posts.Load() != 1 {
		t.Errorf("synced = %d, backend posts = %d", report.Synced(), posts.Load())
	}

	_, env = call(t, h, http.MethodGet, "/api/v1/workouts/"+created.ClientID, "")
	got := decode[models.Workout](t, env.Data)
	if got.ID != "srv-1" || got.SyncStatus != models.SyncStatusSynced {
		t.Errorf("after sync = %+v", got)
	}

	_, env = call(t, h, http.MethodGet, "/api/v1/queues/workout", "")
	if pending := decode[[]json.RawMessage](t, env.Data); len(pending) != 0 {
		t.Errorf("pending after sync = %d", len(pending))
	}

	if last := d.orchestrator.LastRun(); last.RunID != report.RunID {
		t.Errorf("LastRun = %q, want %q", last.RunID, report.RunID)
	}
}

func TestDaemon_LocalOnlyKeepsQueue(t *testing.T) {
	d, err := newDaemon(loadTestConfig(t, ""), storage.NewMemory())
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	defer d.Close()
	h := d.handler

	if d.prober != nil {
		t.Error("no prober without a base URL")
	}

	login(t, h, "user-a")
	call(t, h, http.MethodPost, "/api/v1/templates", `{"name":"Push"}`)

	if code, _ := call(t, h, http.MethodPost, "/api/v1/sync", ""); code != http.StatusOK {
		t.Fatalf("sync = %d", code)
	}

	_, env := call(t, h, http.MethodGet, "/api/v1/status", "")
	status := decode[models.StatusResponse](t, env.Data)
	if status.Queues[models.KindTemplate].Pending != 1 {
		t.Errorf("template queue = %+v, want 1 pending", status.Queues[models.KindTemplate])
	}
}

func TestDaemon_ProberStartsOffline(t *testing.T) {
	cfg := loadTestConfig(t, "http://127.0.0.1:1")
	cfg.Remote.HealthPath = "/healthz"

	d, err := newDaemon(cfg, storage.NewMemory())
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	defer d.Close()

	if d.prober == nil {
		t.Fatal("prober should be configured")
	}
	if d.monitor.Online() {
		t.Error("monitor should start offline until the first probe")
	}
}

func TestOpenStorage(t *testing.T) {
	t.Run("memory has no GC", func(t *testing.T) {
		kv, gc, err := openStorage(config.StorageConfig{InMemory: true})
		if err != nil {
			t.Fatalf("openStorage: %v", err)
		}
		defer kv.Close()
		if gc != nil {
			t.Error("memory store should not expose GC")
		}
	})

	t.Run("encrypted badger", func(t *testing.T) {
		dir := t.TempDir()
		cfg := loadTestConfig(t, "").Storage
		cfg.InMemory = false
		cfg.Path = dir
		cfg.EncryptionSecret = "a-storage-secret-of-some-length"

		kv, gc, err := openStorage(cfg)
		if err != nil {
			t.Fatalf("openStorage: %v", err)
		}
		if gc == nil {
			t.Error("badger store should expose GC")
		}

		ctx := context.Background()
		if err := kv.Set(ctx, "queue:workout", []byte(`[]`)); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := kv.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}

		// The raw value on disk is not the plaintext.
		raw, err := storage.OpenBadger(cfg.BadgerConfig())
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		defer raw.Close()
		value, ok, err := raw.Get(ctx, "queue:workout")
		if err != nil || !ok {
			t.Fatalf("raw Get = %v, %v", ok, err)
		}
		if string(value) == "[]" {
			t.Error("value stored in plaintext")
		}
	})
}
