// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package netstatus

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/liftsync/internal/logging"
)

// ProberConfig configures health probing.
type ProberConfig struct {
	// URL is the full health endpoint, e.g. https://api.example.com/healthz.
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// Prober polls a health endpoint and feeds the result into a Monitor.
// It implements suture.Service.
type Prober struct {
	cfg     ProberConfig
	monitor *Monitor
	client  *http.Client
}

// NewProber returns a prober for monitor.
func NewProber(cfg ProberConfig, monitor *Monitor) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Prober{
		cfg:     cfg,
		monitor: monitor,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Serve probes immediately and then every Interval until ctx is done.
func (p *Prober) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.probeAndSet(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.probeAndSet(ctx)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (p *Prober) String() string {
	return "network-prober"
}

// Probe performs one health check and reports whether the backend answered 2xx.
func (p *Prober) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, http.NoBody)
	if err != nil {
		logging.Error().Err(err).Str("url", p.cfg.URL).Msg("Invalid health probe URL")
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		logging.Debug().Err(err).Msg("Health probe failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (p *Prober) probeAndSet(ctx context.Context) {
	online := p.Probe(ctx)
	if ctx.Err() != nil {
		return
	}
	p.monitor.SetOnline(online)
}

// HealthURL joins a base URL and a health path.
func HealthURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
