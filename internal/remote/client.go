// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

// Package remote talks to the authoritative REST backend.
//
// Each entity kind is served by a Client bound to one resource path:
//
//	POST   /{resource}        create, returns the server entity or {"id": ...}
//	PUT    /{resource}/{id}   update, returns the server entity or {"id": ...}
//	DELETE /{resource}/{id}   delete
//	GET    /{resource}        list the caller's entities (refresh)
//
// Breaker wraps a Service with a circuit breaker. Classify turns any error
// from either into a Terminal or Transient class.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/liftsync/internal/logging"
	"github.com/tomtom215/liftsync/internal/models"
)

const (
	// maxBodySize bounds how much of a response is read.
	maxBodySize = 1 << 20

	headerRequestID = "X-Request-ID"
	headerRunID     = "X-Sync-Run-ID"
)

// Resource paths per kind.
const (
	ResourceWorkouts  = "workouts"
	ResourceTemplates = "templates"
	ResourceProfile   = "profile"
)

// Service is the per-kind entity service the orchestrator delivers to.
type Service[P any, E any] interface {
	Create(ctx context.Context, payload P) (models.Ack[E], error)
	Update(ctx context.Context, id string, payload P) (models.Ack[E], error)
	Delete(ctx context.Context, id string) error
}

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client is the REST implementation of Service for one resource.
type Client[P any, E models.Entity[E]] struct {
	baseURL   string
	resource  string
	userAgent string
	http      *http.Client
	tokens    TokenSource
}

// NewClient returns a client for resource. tokens may be nil.
func NewClient[P any, E models.Entity[E]](cfg Config, resource string, tokens TokenSource) *Client[P, E] {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client[P, E]{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		resource:  strings.Trim(resource, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: timeout},
		tokens:    tokens,
	}
}

// Resource returns the resource path this client is bound to.
func (c *Client[P, E]) Resource() string { return c.resource }

// Create implements Service.
func (c *Client[P, E]) Create(ctx context.Context, payload P) (models.Ack[E], error) {
	body, err := c.do(ctx, http.MethodPost, c.collectionURL(), payload)
	if err != nil {
		return models.Ack[E]{}, err
	}
	return decodeAck[E](body)
}

// Update implements Service.
func (c *Client[P, E]) Update(ctx context.Context, id string, payload P) (models.Ack[E], error) {
	if id == "" {
		return models.Ack[E]{}, fmt.Errorf("%w: update without server id", ErrInvalidMutation)
	}
	body, err := c.do(ctx, http.MethodPut, c.itemURL(id), payload)
	if err != nil {
		return models.Ack[E]{}, err
	}
	return decodeAck[E](body)
}

// Delete implements Service. A 404 means the entity is already gone and
// counts as success.
func (c *Client[P, E]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: delete without server id", ErrInvalidMutation)
	}
	_, err := c.do(ctx, http.MethodDelete, c.itemURL(id), nil)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		logging.Debug().Str("resource", c.resource).Str("id", id).Msg("Delete target already gone")
		return nil
	}
	return err
}

// List returns every entity of this resource visible to the caller. A
// single-object body is returned as a one-item list.
func (c *Client[P, E]) List(ctx context.Context) ([]E, error) {
	body, err := c.do(ctx, http.MethodGet, c.collectionURL(), nil)
	if err != nil {
		return nil, err
	}
	var items []E
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return items, nil
	}
	// Singleton resources such as the profile answer with one object.
	if trimmed[0] == '{' {
		var item E
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.resource, err)
		}
		return []E{item}, nil
	}
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", c.resource, err)
	}
	return items, nil
}

func (c *Client[P, E]) collectionURL() string {
	return c.baseURL + "/" + c.resource
}

func (c *Client[P, E]) itemURL(id string) string {
	return c.collectionURL() + "/" + url.PathEscape(id)
}

func (c *Client[P, E]) do(ctx context.Context, method, reqURL string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encode payload: %v", ErrInvalidMutation, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	req.Header.Set(headerRequestID, uuid.New().String())
	if runID := logging.RunIDFromContext(ctx); runID != "" {
		req.Header.Set(headerRunID, runID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, c.resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", c.resource, err)
	}

	logging.Ctx(ctx).Debug().
		Str("method", method).
		Str("resource", c.resource).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Remote request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

// statusError builds a StatusError, reading {"code","message"} or
// {"error":{"code","message"}} bodies when present.
func statusError(status int, body []byte) *StatusError {
	se := &StatusError{StatusCode: status}

	var flat struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil {
		se.Code, se.Message = flat.Code, flat.Message
		if flat.Error != nil {
			se.Code, se.Message = flat.Error.Code, flat.Error.Message
		}
	}
	if se.Message == "" {
		se.Message = strings.TrimSpace(string(body))
		if len(se.Message) > 256 {
			se.Message = se.Message[:256]
		}
	}
	return se
}

// decodeAck turns a success body into an Ack: empty bodies acknowledge
// without data, {"id": "..."} echoes only the server id, anything else is
// the full server entity.
func decodeAck[E models.Entity[E]](body []byte) (models.Ack[E], error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return models.Ack[E]{}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return models.Ack[E]{}, fmt.Errorf("decode response: %w", err)
	}
	if raw, ok := fields["id"]; ok && len(fields) == 1 {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return models.Ack[E]{}, fmt.Errorf("decode id: %w", err)
		}
		return models.Ack[E]{ServerID: id}, nil
	}

	var entity E
	if err := json.Unmarshal(body, &entity); err != nil {
		return models.Ack[E]{}, fmt.Errorf("decode entity: %w", err)
	}
	return models.Ack[E]{ServerID: entity.ServerKey(), Entity: &entity}, nil
}
