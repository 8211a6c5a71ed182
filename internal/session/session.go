// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

// Package session holds the authenticated user context.
//
// A Session is logged in with an HS256 JWT issued by the backend; its "sub"
// claim becomes the userId that partitions the mutation queues. Subscribers
// are told about every login and logout transition.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/liftsync/internal/logging"
)

var (
	// ErrEmptySecret is returned when no signing secret is configured.
	ErrEmptySecret = errors.New("session jwt secret is required")

	// ErrMissingSubject is returned for tokens without a "sub" claim.
	ErrMissingSubject = errors.New("token has no subject")
)

// Claims are the JWT claims the session reads.
type Claims struct {
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Transition describes a login or logout.
type Transition struct {
	Authenticated bool
	UserID        string
	// PreviousUserID is set when a login replaces another user's session.
	PreviousUserID string
}

// Session is the auth context consumed by the sync layer.
type Session struct {
	secret []byte
	audit  *logging.SecurityLogger
	now    func() time.Time

	mu        sync.RWMutex
	userID    string
	token     string
	expiresAt time.Time

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Transition)
	order  []int
}

// New returns a logged-out session verifying tokens with secret.
func New(secret string) (*Session, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Session{
		secret: []byte(secret),
		audit:  logging.NewSecurityLogger(),
		now:    time.Now,
		subs:   make(map[int]func(Transition)),
	}, nil
}

// Login validates token and makes its subject the current user.
func (s *Session) Login(token string) (string, error) {
	claims, err := s.validate(token)
	if err != nil {
		s.audit.LogLoginFailure(err.Error())
		return "", err
	}

	s.mu.Lock()
	previous := s.userID
	s.userID = claims.Subject
	s.token = token
	s.expiresAt = time.Time{}
	if claims.ExpiresAt != nil {
		s.expiresAt = claims.ExpiresAt.Time
	}
	s.mu.Unlock()

	s.audit.LogLogin(claims.Subject, claims.ID)

	t := Transition{Authenticated: true, UserID: claims.Subject}
	if previous != claims.Subject {
		t.PreviousUserID = previous
	}
	s.notify(t)
	return claims.Subject, nil
}

// Logout clears the session. Logging out while logged out does nothing.
func (s *Session) Logout() {
	s.mu.Lock()
	userID := s.userID
	s.userID, s.token, s.expiresAt = "", "", time.Time{}
	s.mu.Unlock()

	if userID == "" {
		return
	}
	s.audit.LogLogout(userID)
	s.notify(Transition{Authenticated: false, PreviousUserID: userID})
}

// UserID returns the current user, or "" when unauthenticated or expired.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expiredLocked() {
		return ""
	}
	return s.userID
}

// Authenticated reports whether a valid, unexpired session exists.
func (s *Session) Authenticated() bool {
	return s.UserID() != ""
}

// Token returns the bearer token, or "" when unauthenticated or expired.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expiredLocked() {
		return ""
	}
	return s.token
}

// ExpiresAt returns the token expiry, zero when the token has none.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// Subscribe registers fn for login and logout transitions.
func (s *Session) Subscribe(fn func(Transition)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.order = append(s.order, id)
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subs, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Session) notify(t Transition) {
	s.subMu.Lock()
	fns := make([]func(Transition), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(t)
	}
}

func (s *Session) expiredLocked() bool {
	return !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt)
}

func (s *Session) validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// IssueToken signs an HS256 token for userID. Used by tests and the
// development login flag.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
