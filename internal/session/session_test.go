// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-with-at-least-32-characters"

func TestNew_RequiresSecret(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("err = %v, want ErrEmptySecret", err)
	}
}

func TestSession_LoginLogout(t *testing.T) {
	s, err := New(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	var transitions []Transition
	s.Subscribe(func(tr Transition) { transitions = append(transitions, tr) })

	token, err := IssueToken(testSecret, "u1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	userID, err := s.Login(token)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if userID != "u1" || s.UserID() != "u1" || !s.Authenticated() || s.Token() != token {
		t.Errorf("session state after login: user=%q token set=%v", s.UserID(), s.Token() != "")
	}

	s.Logout()
	s.Logout()

	if s.Authenticated() || s.Token() != "" {
		t.Error("session still authenticated after logout")
	}
	if len(transitions) != 2 {
		t.Fatalf("transitions = %+v, want 2", transitions)
	}
	if !transitions[0].Authenticated || transitions[0].UserID != "u1" {
		t.Errorf("login transition = %+v", transitions[0])
	}
	if transitions[1].Authenticated || transitions[1].PreviousUserID != "u1" {
		t.Errorf("logout transition = %+v", transitions[1])
	}
}

func TestSession_SwitchUser(t *testing.T) {
	s, _ := New(testSecret)
	var last Transition
	s.Subscribe(func(tr Transition) { last = tr })

	t1, _ := IssueToken(testSecret, "u1", time.Hour)
	t2, _ := IssueToken(testSecret, "u2", time.Hour)
	_, _ = s.Login(t1)
	_, _ = s.Login(t2)

	if last.UserID != "u2" || last.PreviousUserID != "u1" {
		t.Errorf("transition = %+v", last)
	}
}

func TestSession_RejectsBadTokens(t *testing.T) {
	s, _ := New(testSecret)

	wrongSecret, _ := IssueToken("another-secret-with-32-characters!!", "u1", time.Hour)
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(testSecret))
	noSubject, _ := IssueToken(testSecret, "", time.Hour)
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", wrongSecret},
		{"expired", expired},
		{"no subject", noSubject},
		{"alg none", noneAlg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Login(tt.token); err == nil {
				t.Error("expected login to fail")
			}
			if s.Authenticated() {
				t.Error("session authenticated after rejected token")
			}
		})
	}
}

func TestSession_Expiry(t *testing.T) {
	s, _ := New(testSecret)
	token, _ := IssueToken(testSecret, "u1", time.Hour)
	if _, err := s.Login(token); err != nil {
		t.Fatal(err)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if s.Authenticated() || s.Token() != "" {
		t.Error("expired session should read as unauthenticated")
	}
	if s.ExpiresAt().IsZero() {
		t.Error("ExpiresAt should be recorded")
	}
}

func TestSession_Unsubscribe(t *testing.T) {
	s, _ := New(testSecret)
	calls := 0
	unsub := s.Subscribe(func(Transition) { calls++ })
	unsub()

	token, _ := IssueToken(testSecret, "u1", 0)
	_, _ = s.Login(token)
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}
