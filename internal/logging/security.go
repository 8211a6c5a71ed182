// Liftsync - Offline Mutation Queue and Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liftsync

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SessionEvent is an authentication transition worth auditing.
type SessionEvent struct {
	// Event is the transition name, e.g. "login", "logout".
	Event string
	// UserID is the authenticated subject, if known.
	UserID string
	// TokenID is the token's jti claim, if present.
	TokenID string
	Success bool
	Error   string
	Details map[string]string
}

// SecurityLogger logs session events with sensitive values masked.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger returns a logger tagged with component=session.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: With().Str("component", "session").Logger(),
	}
}

// NewSecurityLoggerWithLogger wraps a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// LogEvent writes event with every identifying field sanitized.
func (l *SecurityLogger) LogEvent(event *SessionEvent) {
	e := l.logger.Info()
	if !event.Success {
		e = l.logger.Warn()
	}
	e = e.Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}
	if event.UserID != "" {
		e = e.Str("user_id", SanitizeUserID(event.UserID))
	}
	if event.TokenID != "" {
		e = e.Str("token_id", SanitizeToken(event.TokenID))
	}
	if event.Error != "" && !event.Success {
		e = e.Str("error", SanitizeError(event.Error))
	}
	for k, v := range event.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}

	e.Msg("Session transition")
}

// LogLogin records a successful login.
func (l *SecurityLogger) LogLogin(userID, tokenID string) {
	l.LogEvent(&SessionEvent{Event: "login", UserID: userID, TokenID: tokenID, Success: true})
}

// LogLoginFailure records a rejected token.
func (l *SecurityLogger) LogLoginFailure(reason string) {
	l.LogEvent(&SessionEvent{Event: "login", Success: false, Error: reason})
}

// LogLogout records a logout.
func (l *SecurityLogger) LogLogout(userID string) {
	l.LogEvent(&SessionEvent{Event: "logout", UserID: userID, Success: true})
}

// SanitizeToken masks a token, showing only the first and last 4 characters.
// Example: "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9..." -> "eyJh...kpXV"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeUserID masks a user ID for privacy.
// Example: "user-12345678" -> "user...5678"
func SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) <= 8 {
		return "***"
	}
	return userID[:4] + "..." + userID[len(userID)-4:]
}

// SanitizeError hides messages that mention credentials and truncates the rest.
func SanitizeError(err string) string {
	lowerErr := strings.ToLower(err)
	for _, pattern := range []string{"password", "secret", "bearer", "authorization", "cookie"} {
		if strings.Contains(lowerErr, pattern) {
			return "authentication error"
		}
	}
	return truncateString(err, 200)
}

// SanitizeValue masks value when key names a credential.
func SanitizeValue(key, value string) string {
	switch strings.ToLower(key) {
	case "access_token", "refresh_token", "id_token", "token", "password",
		"secret", "api_key", "apikey", "authorization", "bearer", "cookie":
		return SanitizeToken(value)
	}
	return value
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
