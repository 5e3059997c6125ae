// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for API authentication, rate
// limiting, static page caching and request metrics.
package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/store"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyAPIKey holds the authenticated model.APIKey.
const ContextKeyAPIKey ContextKey = "api_key"

// lastUsedResolution limits last_used_at writes to one per key and minute.
const lastUsedResolution = time.Minute

// Authentication failures.
var (
	ErrMissingAuthorization   = errors.New("missing authorization header")
	ErrMalformedAuthorization = errors.New("malformed authorization header")
	ErrEmptyAPIKey            = errors.New("empty api key")
	ErrUnknownAPIKey          = errors.New("unknown api key")
	ErrInactiveAPIKey         = errors.New("inactive api key")
	ErrExpiredAPIKey          = errors.New("expired api key")
)

// authMessages are the client-facing messages of the authentication failures.
var authMessages = map[error]string{
	ErrMissingAuthorization:   "Missing Authorization header",
	ErrMalformedAuthorization: "Invalid Authorization header format. Use: Bearer <api_key>",
	ErrEmptyAPIKey:            "API key is empty",
	ErrUnknownAPIKey:          "Invalid API key",
	ErrInactiveAPIKey:         "API key is inactive",
	ErrExpiredAPIKey:          "API key has expired",
}

// APIError is the JSON error envelope shared with the API handlers.
type APIError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// WriteAPIError writes a JSON error response.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	var body APIError
	body.Error.Code = code
	body.Error.Message = message
	body.Error.Details = details

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// authFailureMessage returns the client message for an authentication
// failure, or false for any other error.
func authFailureMessage(err error) (string, bool) {
	for target, msg := range authMessages {
		if errors.Is(err, target) {
			return msg, true
		}
	}
	return "", false
}

// bearerToken extracts the token of a "Bearer <token>" header value.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthorization
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrMalformedAuthorization
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyAPIKey
	}
	return token, nil
}

// authenticate resolves the key presented in header.
func authenticate(ctx context.Context, q *store.Queries, header string) (model.APIKey, error) {
	token, err := bearerToken(header)
	if err != nil {
		return model.APIKey{}, err
	}
	key, err := q.GetAPIKeyByHash(ctx, model.HashAPIKey(token))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.APIKey{}, ErrUnknownAPIKey
	case err != nil:
		return model.APIKey{}, err
	case !key.IsActive:
		return model.APIKey{}, ErrInactiveAPIKey
	case key.IsExpired():
		return model.APIKey{}, ErrExpiredAPIKey
	}
	return key, nil
}

// APIKeyAuth authenticates requests by their Bearer API key and stores the
// key in the request context.
func APIKeyAuth(db *sql.DB, logger *slog.Logger) func(http.Handler) http.Handler {
	queries := store.New(db)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := authenticate(r.Context(), queries, r.Header.Get("Authorization"))
			if err != nil {
				if msg, ok := authFailureMessage(err); ok {
					WriteAPIError(w, http.StatusUnauthorized, "unauthorized", msg, nil)
					return
				}
				logger.Error("failed to validate API key", "error", err)
				WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to validate API key", nil)
				return
			}

			touchLastUsed(queries, key, logger)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ContextKeyAPIKey, key)))
		})
	}
}

// touchLastUsed records key usage off the request path.
func touchLastUsed(queries *store.Queries, key model.APIKey, logger *slog.Logger) {
	now := time.Now().UTC()
	if key.LastUsedAt.Valid && now.Sub(key.LastUsedAt.Time) < lastUsedResolution {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := queries.UpdateAPIKeyLastUsed(ctx, key.ID, now.Truncate(time.Second)); err != nil {
			logger.Debug("updating api key last use", "api_key_id", key.ID, "error", err)
		}
	}()
}

// GetAPIKey returns the authenticated key, or nil outside APIKeyAuth.
func GetAPIKey(r *http.Request) *model.APIKey {
	key, ok := r.Context().Value(ContextKeyAPIKey).(model.APIKey)
	if !ok {
		return nil
	}
	return &key
}

// RequirePermission admits keys holding any one of perms. It must run after
// APIKeyAuth.
func RequirePermission(perms ...string) func(http.Handler) http.Handler {
	denied := "API key lacks required permission: " + strings.Join(perms, " or ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetAPIKey(r)
			if key == nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "API key required", nil)
				return
			}
			if !key.HasAnyPermission(perms...) {
				WriteAPIError(w, http.StatusForbidden, "forbidden", denied, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
