// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the JSON administration API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/olegiv/pagescore/internal/metrics"
	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/page"
	"github.com/olegiv/pagescore/internal/scheduler"
	"github.com/olegiv/pagescore/internal/service"
)

// conflictRetryAfter is the Retry-After hint, in seconds, sent when a
// mutation lost every optimistic-lock retry.
const conflictRetryAfter = "1"

// EffectRunner executes the side effects returned by page mutations.
type EffectRunner interface {
	Run(effects page.Effects)
}

// StaticCache sweeps the static page cache on demand.
type StaticCache interface {
	SweepNow(ctx context.Context) (int, error)
}

// Deps are the collaborators of the API handlers. Events, Jobs and Cache
// may be nil, in which case their endpoints answer 503.
type Deps struct {
	Pages   *page.Service
	Effects EffectRunner
	Events  *service.EventService
	Jobs    *scheduler.Registry
	Cache   StaticCache
	Metrics *metrics.Metrics
	Version string
	Logger  *slog.Logger
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	pages    *page.Service
	effects  EffectRunner
	events   *service.EventService
	jobs     *scheduler.Registry
	cache    StaticCache
	metrics  *metrics.Metrics
	version  string
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pages:    d.Pages,
		effects:  d.Effects,
		events:   d.Events,
		jobs:     d.Jobs,
		cache:    d.Cache,
		metrics:  d.Metrics,
		version:  d.Version,
		logger:   logger,
		validate: v,
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page,omitempty"`
	PerPage int   `json:"per_page,omitempty"`
	Pages   int   `json:"pages,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 422 Unprocessable Entity response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", fieldErrors)
}

// WriteUnavailable writes a 503 Service Unavailable response.
func WriteUnavailable(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusServiceUnavailable, code, message, nil)
}

// writeServiceError maps page service errors onto HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var ve *page.ValidationError
	var se *page.StructuralError
	switch {
	case errors.As(err, &ve):
		WriteValidationError(w, ve.Fields)
	case errors.As(err, &se):
		WriteError(w, http.StatusConflict, "structural_error", se.Reason, map[string]string{
			"op":      se.Op,
			"page_id": formatID(se.PageID),
		})
	case errors.Is(err, page.ErrNotFound):
		WriteNotFound(w, "Page not found")
	case errors.Is(err, page.ErrConcurrencyConflict):
		w.Header().Set("Retry-After", conflictRetryAfter)
		WriteUnavailable(w, "conflict", "The page was modified concurrently, retry the request")
	default:
		h.logger.Error("api operation failed", "op", op, "error", err)
		WriteInternalError(w, "Failed to "+op)
	}
}

// decodeAndValidate decodes a JSON body into v and runs struct validation.
// It writes the error response and returns false on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteBadRequest(w, "Invalid JSON body", map[string]string{"body": err.Error()})
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			WriteBadRequest(w, "Invalid request", nil)
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
		WriteValidationError(w, fields)
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "unique":
		return "must not contain duplicates"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

// StatusResponse contains API status information.
type StatusResponse struct {
	Status   string               `json:"status"`
	Version  string               `json:"version"`
	Statuses []model.StatusOption `json:"statuses"`
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, StatusResponse{
		Status:   "ok",
		Version:  h.version,
		Statuses: model.StatusOptions(),
	}, nil)
}

// AuthInfo handles GET /api/v1/auth and describes the calling API key.
func (h *Handler) AuthInfo(w http.ResponseWriter, r *http.Request) {
	key := apiKeyFrom(r)
	if key == nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated", nil)
		return
	}

	type authInfoResponse struct {
		KeyPrefix   string   `json:"key_prefix"`
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	WriteSuccess(w, authInfoResponse{
		KeyPrefix:   key.KeyPrefix,
		Name:        key.Name,
		Permissions: key.GetPermissions(),
	}, nil)
}
