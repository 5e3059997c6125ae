// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/olegiv/pagescore/internal/handler"
	"github.com/olegiv/pagescore/internal/page"
)

// CreateCommentRequest is the body of POST /pages/{id}/comments.
type CreateCommentRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"omitempty,email,max=255"`
	Body  string `json:"body" validate:"required,max=10000"`
}

// ListComments handles GET /api/v1/pages/{id}/comments.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid page ID", nil)
		return
	}
	comments, err := h.pages.Comments(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "list comments", err)
		return
	}
	WriteSuccess(w, comments, &Meta{Total: int64(len(comments))})
}

// CreateComment handles POST /api/v1/pages/{id}/comments.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid page ID", nil)
		return
	}
	var req CreateCommentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	comment, effects, err := h.pages.AddComment(r.Context(), id, page.CommentInput{
		Name:  req.Name,
		Email: req.Email,
		Body:  req.Body,
	})
	if err != nil {
		h.writeServiceError(w, "create comment", err)
		return
	}
	h.effects.Run(effects)
	WriteCreated(w, comment)
}

// DeleteComment handles DELETE /api/v1/pages/{id}/comments/{commentID}.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid page ID", nil)
		return
	}
	commentID, err := handler.ParseInt64Param(r, "commentID")
	if err != nil {
		WriteBadRequest(w, "Invalid comment ID", nil)
		return
	}

	effects, err := h.pages.DeleteComment(r.Context(), id, commentID)
	if err != nil {
		h.writeServiceError(w, "delete comment", err)
		return
	}
	h.effects.Run(effects)
	w.WriteHeader(http.StatusNoContent)
}
