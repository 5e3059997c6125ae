// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/pagescore/internal/model"
)

const apiKeyColumns = `id, name, key_hash, key_prefix, permissions, last_used_at, expires_at, is_active, created_at`

func scanAPIKey(row rowScanner) (model.APIKey, error) {
	var k model.APIKey
	err := row.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Permissions,
		&k.LastUsedAt, &k.ExpiresAt, &k.IsActive, &k.CreatedAt)
	return k, err
}

const createAPIKey = `INSERT INTO api_keys (name, key_hash, key_prefix, permissions, expires_at, is_active, created_at)
VALUES (?, ?, ?, ?, ?, 1, ?)
RETURNING ` + apiKeyColumns

// CreateAPIKeyParams holds a new API key.
type CreateAPIKeyParams struct {
	Name        string
	KeyHash     string
	KeyPrefix   string
	Permissions string
	ExpiresAt   sql.NullTime
	CreatedAt   time.Time
}

// CreateAPIKey stores a hashed API key.
func (q *Queries) CreateAPIKey(ctx context.Context, arg CreateAPIKeyParams) (model.APIKey, error) {
	return scanAPIKey(q.db.QueryRowContext(ctx, createAPIKey,
		arg.Name, arg.KeyHash, arg.KeyPrefix, arg.Permissions, arg.ExpiresAt, arg.CreatedAt))
}

const getAPIKeyByHash = `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = ?`

// GetAPIKeyByHash looks up a key by its SHA-256 hash.
func (q *Queries) GetAPIKeyByHash(ctx context.Context, keyHash string) (model.APIKey, error) {
	return scanAPIKey(q.db.QueryRowContext(ctx, getAPIKeyByHash, keyHash))
}

const updateAPIKeyLastUsed = `UPDATE api_keys SET last_used_at = ? WHERE id = ?`

// UpdateAPIKeyLastUsed records the time a key was last used.
func (q *Queries) UpdateAPIKeyLastUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx, updateAPIKeyLastUsed, at, id)
	return err
}

const deactivateAPIKey = `UPDATE api_keys SET is_active = 0 WHERE id = ?`

// DeactivateAPIKey revokes a key.
func (q *Queries) DeactivateAPIKey(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deactivateAPIKey, id)
	return err
}
