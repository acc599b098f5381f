package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gantrydb/gantry/internal/model"
)

// CreateAPIKey inserts a new API key record. The ID and CreatedAt fields on k
// are populated after a successful insert.
func (s *Store) CreateAPIKey(ctx context.Context, k *model.APIKey) error {
	k.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO api_keys
		(name, key_hash, key_prefix, description, is_active,
		 can_create, can_read, can_update, can_delete, expires_at, created_at)
		VALUES
		(:name, :key_hash, :key_prefix, :description, :is_active,
		 :can_create, :can_read, :can_update, :can_delete, :expires_at, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, k)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	k.ID = lastInsertID(ctx, s, result, "api_keys")
	return nil
}

// GetAPIKeyByID fetches an API key by primary key.
func (s *Store) GetAPIKeyByID(ctx context.Context, id int64) (*model.APIKey, error) {
	var k model.APIKey
	err := s.db.GetContext(ctx, &k, s.rebind(`SELECT * FROM api_keys WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// GetAPIKeysByPrefix returns every key sharing the given display prefix. The
// authenticator compares hashes over this candidate set in constant time, so
// a prefix collision never changes the outcome, only the work done.
func (s *Store) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]model.APIKey, error) {
	var keys []model.APIKey
	err := s.db.SelectContext(ctx, &keys, s.rebind(`SELECT * FROM api_keys WHERE key_prefix = ?`), prefix)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// ListAPIKeys returns all API keys ordered by creation time.
func (s *Store) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := s.db.SelectContext(ctx, &keys, `SELECT * FROM api_keys ORDER BY created_at, id`); err != nil {
		return nil, err
	}
	return keys, nil
}

// UpdateAPIKey rewrites the mutable fields of an API key: name, description,
// expiry, and the permission flags. The hash is immutable once created.
func (s *Store) UpdateAPIKey(ctx context.Context, k *model.APIKey) error {
	const q = `UPDATE api_keys SET
		name = :name, description = :description, expires_at = :expires_at,
		can_create = :can_create, can_read = :can_read,
		can_update = :can_update, can_delete = :can_delete
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, k)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return requireRow(result)
}

// SetAPIKeyActive flips the active flag on an API key.
func (s *Store) SetAPIKeyActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`UPDATE api_keys SET is_active = ? WHERE id = ?`), active, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// UpdateAPIKeyLastUsed stamps the key's last successful authentication time.
func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE api_keys SET last_used = ? WHERE id = ?`), time.Now().UTC(), id)
	return err
}

// DeleteAPIKey removes an API key permanently.
func (s *Store) DeleteAPIKey(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM api_keys WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireRow(result)
}
