package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gantrydb/gantry/internal/model"
)

// CreateTool registers a new tool. Returns ErrDuplicate when the name is
// already taken.
func (s *Store) CreateTool(ctx context.Context, t *model.Tool) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	const q = `INSERT INTO tools (name, version, description, schema_json, created_at, updated_at)
		VALUES (:name, :version, :description, :schema_json, :created_at, :updated_at)`

	result, err := s.db.NamedExecContext(ctx, q, t)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	t.ID = lastInsertID(ctx, s, result, "tools")
	return nil
}

// GetToolByName fetches a tool by its unique name.
func (s *Store) GetToolByName(ctx context.Context, name string) (*model.Tool, error) {
	var t model.Tool
	err := s.db.GetContext(ctx, &t, s.rebind(`SELECT * FROM tools WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTools returns one page of tools ordered newest-first, plus the total
// count across all pages.
func (s *Store) ListTools(ctx context.Context, page, perPage int) ([]model.Tool, int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM tools`); err != nil {
		return nil, 0, err
	}

	var tools []model.Tool
	err := s.db.SelectContext(ctx, &tools,
		s.rebind(`SELECT * FROM tools ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`),
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	return tools, total, nil
}

// SearchTools returns one page of tools whose name or description contains
// the query substring, plus the total match count.
func (s *Store) SearchTools(ctx context.Context, query string, page, perPage int) ([]model.Tool, int64, error) {
	pattern := "%" + query + "%"

	var total int64
	err := s.db.GetContext(ctx, &total,
		s.rebind(`SELECT COUNT(*) FROM tools WHERE name LIKE ? OR description LIKE ?`),
		pattern, pattern)
	if err != nil {
		return nil, 0, err
	}

	var tools []model.Tool
	err = s.db.SelectContext(ctx, &tools,
		s.rebind(`SELECT * FROM tools WHERE name LIKE ? OR description LIKE ?
			ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`),
		pattern, pattern, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	return tools, total, nil
}

// UpdateTool rewrites the mutable fields of a tool and bumps updated_at.
func (s *Store) UpdateTool(ctx context.Context, t *model.Tool) error {
	t.UpdatedAt = time.Now().UTC()

	const q = `UPDATE tools SET version = :version, description = :description,
		schema_json = :schema_json, updated_at = :updated_at
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, t)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// DeleteTool removes a tool by name.
func (s *Store) DeleteTool(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM tools WHERE name = ?`), name)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// CountTools returns the total number of registered tools.
func (s *Store) CountTools(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM tools`)
	return n, err
}
