package model

import (
	"encoding/json"
	"time"
)

// Tool is a registered MCP tool: a name, a version, and the JSON schema that
// describes its invocation contract. The schema is stored as serialized JSON.
type Tool struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Version     string    `json:"version" db:"version"`
	Description string    `json:"description" db:"description"`
	SchemaJSON  string    `json:"-" db:"schema_json"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Schema decodes the stored JSON schema. Returns an empty object when the
// stored text is not valid JSON (pre-validation rows).
func (t *Tool) Schema() map[string]any {
	var schema map[string]any
	if err := json.Unmarshal([]byte(t.SchemaJSON), &schema); err != nil {
		return map[string]any{}
	}
	return schema
}

// ToolList is the paginated envelope for tool listings.
type ToolList struct {
	Tools      []ToolView `json:"tools"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
	TotalPages int        `json:"total_pages"`
}

// ToolView is the wire representation of a tool, with the schema inlined as
// a JSON object rather than a string.
type ToolView struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// View converts a Tool to its wire representation.
func (t *Tool) View() ToolView {
	return ToolView{
		ID:          t.ID,
		Name:        t.Name,
		Version:     t.Version,
		Description: t.Description,
		Schema:      t.Schema(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
