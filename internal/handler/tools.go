package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gantrydb/gantry/internal/model"
	"github.com/gantrydb/gantry/internal/store"
)

// ToolHandler serves the tool catalog: the downstream collaborator the gate
// forwards to once a request is admitted.
type ToolHandler struct {
	store *store.Store
}

// NewToolHandler creates a new ToolHandler.
func NewToolHandler(st *store.Store) *ToolHandler {
	return &ToolHandler{store: st}
}

type toolCreateRequest struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

type toolUpdateRequest struct {
	Version     *string        `json:"version"`
	Description *string        `json:"description"`
	Schema      map[string]any `json:"schema"`
}

// CreateTool registers a new tool.
// POST /tools
func (h *ToolHandler) CreateTool(w http.ResponseWriter, r *http.Request) {
	var req toolCreateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Version == "" || req.Schema == nil {
		writeError(w, http.StatusBadRequest, "Name, version, and schema are required")
		return
	}

	schemaJSON, err := json.Marshal(req.Schema)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid schema")
		return
	}
	tool := &model.Tool{
		Name:        req.Name,
		Version:     req.Version,
		Description: req.Description,
		SchemaJSON:  string(schemaJSON),
	}
	if err := h.store.CreateTool(r.Context(), tool); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Tool %q already exists", req.Name))
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create tool")
		return
	}
	writeJSON(w, http.StatusCreated, tool.View())
}

// ListTools returns one page of registered tools, newest first.
// GET /tools
func (h *ToolHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)
	tools, total, err := h.store.ListTools(r.Context(), page, perPage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tools")
		return
	}
	writeJSON(w, http.StatusOK, paginate(tools, total, page, perPage))
}

// SearchTools returns tools whose name or description matches the query.
// GET /tools/search?query=...
func (h *ToolHandler) SearchTools(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query parameter is required")
		return
	}
	page, perPage := pagination(r)
	tools, total, err := h.store.SearchTools(r.Context(), query, page, perPage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to search tools")
		return
	}
	writeJSON(w, http.StatusOK, paginate(tools, total, page, perPage))
}

// GetTool returns a single tool by name.
// GET /tools/{toolName}
func (h *ToolHandler) GetTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "toolName")
	tool, err := h.store.GetToolByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Tool %q not found", name))
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load tool")
		return
	}
	writeJSON(w, http.StatusOK, tool.View())
}

// UpdateTool rewrites a tool's version, description, or schema.
// PUT /tools/{toolName}
func (h *ToolHandler) UpdateTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "toolName")
	tool, err := h.store.GetToolByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Tool %q not found", name))
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load tool")
		return
	}

	var req toolUpdateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Version != nil {
		tool.Version = *req.Version
	}
	if req.Description != nil {
		tool.Description = *req.Description
	}
	if req.Schema != nil {
		schemaJSON, err := json.Marshal(req.Schema)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid schema")
			return
		}
		tool.SchemaJSON = string(schemaJSON)
	}

	if err := h.store.UpdateTool(r.Context(), tool); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update tool")
		return
	}
	writeJSON(w, http.StatusOK, tool.View())
}

// DeleteTool removes a tool by name.
// DELETE /tools/{toolName}
func (h *ToolHandler) DeleteTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "toolName")
	if err := h.store.DeleteTool(r.Context(), name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Tool %q not found", name))
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete tool")
		return
	}
	writeJSON(w, http.StatusOK, model.MessageResponse{
		Message: fmt.Sprintf("Tool %q deleted successfully", name),
	})
}

func paginate(tools []model.Tool, total int64, page, perPage int) model.ToolList {
	views := make([]model.ToolView, 0, len(tools))
	for i := range tools {
		views = append(views, tools[i].View())
	}
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	return model.ToolList{
		Tools:      views,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}
}
