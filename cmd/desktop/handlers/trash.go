package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kimhsiao/lifetrack/backend/internal/db"
)

// TrashSource resolves the repository of an entity table.
type TrashSource interface {
	Trash(table string) (db.TrashRepository, error)
	Tables() []string
}

// TrashHandler serves the trash view.
type TrashHandler struct {
	repos TrashSource
}

// NewTrashHandler creates a new TrashHandler.
func NewTrashHandler(repos TrashSource) *TrashHandler {
	return &TrashHandler{repos: repos}
}

// Summary handles GET /trash
// Returns the number of deleted records per table.
func (h *TrashHandler) Summary(w http.ResponseWriter, r *http.Request) {
	counts := make(map[string]int)
	total := 0
	for _, table := range h.repos.Tables() {
		repo, err := h.repos.Trash(table)
		if err != nil {
			writeError(w, err)
			return
		}
		n, err := repo.GetDeletedCount(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		counts[table] = n
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": counts, "total": total})
}

// Count handles GET /trash/{table}
func (h *TrashHandler) Count(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repos.Trash(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := repo.GetDeletedCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": repo.Table(), "count": n})
}

// Restore handles POST /trash/{table}/{id}/restore
func (h *TrashHandler) Restore(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repos.Trash(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := repo.Restore(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Purge handles DELETE /trash/{table}/{id}
func (h *TrashHandler) Purge(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repos.Trash(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := repo.HardDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
