// Package search exposes permission-filtered similarity search over indexed
// document chunks.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"orgdocs/backend/internal/apperr"
	"orgdocs/backend/internal/middleware"
	"orgdocs/backend/internal/retrieval"
)

const defaultK = 5

// Searcher is the retrieval surface the handler needs.
type Searcher interface {
	Search(ctx context.Context, query string, departmentIDs []int64, k int) ([]retrieval.Result, error)
}

type Handler struct {
	searcher Searcher
}

func NewHandler(searcher Searcher) *Handler {
	return &Handler{searcher: searcher}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query         string  `json:"query"`
		DepartmentIDs []int64 `json:"department_ids"`
		K             int     `json:"k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "query is required", http.StatusBadRequest)
		return
	}
	if req.K <= 0 {
		req.K = defaultK
	}

	results, err := h.searcher.Search(r.Context(), req.Query, req.DepartmentIDs, req.K)
	if err != nil {
		if errors.Is(err, apperr.ErrStoreUnavailable) {
			h.writeError(r.Context(), w, "STORE_UNAVAILABLE", "Search backend unavailable", http.StatusServiceUnavailable)
			return
		}
		slog.Error("search failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if results == nil {
		results = []retrieval.Result{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": results,
		"meta": map[string]int{"count": len(results)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
