package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/zeto-space/exoclassify/internal/history"
	"github.com/zeto-space/exoclassify/internal/schema"
)

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.history == nil {
		h.writeError(w, "History is disabled", http.StatusNotFound)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, "Invalid limit: "+v, http.StatusBadRequest)
			return
		}
		limit = n
	}

	analyses, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, "Failed to list history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if analyses == nil {
		analyses = []history.Analysis{}
	}
	h.writeJSON(w, analyses)
}

func (h *Handler) HandleHistoryDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.history == nil {
		h.writeError(w, "History is disabled", http.StatusNotFound)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/history/")
	analysis, err := h.history.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		h.writeError(w, "Analysis not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to load analysis: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, analysis)
}

// HandleSchema lists the nine parameters with their prompts and bounds.
func (h *Handler) HandleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, schema.Entries())
}
