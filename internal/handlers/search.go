package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"feedbackd/internal/search"
)

type SearchHandler struct {
	engine *search.Engine
}

type searchResponse struct {
	Query       string             `json:"query"`
	Results     []search.Result    `json:"results"`
	Matches     int                `json:"matches"`
	Mode        search.Mode        `json:"mode"`
	Diagnostics search.Diagnostics `json:"diagnostics"`
}

func NewSearchHandler(engine *search.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, codeInvalidInput, "query parameter q is required")
		return
	}

	resp, err := h.engine.Search(r.Context(), query)
	if errors.Is(err, search.ErrInvalidQuery) {
		respondError(w, http.StatusBadRequest, codeInvalidInput, "query must not be empty")
		return
	}
	if err != nil {
		slog.Error("Search failed in both modes", "operation", "search", "query", query, "error", err)
		respondError(w, http.StatusInternalServerError, codeSearchUnavailable, "search is temporarily unavailable")
		return
	}

	respondJSON(w, http.StatusOK, searchResponse{
		Query:       query,
		Results:     resp.Results,
		Matches:     len(resp.Results),
		Mode:        resp.Mode,
		Diagnostics: resp.Diagnostics,
	})
}
