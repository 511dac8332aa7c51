package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"feedbackd/internal/feedback"
	"feedbackd/internal/storage"

	"github.com/gorilla/mux"
)

type FeedbackHandler struct {
	service *feedback.Service
}

type submitRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func NewFeedbackHandler(service *feedback.Service) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

func (h *FeedbackHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidInput, "request body must be JSON with a text field")
		return
	}

	item, err := h.service.Submit(r.Context(), req.Text, req.Source)
	if errors.Is(err, feedback.ErrEmptyText) {
		respondError(w, http.StatusBadRequest, codeInvalidInput, "text is required")
		return
	}
	if err != nil {
		slog.Error("Failed to accept submission", "operation", "submit", "error", err)
		respondError(w, http.StatusInternalServerError, codeStoreError, "failed to accept feedback")
		return
	}

	respondJSON(w, http.StatusAccepted, submitResponse{
		ID:     item.ID,
		Status: string(item.Status),
	})
}

func (h *FeedbackHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	items, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		slog.Error("Failed to list feedback", "operation", "list", "error", err)
		respondError(w, http.StatusInternalServerError, codeStoreError, "failed to list feedback")
		return
	}
	if items == nil {
		items = []*storage.FeedbackItem{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"data": items})
}

func (h *FeedbackHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	item, err := h.service.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, codeNotFound, "feedback item not found")
		return
	}
	if err != nil {
		slog.Error("Failed to get feedback item", "operation", "get", "item_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, codeStoreError, "failed to load feedback")
		return
	}

	respondJSON(w, http.StatusOK, item)
}

func (h *FeedbackHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
