package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Stable error codes surfaced to clients. Internal detail is logged,
// never leaked in the response body.
const (
	codeInvalidInput      = "INVALID_INPUT"
	codeNotFound          = "NOT_FOUND"
	codeSearchUnavailable = "SEARCH_UNAVAILABLE"
	codeStoreError        = "STORE_ERROR"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]errorBody{
		"error": {Code: code, Message: message},
	})
}
