package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"feedbackd/internal/feedback"
)

// WebhookHandler accepts signed feedback submissions from external
// channels (email gateways, Discord bots, support tools) that cannot use
// the public API directly.
type WebhookHandler struct {
	secret  string
	service *feedback.Service
}

type webhookPayload struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func NewWebhookHandler(secret string, service *feedback.Service) *WebhookHandler {
	return &WebhookHandler{secret: secret, service: service}
}

func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidInput, "failed to read request body")
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Webhook-Signature")
	if !h.verifyHMAC(body, signature) {
		slog.Warn("Rejected webhook with invalid signature", "remote_addr", r.RemoteAddr)
		respondError(w, http.StatusUnauthorized, codeInvalidInput, "invalid signature")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidInput, "payload must be JSON with a text field")
		return
	}

	item, err := h.service.Submit(r.Context(), payload.Text, payload.Source)
	if errors.Is(err, feedback.ErrEmptyText) {
		respondError(w, http.StatusBadRequest, codeInvalidInput, "text is required")
		return
	}
	if err != nil {
		slog.Error("Failed to accept webhook submission", "operation", "webhook_submit", "error", err)
		respondError(w, http.StatusInternalServerError, codeStoreError, "failed to accept feedback")
		return
	}

	respondJSON(w, http.StatusAccepted, submitResponse{
		ID:     item.ID,
		Status: string(item.Status),
	})
}

func (h *WebhookHandler) verifyHMAC(body []byte, signature string) bool {
	if h.secret == "" || signature == "" {
		return false
	}

	// Remove "sha256=" prefix if present
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expectedSignature := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedSignature))
}
