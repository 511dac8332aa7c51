package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestHandleWebhook(t *testing.T) {
	const secret = "test-webhook-secret"
	body := []byte(`{"text": "Billing page times out", "source": "email"}`)

	tests := []struct {
		name       string
		secret     string
		signature  string
		body       []byte
		wantStatus int
	}{
		{"valid signature", secret, signBody(secret, body), body, http.StatusAccepted},
		{"valid signature without prefix", secret, signBody(secret, body)[len("sha256="):], body, http.StatusAccepted},
		{"wrong signature", secret, "sha256=deadbeef", body, http.StatusUnauthorized},
		{"missing signature", secret, "", body, http.StatusUnauthorized},
		{"signature for different body", secret, signBody(secret, []byte("other")), body, http.StatusUnauthorized},
		{"no secret configured", "", signBody(secret, body), body, http.StatusUnauthorized},
		{"empty text", secret, signBody(secret, []byte(`{"text": ""}`)), []byte(`{"text": ""}`), http.StatusBadRequest},
		{"malformed payload", secret, signBody(secret, []byte(`{not json`)), []byte(`{not json`), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			handler := NewWebhookHandler(tt.secret, newTestService(store))

			req := httptest.NewRequest("POST", "/webhook/feedback", bytes.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set("X-Webhook-Signature", tt.signature)
			}
			w := httptest.NewRecorder()

			handler.HandleWebhook(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}

			if tt.wantStatus == http.StatusAccepted && len(store.inserted) != 1 {
				t.Errorf("Expected 1 stored item, got %d", len(store.inserted))
			}
			if tt.wantStatus != http.StatusAccepted && len(store.inserted) != 0 {
				t.Errorf("Expected no stored items on rejection, got %d", len(store.inserted))
			}
		})
	}
}
