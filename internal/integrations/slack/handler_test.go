package slack

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/slack-go/slack"
)

func TestCleanMessageText(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"normal text", "Login keeps failing on mobile", "Login keeps failing on mobile"},
		{"user mention only", "<@U095Z0GRZGS>", ""},
		{"text with user mention", "Hey <@U095Z0GRZGS> the export is broken", "Hey  the export is broken"},
		{"multiple user mentions", "<@U095Z0GRZGS> <@U123456789> hello", "hello"},
		{"channel mention only", "<#C06DTMSH03E|general>", ""},
		{"text with channel mention", "See <#C06DTMSH03E|general> for details", "See  for details"},
		{"whitespace only after cleaning", "   <@U095Z0GRZGS>   <#C06DTMSH03E|general>   ", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := cleanMessageText(tc.input)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestIsBotMessage(t *testing.T) {
	h := &Handler{botUserID: "U_OUR_BOT"}

	testCases := []struct {
		name    string
		message slack.Message
		want    bool
	}{
		{"human message", slack.Message{Msg: slack.Msg{User: "U123456", Text: "hi"}}, false},
		{"bot_id set", slack.Message{Msg: slack.Msg{BotID: "B123456"}}, true},
		{"bot_message subtype", slack.Message{Msg: slack.Msg{SubType: "bot_message"}}, true},
		{"our own bot", slack.Message{Msg: slack.Msg{User: "U_OUR_BOT"}}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := h.isBotMessage(tc.message); got != tc.want {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
		})
	}
}

func actionRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	form := url.Values{}
	form.Set("payload", payload)
	req := httptest.NewRequest("POST", "/slack/actions", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandleMessageAction(t *testing.T) {
	h := &Handler{botUserID: "U_OUR_BOT"}

	t.Run("missing payload", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/slack/actions", nil)
		w := httptest.NewRecorder()
		h.HandleMessageAction(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("invalid payload", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleMessageAction(w, actionRequest(t, "{not json"))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("unknown callback is acknowledged", func(t *testing.T) {
		payload := `{"callback_id": "something_else", "type": "message_action"}`
		w := httptest.NewRecorder()
		h.HandleMessageAction(w, actionRequest(t, payload))

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if w.Body.Len() != 0 {
			t.Errorf("Expected empty body for unknown callback, got %s", w.Body.String())
		}
	})

	t.Run("bot message is rejected ephemerally", func(t *testing.T) {
		payload := `{
			"callback_id": "capture_feedback",
			"type": "message_action",
			"message": {"text": "automated notice", "subtype": "bot_message"}
		}`
		w := httptest.NewRecorder()
		h.HandleMessageAction(w, actionRequest(t, payload))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp["response_type"] != "ephemeral" {
			t.Errorf("Expected ephemeral response, got %q", resp["response_type"])
		}
		if !strings.Contains(resp["text"], "Bot messages") {
			t.Errorf("Expected bot message rejection text, got %q", resp["text"])
		}
	})

	t.Run("mention-only message has nothing to capture", func(t *testing.T) {
		payload := `{
			"callback_id": "capture_feedback",
			"type": "message_action",
			"message": {"text": "<@U095Z0GRZGS>", "user": "U123456"}
		}`
		w := httptest.NewRecorder()
		h.HandleMessageAction(w, actionRequest(t, payload))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if !strings.Contains(resp["text"], "no text") {
			t.Errorf("Expected no-text message, got %q", resp["text"])
		}
	})
}
