package slack

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"feedbackd/internal/feedback"

	"github.com/slack-go/slack"
)

// Handler captures feedback out of Slack via a message action: a user
// picks "Capture as feedback" on any message and its text is submitted
// through the normal intake path, so Slack items flow through the same
// annotation pipeline as API submissions.
type Handler struct {
	client    *slack.Client
	service   *feedback.Service
	botUserID string
}

func NewHandler(botToken string, service *feedback.Service) *Handler {
	client := slack.New(botToken)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var botUserID string
	if authTest, err := client.AuthTestContext(ctx); err != nil {
		slog.Warn("Could not get bot user ID", "error", err)
	} else {
		botUserID = authTest.UserID
	}

	return &Handler{
		client:    client,
		service:   service,
		botUserID: botUserID,
	}
}

// HandleMessageAction handles the capture_feedback interactive action.
func (h *Handler) HandleMessageAction(w http.ResponseWriter, r *http.Request) {
	payload := r.FormValue("payload")
	if payload == "" {
		slog.Error("Missing payload in Slack action request")
		http.Error(w, "Missing payload", http.StatusBadRequest)
		return
	}

	var interaction slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &interaction); err != nil {
		slog.Error("Failed to parse interaction payload", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if interaction.CallbackID != "capture_feedback" {
		slog.Warn("Unknown action received", "callback_id", interaction.CallbackID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.isBotMessage(interaction.Message) {
		respondEphemeral(w, "Bot messages cannot be captured as feedback.")
		return
	}

	text := cleanMessageText(interaction.Message.Text)
	if text == "" {
		respondEphemeral(w, "This message has no text to capture.")
		return
	}

	go h.captureFeedback(text, interaction.Channel.ID, interaction.User.ID)

	respondEphemeral(w, "Capturing this message as feedback...")
}

func (h *Handler) captureFeedback(text, channelID, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	item, err := h.service.Submit(ctx, text, "slack")
	if err != nil {
		slog.Error("Failed to submit Slack feedback",
			"channel", channelID,
			"user", userID,
			"error", err)
		h.sendEphemeral(channelID, userID, "Sorry, the message could not be captured as feedback.")
		return
	}

	slog.Info("Captured feedback from Slack",
		slog.String("item_id", item.ID),
		slog.String("channel", channelID),
		slog.String("user", userID))

	h.sendEphemeral(channelID, userID, "Captured as feedback "+item.ID)
}

func (h *Handler) isBotMessage(message slack.Message) bool {
	if message.BotID != "" || message.SubType == "bot_message" {
		return true
	}
	if h.botUserID != "" && message.User == h.botUserID {
		return true
	}
	return false
}

func (h *Handler) sendEphemeral(channelID, userID, text string) {
	_, err := h.client.PostEphemeral(channelID, userID, slack.MsgOptionText(text, false))
	if err != nil {
		slog.Error("Failed to send ephemeral message", "error", err)
	}
}

func respondEphemeral(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	response := map[string]interface{}{
		"response_type": "ephemeral",
		"text":          text,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode Slack response", "error", err)
	}
}

// cleanMessageText strips user mentions like <@U123456> and channel
// references like <#C123456|general> from message text.
func cleanMessageText(text string) string {
	for strings.Contains(text, "<@") {
		start := strings.Index(text, "<@")
		end := strings.Index(text[start:], ">")
		if end == -1 {
			break
		}
		text = text[:start] + text[start+end+1:]
	}

	for strings.Contains(text, "<#") {
		start := strings.Index(text, "<#")
		end := strings.Index(text[start:], ">")
		if end == -1 {
			break
		}
		text = text[:start] + text[start+end+1:]
	}

	return strings.TrimSpace(text)
}
