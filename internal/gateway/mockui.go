package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// sendMessageRequest is the mock UI's inbound message shape.
type sendMessageRequest struct {
	UserID   int64  `json:"user_id"`
	ChatID   int64  `json:"chat_id"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text"`
}

// handleSendMessage injects a simulated Telegram update into the mock
// transports. The bot's reply lands in the chat history shortly after.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.UserID <= 0 || req.ChatID == 0 || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id, chat_id and text are required"})
		return
	}

	g.cfg.MockHub.Inject(req.UserID, req.ChatID, req.Username, req.Text)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "injected",
		"chat_id": req.ChatID,
		"text":    req.Text,
	})
}

// handleChatMessages returns the recent outbound messages for one chat.
func (g *Gateway) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.PathValue("chat_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chat_id must be an integer"})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
	}

	msgs := g.cfg.MockHub.Messages(chatID, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"chat_id":  chatID,
		"messages": msgs,
	})
}
