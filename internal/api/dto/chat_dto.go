package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// ChatMessageResponse is the wire form of a direct message.
type ChatMessageResponse struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewChatMessageResponses maps a conversation.
func NewChatMessageResponses(msgs []domain.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ChatMessageResponse{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Text:       m.Text,
			Timestamp:  m.Timestamp,
		})
	}
	return out
}

// WSMessage is the envelope exchanged over the live connection.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody mirrors the REST error shape.
type ErrorBody struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	TTLSeconds int            `json:"ttl_seconds,omitempty"`
}

// ChatOpenPayload selects the conversation to stream.
type ChatOpenPayload struct {
	PeerID string `json:"peer_id"`
}

// ChatPayload carries a full conversation.
type ChatPayload struct {
	PeerID   string                `json:"peer_id"`
	Messages []ChatMessageResponse `json:"messages"`
}
