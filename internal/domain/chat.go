package domain

import (
	"sort"
	"strings"
	"time"
)

// ChatMessage is a direct message between two users.
type ChatMessage struct {
	ID         string
	ChatID     string
	SenderID   string
	ReceiverID string
	Text       string
	Timestamp  time.Time
}

// ChatID derives the conversation key shared by both participants.
func ChatID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}
