package domain

import "time"

// Collection names a backend collection observed by subscriptions.
type Collection string

const (
	CollectionUsers    Collection = "users"
	CollectionTasks    Collection = "tasks"
	CollectionRequests Collection = "requests"
)

// ChatCollection names the message sub-collection of a conversation.
func ChatCollection(chatID string) Collection {
	return Collection("chats/" + chatID + "/messages")
}

// DateLayout is the ISO calendar date format used for deadlines.
const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
