package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTaskCreated           EventType = "task_created"
	EventTaskUpdated           EventType = "task_updated"
	EventTaskStatusChanged     EventType = "task_status_changed"
	EventTaskDeleted           EventType = "task_deleted"
	EventCommentAdded          EventType = "comment_added"
	EventMentioned             EventType = "mentioned"
	EventRequestCreated        EventType = "request_created"
	EventRequestDecided        EventType = "request_decided"
	EventRequestReassigned     EventType = "request_reassigned"
	EventUserActivationChanged EventType = "user_activation_changed"
	EventChatMessageSent       EventType = "chat_message_sent"
)

// Actor identifies who caused an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// ActorOf builds the actor for an identity.
func ActorOf(identity domain.Identity) Actor {
	return Actor{UserID: identity.ID, Role: identity.Role}
}

// Event represents a domain event emitted after a successful write.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with an id and time.
func New(eventType EventType, subjectID string, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TaskPayload describes a task after a create or update.
type TaskPayload struct {
	Title        string    `json:"title"`
	Department   string    `json:"department"`
	AssignedToID string    `json:"assigned_to_id"`
	Deadline     time.Time `json:"deadline"`
}

// TaskStatusChangedPayload payload.
type TaskStatusChangedPayload struct {
	OldStatus domain.TaskStatus `json:"old_status"`
	NewStatus domain.TaskStatus `json:"new_status"`
}

// TaskDeletedPayload payload.
type TaskDeletedPayload struct {
	CalendarEventID string `json:"calendar_event_id"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	AuthorName  string `json:"author_name"`
	BodyPreview string `json:"body_preview"`
}

// MentionedPayload names a user highlighted in a comment.
type MentionedPayload struct {
	UserID    string `json:"user_id"`
	Handle    string `json:"handle"`
	TaskTitle string `json:"task_title"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	Title      string `json:"title"`
	Type       string `json:"type"`
	Department string `json:"department"`
}

// RequestDecidedPayload payload.
type RequestDecidedPayload struct {
	OldStatus    domain.RequestStatus `json:"old_status"`
	NewStatus    domain.RequestStatus `json:"new_status"`
	Observations string               `json:"observations,omitempty"`
}

// RequestReassignedPayload payload.
type RequestReassignedPayload struct {
	AssignedToID string `json:"assigned_to_id"`
}

// UserActivationChangedPayload payload.
type UserActivationChangedPayload struct {
	Active bool `json:"active"`
}

// ChatMessageSentPayload payload.
type ChatMessageSentPayload struct {
	ChatID     string `json:"chat_id"`
	ReceiverID string `json:"receiver_id"`
}
