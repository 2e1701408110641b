package dto

import (
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// CreateTaskRequest payload. Deadline is YYYY-MM-DD.
type CreateTaskRequest struct {
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	AssignedToID string              `json:"assigned_to_id"`
	Deadline     string              `json:"deadline"`
	Priority     domain.TaskPriority `json:"priority"`
}

// UpdateTaskRequest carries a partial task update; omitted fields are kept.
type UpdateTaskRequest struct {
	Title        *string              `json:"title"`
	Description  *string              `json:"description"`
	Status       *domain.TaskStatus   `json:"status"`
	Priority     *domain.TaskPriority `json:"priority"`
	AssignedToID *string              `json:"assigned_to_id"`
	Deadline     *string              `json:"deadline"`
}

// MoveTaskRequest moves a kanban card.
type MoveTaskRequest struct {
	Status domain.TaskStatus `json:"status"`
}

// TextRequest is a comment or subtask body.
type TextRequest struct {
	Text string `json:"text"`
}

// CreatedResponse returns the id of an accepted insert.
type CreatedResponse struct {
	ID string `json:"id"`
}

// CommentResponse represents a thread entry.
type CommentResponse struct {
	AuthorID   string      `json:"author_id"`
	AuthorName string      `json:"author_name"`
	Role       domain.Role `json:"role"`
	Text       string      `json:"text"`
	Timestamp  time.Time   `json:"timestamp"`
}

// SubtaskResponse represents a checklist item.
type SubtaskResponse struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// TaskResponse is the wire form of a task.
type TaskResponse struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Status       domain.TaskStatus   `json:"status"`
	Priority     domain.TaskPriority `json:"priority"`
	AssignedToID string              `json:"assigned_to_id"`
	AssigneeName string              `json:"assignee_name,omitempty"`
	CreatorID    string              `json:"creator_id"`
	Department   string              `json:"department"`
	Deadline     string              `json:"deadline"`
	Comments     []CommentResponse   `json:"comments"`
	Subtasks     []SubtaskResponse   `json:"subtasks"`
	Report       *string             `json:"report"`
	Attachment   *string             `json:"attachment"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// NewTaskResponse maps a task, resolving the assignee name through names.
func NewTaskResponse(t domain.Task, names map[string]string) TaskResponse {
	resp := TaskResponse{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		Priority:     t.Priority,
		AssignedToID: t.AssignedToID,
		AssigneeName: names[t.AssignedToID],
		CreatorID:    t.CreatorID,
		Department:   t.Department,
		Deadline:     t.Deadline.Format(domain.DateLayout),
		Comments:     make([]CommentResponse, 0, len(t.Comments)),
		Subtasks:     make([]SubtaskResponse, 0, len(t.Subtasks)),
		Report:       t.Report,
		Attachment:   t.Attachment,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	for _, c := range t.Comments {
		resp.Comments = append(resp.Comments, CommentResponse(c))
	}
	for _, s := range t.Subtasks {
		resp.Subtasks = append(resp.Subtasks, SubtaskResponse(s))
	}
	return resp
}

// NewTaskResponses maps a list of tasks.
func NewTaskResponses(tasks []domain.Task, names map[string]string) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, NewTaskResponse(t, names))
	}
	return out
}
