package domain

import "time"

// TaskStatus enumerates the kanban columns, in order.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// TaskStatuses lists the recognized statuses in board order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone}

// Valid reports whether s is a recognized status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// TaskPriority enumerates urgency levels.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityNormal TaskPriority = "NORMAL"
	TaskPriorityHigh   TaskPriority = "HIGH"
)

// Valid reports whether p is a recognized priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityNormal, TaskPriorityHigh:
		return true
	}
	return false
}

// Comment is one entry of a task discussion thread.
type Comment struct {
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// Subtask is a checklist item on a task.
type Subtask struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Task is a unit of work created by an Admin for someone in the same department.
type Task struct {
	ID           string
	Title        string
	Description  string
	Status       TaskStatus
	Priority     TaskPriority
	AssignedToID string
	CreatorID    string
	Department   string
	Deadline     time.Time
	Comments     []Comment
	Subtasks     []Subtask
	Report       *string
	Attachment   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CalendarEventID is the external calendar id derived from the task id.
func (t Task) CalendarEventID() string {
	return "wf" + t.ID
}

// Clone returns a copy whose comment and subtask slices are not shared and
// never nil.
func (t Task) Clone() Task {
	out := t
	out.Comments = make([]Comment, len(t.Comments))
	copy(out.Comments, t.Comments)
	out.Subtasks = make([]Subtask, len(t.Subtasks))
	copy(out.Subtasks, t.Subtasks)
	return out
}
