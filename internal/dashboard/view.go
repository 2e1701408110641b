// Package dashboard projects the collection store into role-specific render
// models. Everything here is a pure function of its inputs.
package dashboard

import (
	"strings"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// FilterAll disables a filter.
const FilterAll = "all"

// Filters are the detail-list selections of a dashboard.
type Filters struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Assignee string `json:"assignee"`
	Keyword  string `json:"keyword"`
}

func active(v string) bool {
	return v != "" && !strings.EqualFold(v, FilterAll)
}

// Metrics are the summary counters. They are computed before filters apply.
type Metrics struct {
	InProgress      int `json:"in_progress"`
	Overdue         int `json:"overdue"`
	PendingRequests int `json:"pending_requests"`
}

// Kanban groups tasks into the three board columns.
type Kanban struct {
	Todo       []domain.Task
	InProgress []domain.Task
	Done       []domain.Task
}

// Len counts the tasks on the board.
func (k Kanban) Len() int {
	return len(k.Todo) + len(k.InProgress) + len(k.Done)
}

// View is the capability-tagged render model. Exactly one of SuperAdmin, Admin
// or Employee is set, matching Role.
type View struct {
	Identity domain.Identity
	Role     domain.Role
	Filters  Filters
	// Names maps user ids visible to this identity to display names.
	Names map[string]string

	SuperAdmin *SuperAdminView
	Admin      *AdminView
	Employee   *EmployeeView
}

// SuperAdminView lists every non-SuperAdmin account.
type SuperAdminView struct {
	Users       []domain.User
	TotalUsers  int
	ActiveUsers int
}

// AdminView is the department management board.
type AdminView struct {
	Metrics  Metrics
	Tasks    []domain.Task
	Kanban   Kanban
	Requests []domain.Request
	// Assignees are the users that may receive new tasks.
	Assignees []domain.User
}

// EmployeeView is the personal board of an Employee.
type EmployeeView struct {
	Metrics  Metrics
	Tasks    []domain.Task
	Kanban   Kanban
	Urgent   []domain.Task
	Requests []domain.Request
}
