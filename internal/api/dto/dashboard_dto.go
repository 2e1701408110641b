package dto

import (
	"github.com/spec-kit/workflow-service/internal/dashboard"
	"github.com/spec-kit/workflow-service/internal/domain"
)

// KanbanResponse holds the three board columns.
type KanbanResponse struct {
	Todo       []TaskResponse `json:"todo"`
	InProgress []TaskResponse `json:"in_progress"`
	Done       []TaskResponse `json:"done"`
}

// SuperAdminDashboard is the account overview.
type SuperAdminDashboard struct {
	Users       []UserResponse `json:"users"`
	TotalUsers  int            `json:"total_users"`
	ActiveUsers int            `json:"active_users"`
}

// AdminDashboard is the department board.
type AdminDashboard struct {
	Metrics   dashboard.Metrics `json:"metrics"`
	Tasks     []TaskResponse    `json:"tasks"`
	Kanban    KanbanResponse    `json:"kanban"`
	Requests  []RequestResponse `json:"requests"`
	Assignees []UserResponse    `json:"assignees"`
}

// EmployeeDashboard is the personal board.
type EmployeeDashboard struct {
	Metrics  dashboard.Metrics `json:"metrics"`
	Tasks    []TaskResponse    `json:"tasks"`
	Kanban   KanbanResponse    `json:"kanban"`
	Urgent   []TaskResponse    `json:"urgent"`
	Requests []RequestResponse `json:"requests"`
}

// ViewResponse is the role-tagged dashboard. Exactly one of the role
// sections is present.
type ViewResponse struct {
	Identity   domain.Identity      `json:"identity"`
	Role       domain.Role          `json:"role"`
	Filters    dashboard.Filters    `json:"filters"`
	SuperAdmin *SuperAdminDashboard `json:"super_admin,omitempty"`
	Admin      *AdminDashboard      `json:"admin,omitempty"`
	Employee   *EmployeeDashboard   `json:"employee,omitempty"`
}

// NewViewResponse maps a render model.
func NewViewResponse(v dashboard.View) ViewResponse {
	resp := ViewResponse{Identity: v.Identity, Role: v.Role, Filters: v.Filters}
	switch {
	case v.SuperAdmin != nil:
		resp.SuperAdmin = &SuperAdminDashboard{
			Users:       NewUserResponses(v.SuperAdmin.Users),
			TotalUsers:  v.SuperAdmin.TotalUsers,
			ActiveUsers: v.SuperAdmin.ActiveUsers,
		}
	case v.Admin != nil:
		resp.Admin = &AdminDashboard{
			Metrics:   v.Admin.Metrics,
			Tasks:     NewTaskResponses(v.Admin.Tasks, v.Names),
			Kanban:    newKanban(v.Admin.Kanban, v.Names),
			Requests:  NewRequestResponses(v.Admin.Requests, v.Names),
			Assignees: NewUserResponses(v.Admin.Assignees),
		}
	case v.Employee != nil:
		resp.Employee = &EmployeeDashboard{
			Metrics:  v.Employee.Metrics,
			Tasks:    NewTaskResponses(v.Employee.Tasks, v.Names),
			Kanban:   newKanban(v.Employee.Kanban, v.Names),
			Urgent:   NewTaskResponses(v.Employee.Urgent, v.Names),
			Requests: NewRequestResponses(v.Employee.Requests, v.Names),
		}
	}
	return resp
}

func newKanban(k dashboard.Kanban, names map[string]string) KanbanResponse {
	return KanbanResponse{
		Todo:       NewTaskResponses(k.Todo, names),
		InProgress: NewTaskResponses(k.InProgress, names),
		Done:       NewTaskResponses(k.Done, names),
	}
}
