package dashboard

import (
	"strings"
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/store"
)

// UrgentWindowDays bounds the employee urgent panel, counted from today.
const UrgentWindowDays = 3

// Build computes the render model for identity. today is truncated to its
// calendar day.
func Build(identity domain.Identity, snap store.Snapshot, filters Filters, today time.Time) View {
	today = domain.DateOf(today)
	view := View{
		Identity: identity,
		Role:     identity.Role,
		Filters:  filters,
		Names:    map[string]string{},
	}

	switch identity.Role {
	case domain.RoleSuperAdmin:
		view.SuperAdmin = buildSuperAdmin(snap.Users(), filters)
		for _, u := range snap.Users() {
			view.Names[u.ID] = u.Name
		}
	case domain.RoleAdmin:
		tasks, requests := scope(identity, snap)
		view.Admin = &AdminView{
			Metrics:   metrics(tasks, requests, today),
			Tasks:     filterTasks(tasks, filters, true),
			Requests:  requests,
			Assignees: assignees(identity, snap.Users()),
		}
		view.Admin.Kanban = kanban(view.Admin.Tasks)
		fillNames(view.Names, identity, snap.Users())
	default:
		tasks, requests := scope(identity, snap)
		tasks, requests = narrowToSelf(identity.ID, tasks, requests)
		view.Employee = &EmployeeView{
			Metrics:  metrics(tasks, requests, today),
			Tasks:    filterTasks(tasks, filters, false),
			Urgent:   urgent(tasks, today),
			Requests: requests,
		}
		view.Employee.Kanban = kanban(view.Employee.Tasks)
		fillNames(view.Names, identity, snap.Users())
	}
	return view
}

func buildSuperAdmin(users []domain.User, filters Filters) *SuperAdminView {
	out := &SuperAdminView{Users: []domain.User{}}
	keyword := strings.ToLower(strings.TrimSpace(filters.Keyword))
	for _, u := range users {
		if u.Role == domain.RoleSuperAdmin {
			continue
		}
		out.TotalUsers++
		if u.Active {
			out.ActiveUsers++
		}
		if keyword != "" && !containsFold(u.Name, keyword) && !containsFold(u.Email, keyword) {
			continue
		}
		out.Users = append(out.Users, u)
	}
	return out
}

// scope keeps the records of the identity's department. Unscoped identities
// see everything.
func scope(identity domain.Identity, snap store.Snapshot) ([]domain.Task, []domain.Request) {
	tasks, requests := snap.Tasks(), snap.Requests()
	if !identity.Scoped() {
		return tasks, requests
	}
	dept := identity.DepartmentName()
	scopedTasks := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Department == dept {
			scopedTasks = append(scopedTasks, t)
		}
	}
	scopedRequests := make([]domain.Request, 0, len(requests))
	for _, r := range requests {
		if r.Department == dept {
			scopedRequests = append(scopedRequests, r)
		}
	}
	return scopedTasks, scopedRequests
}

func narrowToSelf(userID string, tasks []domain.Task, requests []domain.Request) ([]domain.Task, []domain.Request) {
	ownTasks := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.AssignedToID == userID {
			ownTasks = append(ownTasks, t)
		}
	}
	ownRequests := make([]domain.Request, 0, len(requests))
	for _, r := range requests {
		if r.SubmitterID == userID || (r.AssignedToID != nil && *r.AssignedToID == userID) {
			ownRequests = append(ownRequests, r)
		}
	}
	return ownTasks, ownRequests
}

func filterTasks(tasks []domain.Task, filters Filters, byAssignee bool) []domain.Task {
	keyword := strings.ToLower(strings.TrimSpace(filters.Keyword))
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if active(filters.Status) && string(t.Status) != filters.Status {
			continue
		}
		if active(filters.Priority) && string(t.Priority) != filters.Priority {
			continue
		}
		if byAssignee && active(filters.Assignee) && t.AssignedToID != filters.Assignee {
			continue
		}
		if keyword != "" && !containsFold(t.Title, keyword) && !containsFold(t.Description, keyword) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func metrics(tasks []domain.Task, requests []domain.Request, today time.Time) Metrics {
	var m Metrics
	for _, t := range tasks {
		if t.Status == domain.TaskStatusInProgress {
			m.InProgress++
		}
		if t.Status != domain.TaskStatusDone && t.Deadline.Before(today) {
			m.Overdue++
		}
	}
	for _, r := range requests {
		if r.Status == domain.RequestStatusPending {
			m.PendingRequests++
		}
	}
	return m
}

func urgent(tasks []domain.Task, today time.Time) []domain.Task {
	limit := today.AddDate(0, 0, UrgentWindowDays)
	out := []domain.Task{}
	for _, t := range tasks {
		if t.Status == domain.TaskStatusDone {
			continue
		}
		if t.Deadline.Before(today) || t.Deadline.After(limit) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// kanban drops tasks whose status is not a board column.
func kanban(tasks []domain.Task) Kanban {
	k := Kanban{Todo: []domain.Task{}, InProgress: []domain.Task{}, Done: []domain.Task{}}
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskStatusTodo:
			k.Todo = append(k.Todo, t)
		case domain.TaskStatusInProgress:
			k.InProgress = append(k.InProgress, t)
		case domain.TaskStatusDone:
			k.Done = append(k.Done, t)
		}
	}
	return k
}

// assignees lists active department members who may hold tasks.
func assignees(identity domain.Identity, users []domain.User) []domain.User {
	out := []domain.User{}
	for _, u := range users {
		if u.Active && u.Role != domain.RoleSuperAdmin && u.InDepartment(identity.DepartmentName()) {
			out = append(out, u)
		}
	}
	return out
}

func fillNames(names map[string]string, identity domain.Identity, users []domain.User) {
	for _, u := range users {
		if u.ID == identity.ID || u.InDepartment(identity.DepartmentName()) {
			names[u.ID] = u.Name
		}
	}
}

func containsFold(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(s), lowerNeedle)
}
