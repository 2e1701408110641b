package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// Memory holds every collection in process memory. It backs development runs
// without POSTGRES_DSN and the test suites.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	tasks    map[string]domain.Task
	requests map[string]domain.Request
	messages map[string][]domain.ChatMessage
	now      func() time.Time
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]domain.User),
		tasks:    make(map[string]domain.Task),
		requests: make(map[string]domain.Request),
		messages: make(map[string][]domain.ChatMessage),
		now:      time.Now,
	}
}

// Users returns the user repository view.
func (m *Memory) Users() UserRepository { return memoryUsers{m} }

// Tasks returns the task repository view.
func (m *Memory) Tasks() TaskRepository { return memoryTasks{m} }

// Requests returns the request repository view.
func (m *Memory) Requests() RequestRepository { return memoryRequests{m} }

// ChatMessages returns the chat repository view.
func (m *Memory) ChatMessages() ChatMessageRepository { return memoryChats{m} }

type memoryUsers struct{ m *Memory }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	email := strings.ToLower(user.Email)
	for _, existing := range r.m.users {
		if existing.Email == email {
			return ErrEmailTaken
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = email
	user.CreatedAt = r.m.now()
	user.UpdatedAt = user.CreatedAt
	r.m.users[user.ID] = *user
	return nil
}

func (r memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	user, ok := r.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	email = strings.ToLower(email)
	for _, user := range r.m.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryUsers) List(_ context.Context, filter UserFilter) ([]domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	result := make([]domain.User, 0, len(r.m.users))
	for _, user := range r.m.users {
		if filter.Department != nil && !user.InDepartment(*filter.Department) {
			continue
		}
		if filter.Active != nil && user.Active != *filter.Active {
			continue
		}
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r memoryUsers) SetActive(_ context.Context, id string, active bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok {
		return ErrNotFound
	}
	user.Active = active
	user.UpdatedAt = r.m.now()
	r.m.users[id] = user
	return nil
}

func (r memoryUsers) Count(_ context.Context) (int, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return len(r.m.users), nil
}

type memoryTasks struct{ m *Memory }

func (r memoryTasks) Create(_ context.Context, task *domain.Task) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Comments = nonNilComments(task.Comments)
	task.Subtasks = nonNilSubtasks(task.Subtasks)
	task.CreatedAt = r.m.now()
	task.UpdatedAt = task.CreatedAt
	r.m.tasks[task.ID] = task.Clone()
	return nil
}

func (r memoryTasks) Patch(_ context.Context, id string, patch TaskPatch) error {
	return r.update(id, func(t *domain.Task) error {
		patch.Apply(t)
		return nil
	})
}

func (r memoryTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	task, ok := r.m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := task.Clone()
	return &out, nil
}

func (r memoryTasks) List(_ context.Context, filter TaskFilter) ([]domain.Task, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	result := make([]domain.Task, 0, len(r.m.tasks))
	for _, task := range r.m.tasks {
		if filter.Department != nil && task.Department != *filter.Department {
			continue
		}
		result = append(result, task.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Deadline.Equal(result[j].Deadline) {
			return result[i].Deadline.Before(result[j].Deadline)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r memoryTasks) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.tasks, id)
	return nil
}

func (r memoryTasks) AppendComment(_ context.Context, id string, comment domain.Comment) error {
	return r.update(id, func(t *domain.Task) error {
		t.Comments = append(t.Comments, comment)
		return nil
	})
}

func (r memoryTasks) AppendSubtask(_ context.Context, id string, subtask domain.Subtask) error {
	return r.update(id, func(t *domain.Task) error {
		t.Subtasks = append(t.Subtasks, subtask)
		return nil
	})
}

func (r memoryTasks) ToggleSubtask(_ context.Context, id string, index int) error {
	return r.update(id, func(t *domain.Task) error {
		if index < 0 || index >= len(t.Subtasks) {
			return ErrSubtaskIndex
		}
		t.Subtasks[index].Done = !t.Subtasks[index].Done
		return nil
	})
}

func (r memoryTasks) update(id string, fn func(*domain.Task) error) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	task, ok := r.m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	task = task.Clone()
	if err := fn(&task); err != nil {
		return err
	}
	task.UpdatedAt = r.m.now()
	r.m.tasks[id] = task
	return nil
}

type memoryRequests struct{ m *Memory }

func (r memoryRequests) Create(_ context.Context, req *domain.Request) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.CreatedAt = r.m.now()
	req.UpdatedAt = req.CreatedAt
	r.m.requests[req.ID] = *req
	return nil
}

func (r memoryRequests) Patch(_ context.Context, id string, patch RequestPatch) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	req, ok := r.m.requests[id]
	if !ok {
		return ErrNotFound
	}
	patch.Apply(&req)
	req.UpdatedAt = r.m.now()
	r.m.requests[id] = req
	return nil
}

func (r memoryRequests) GetByID(_ context.Context, id string) (*domain.Request, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	req, ok := r.m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &req, nil
}

func (r memoryRequests) List(_ context.Context, filter RequestFilter) ([]domain.Request, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	result := make([]domain.Request, 0, len(r.m.requests))
	for _, req := range r.m.requests {
		if filter.Department != nil && req.Department != *filter.Department {
			continue
		}
		result = append(result, req)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

type memoryChats struct{ m *Memory }

func (r memoryChats) Create(_ context.Context, msg *domain.ChatMessage) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Timestamp = r.m.now()
	r.m.messages[msg.ChatID] = append(r.m.messages[msg.ChatID], *msg)
	return nil
}

func (r memoryChats) ListByChat(_ context.Context, chatID string) ([]domain.ChatMessage, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	msgs := make([]domain.ChatMessage, len(r.m.messages[chatID]))
	copy(msgs, r.m.messages[chatID])
	return msgs, nil
}
