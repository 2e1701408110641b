// Package store holds the latest delivered snapshot of every collection.
package store

import (
	"sort"
	"sync"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// Snapshot is the read side of the collection store.
type Snapshot interface {
	User(id string) (domain.User, bool)
	Task(id string) (domain.Task, bool)
	Request(id string) (domain.Request, bool)
	Users() []domain.User
	Tasks() []domain.Task
	Requests() []domain.Request
}

// Store keeps one map per collection. Each Replace call swaps the whole map;
// there is no incremental merge.
type Store struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	tasks    map[string]domain.Task
	requests map[string]domain.Request
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:    map[string]domain.User{},
		tasks:    map[string]domain.Task{},
		requests: map[string]domain.Request{},
	}
}

// ReplaceUsers installs a users snapshot.
func (s *Store) ReplaceUsers(users []domain.User) {
	next := make(map[string]domain.User, len(users))
	for _, u := range users {
		next[u.ID] = u
	}
	s.mu.Lock()
	s.users = next
	s.mu.Unlock()
}

// ReplaceTasks installs a tasks snapshot.
func (s *Store) ReplaceTasks(tasks []domain.Task) {
	next := make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		next[t.ID] = t.Clone()
	}
	s.mu.Lock()
	s.tasks = next
	s.mu.Unlock()
}

// ReplaceRequests installs a requests snapshot.
func (s *Store) ReplaceRequests(requests []domain.Request) {
	next := make(map[string]domain.Request, len(requests))
	for _, r := range requests {
		next[r.ID] = r
	}
	s.mu.Lock()
	s.requests = next
	s.mu.Unlock()
}

func (s *Store) User(id string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *Store) Task(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, false
	}
	return t.Clone(), true
}

func (s *Store) Request(id string) (domain.Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	return r, ok
}

// Users returns users ordered by name, then id.
func (s *Store) Users() []domain.User {
	s.mu.RLock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Tasks returns tasks ordered by deadline, then creation time, then id.
func (s *Store) Tasks() []domain.Task {
	s.mu.RLock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Deadline.Equal(b.Deadline) {
			return a.Deadline.Before(b.Deadline)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// Requests returns requests newest first.
func (s *Store) Requests() []domain.Request {
	s.mu.RLock()
	out := make([]domain.Request, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
