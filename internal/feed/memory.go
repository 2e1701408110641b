package feed

import (
	"context"
	"sync"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// Memory is a process-local Feed.
type Memory struct {
	mu       sync.Mutex
	watchers map[domain.Collection]map[chan struct{}]struct{}
}

// NewMemory creates an empty in-process feed.
func NewMemory() *Memory {
	return &Memory{watchers: make(map[domain.Collection]map[chan struct{}]struct{})}
}

// Notify wakes every watcher of the collection.
func (m *Memory) Notify(_ context.Context, collection domain.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.watchers[collection] {
		signal(ch)
	}
	return nil
}

// Watch registers a watcher until ctx is done.
func (m *Memory) Watch(ctx context.Context, collection domain.Collection) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	if m.watchers[collection] == nil {
		m.watchers[collection] = make(map[chan struct{}]struct{})
	}
	m.watchers[collection][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers[collection], ch)
		if len(m.watchers[collection]) == 0 {
			delete(m.watchers, collection)
		}
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}
