package subscription

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/feed"
	"github.com/spec-kit/workflow-service/internal/observability"
)

type source struct {
	mu    sync.Mutex
	items []string
	err   error
	loads atomic.Int32
}

func (s *source) set(items []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items, s.err = items, err
}

func (s *source) load(context.Context) ([]string, error) {
	s.loads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]string(nil), s.items...), nil
}

func receive(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
		return nil
	}
}

func TestSubscribe_DeliversInitialSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &source{items: []string{"a", "b"}}

	ch, err := Subscribe(ctx, feed.NewMemory(), domain.CollectionTasks, src.load, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, receive(t, ch))
}

func TestSubscribe_RedeliversFullSetOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := feed.NewMemory()
	src := &source{items: []string{"a"}}
	metrics := observability.NewMetrics()

	ch, err := Subscribe(ctx, f, domain.CollectionTasks, src.load, Options{Metrics: metrics})
	require.NoError(t, err)
	receive(t, ch)

	src.set([]string{"a", "b", "c"}, nil)
	require.NoError(t, f.Notify(ctx, domain.CollectionTasks))

	assert.Equal(t, []string{"a", "b", "c"}, receive(t, ch))
	assert.EqualValues(t, 2, metrics.Snapshot().Snapshots["tasks"])
}

func TestSubscribe_ReloadFailureKeepsPreviousSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := feed.NewMemory()
	src := &source{items: []string{"a"}}
	metrics := observability.NewMetrics()

	ch, err := Subscribe(ctx, f, domain.CollectionRequests, src.load, Options{Metrics: metrics})
	require.NoError(t, err)
	receive(t, ch)

	src.set(nil, errors.New("connection reset"))
	require.NoError(t, f.Notify(ctx, domain.CollectionRequests))

	require.Eventually(t, func() bool { return src.loads.Load() >= 2 }, time.Second, 5*time.Millisecond)
	select {
	case snap := <-ch:
		t.Fatalf("unexpected delivery after failed reload: %v", snap)
	case <-time.After(50 * time.Millisecond):
	}
	assert.EqualValues(t, 1, metrics.Snapshot().FeedErrs["requests"])

	src.set([]string{"a", "b"}, nil)
	require.NoError(t, f.Notify(ctx, domain.CollectionRequests))
	assert.Equal(t, []string{"a", "b"}, receive(t, ch))
}

func TestSubscribe_InitialLoadFailure(t *testing.T) {
	src := &source{err: errors.New("permission denied")}

	_, err := Subscribe(context.Background(), feed.NewMemory(), domain.CollectionUsers, src.load, Options{})
	require.Error(t, err)
}

func TestSubscribe_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &source{items: []string{"a"}}

	ch, err := Subscribe(ctx, feed.NewMemory(), domain.CollectionUsers, src.load, Options{})
	require.NoError(t, err)
	receive(t, ch)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}
