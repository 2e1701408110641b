package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
)

func TestMemory_NotifyWakesOnlyMatchingWatchers(t *testing.T) {
	f := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tasks, err := f.Watch(ctx, domain.CollectionTasks)
	require.NoError(t, err)
	users, err := f.Watch(ctx, domain.CollectionUsers)
	require.NoError(t, err)

	require.NoError(t, f.Notify(ctx, domain.CollectionTasks))

	select {
	case <-tasks:
	case <-time.After(time.Second):
		t.Fatal("tasks watcher not notified")
	}
	select {
	case <-users:
		t.Fatal("users watcher notified for a tasks change")
	default:
	}
}

func TestMemory_BurstsCoalesce(t *testing.T) {
	f := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.Watch(ctx, domain.CollectionRequests)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.Notify(ctx, domain.CollectionRequests))
	}
	<-ch
	select {
	case <-ch:
		t.Fatal("expected bursts to coalesce into a single pending notice")
	default:
	}
}

func TestMemory_WatchClosesOnCancel(t *testing.T) {
	f := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := f.Watch(ctx, domain.CollectionUsers)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
}
