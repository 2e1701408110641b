// Package feed carries "collection changed" notices between writers and the
// subscriptions that rebuild snapshots.
package feed

import (
	"context"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// Feed publishes and observes change notices per collection. Notices carry no
// payload; observers reload the full collection.
type Feed interface {
	Notify(ctx context.Context, collection domain.Collection) error
	// Watch returns a channel receiving one value per observed change. Bursts
	// may be coalesced. The channel is closed once ctx is done.
	Watch(ctx context.Context, collection domain.Collection) (<-chan struct{}, error)
}

// signal performs a non-blocking send so a slow observer coalesces bursts.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
