// Package subscription turns change notices into a stream of full snapshots.
package subscription

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/feed"
	"github.com/spec-kit/workflow-service/internal/observability"
)

// Loader reads the current filtered set of a collection.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Options tune a subscription.
type Options struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	// RewatchDelay is the wait before re-subscribing after the feed drops.
	RewatchDelay time.Duration
}

// Subscribe loads an initial snapshot and then reloads the entire set every
// time the feed reports a change. The returned channel always carries the
// most recent snapshot not yet received; older undelivered snapshots are
// replaced. A failed reload is logged and produces no delivery, so the
// consumer keeps its last good snapshot. The channel is closed when ctx ends.
//
// An error is returned only when the feed cannot be watched or the initial
// load fails.
func Subscribe[T any](ctx context.Context, f feed.Feed, collection domain.Collection, load Loader[T], opts Options) (<-chan []T, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RewatchDelay <= 0 {
		opts.RewatchDelay = time.Second
	}
	logger = logger.With(zap.String("collection", string(collection)))

	// Watch before the first load so changes made in between are not missed.
	notices, err := f.Watch(ctx, collection)
	if err != nil {
		return nil, err
	}
	initial, err := load(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan []T)
	go func() {
		defer close(out)

		pending, hasPending := initial, true
		reload := func() {
			items, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				opts.Metrics.RecordFeedError(string(collection))
				logger.Warn("snapshot reload failed, keeping previous snapshot", zap.Error(err))
				return
			}
			pending, hasPending = items, true
		}

		for {
			var send chan<- []T
			if hasPending {
				send = out
			}

			select {
			case <-ctx.Done():
				return
			case send <- pending:
				hasPending = false
				opts.Metrics.RecordSnapshot(string(collection))
			case _, ok := <-notices:
				if ok {
					reload()
					continue
				}
				if ctx.Err() != nil {
					return
				}
				opts.Metrics.RecordFeedError(string(collection))
				logger.Warn("change feed dropped, re-subscribing")
				notices = rewatch(ctx, f, collection, opts.RewatchDelay, logger, opts.Metrics)
				if notices == nil {
					return
				}
				// Changes may have been missed while disconnected.
				reload()
			}
		}
	}()
	return out, nil
}

func rewatch(ctx context.Context, f feed.Feed, collection domain.Collection, delay time.Duration, logger *zap.Logger, metrics *observability.Metrics) <-chan struct{} {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		notices, err := f.Watch(ctx, collection)
		if err == nil {
			return notices
		}
		metrics.RecordFeedError(string(collection))
		logger.Warn("re-subscribe failed", zap.Error(err))
		timer.Reset(delay)
	}
}
