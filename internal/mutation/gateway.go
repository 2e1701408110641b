// Package mutation validates and issues writes on behalf of a signed-in
// identity. A write only reports whether it was accepted; the resulting state
// reaches views through the change feed.
package mutation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/feed"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/storage"
	"github.com/spec-kit/workflow-service/internal/store"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// IdentitySource yields the identity writes are issued for.
type IdentitySource interface {
	Identity() (domain.Identity, bool)
}

// RetryPolicy bounds retries of backend failures. Validation, authorization
// and not-found errors are never retried.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Dependencies bundles what a gateway needs.
type Dependencies struct {
	Session    IdentitySource
	Snapshot   store.Snapshot
	Users      repository.UserRepository
	Tasks      repository.TaskRepository
	Requests   repository.RequestRepository
	Feed       feed.Feed
	Dispatcher events.Dispatcher
	Uploader   storage.Uploader
	Logger     *zap.Logger
	Clock      func() time.Time
	Retry      RetryPolicy
	// AtomicAppend selects persistence-level append/toggle for comments and
	// subtasks. When false the whole array is rewritten from Snapshot.
	AtomicAppend bool
}

// Gateway issues the writes of one workspace.
type Gateway struct {
	session      IdentitySource
	snapshot     store.Snapshot
	users        repository.UserRepository
	tasks        repository.TaskRepository
	requests     repository.RequestRepository
	feed         feed.Feed
	dispatcher   events.Dispatcher
	uploader     storage.Uploader
	logger       *zap.Logger
	clock        func() time.Time
	retry        RetryPolicy
	atomicAppend bool
}

// New builds a gateway.
func New(deps Dependencies) *Gateway {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher(logger)
	}
	return &Gateway{
		session:      deps.Session,
		snapshot:     deps.Snapshot,
		users:        deps.Users,
		tasks:        deps.Tasks,
		requests:     deps.Requests,
		feed:         deps.Feed,
		dispatcher:   dispatcher,
		uploader:     deps.Uploader,
		logger:       logger,
		clock:        clock,
		retry:        deps.Retry,
		atomicAppend: deps.AtomicAppend,
	}
}

func (g *Gateway) identity() (domain.Identity, error) {
	identity, ok := g.session.Identity()
	if !ok {
		return domain.Identity{}, apperrors.NewUnauthorized("not signed in")
	}
	return identity, nil
}

func (g *Gateway) today() time.Time {
	return domain.DateOf(g.clock())
}

// do runs fn, retrying backend failures with exponential backoff.
func (g *Gateway) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := g.retry.Backoff
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || !transient(err) {
			return mapRepoError(err)
		}
		if attempt >= g.retry.MaxRetries {
			break
		}
		g.logger.Warn("backend write failed, retrying",
			zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))
		if backoff > 0 {
			select {
			case <-ctx.Done():
				return apperrors.NewBackendError(ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	g.logger.Error("backend write failed", zap.String("op", op), zap.Error(err))
	return apperrors.NewBackendError(err)
}

// commit runs a write and announces the changed collection. A failed
// announcement is logged; the write itself already succeeded.
func (g *Gateway) commit(ctx context.Context, op string, collection domain.Collection, fn func(ctx context.Context) error) error {
	if err := g.do(ctx, op, fn); err != nil {
		return err
	}
	if g.feed != nil {
		if err := g.feed.Notify(ctx, collection); err != nil {
			g.logger.Warn("change notice failed", zap.String("op", op), zap.String("collection", string(collection)), zap.Error(err))
		}
	}
	return nil
}

func (g *Gateway) publish(ctx context.Context, event events.Event) {
	_ = g.dispatcher.Publish(ctx, event)
}

func transient(err error) bool {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return false
	}
	return !errors.Is(err, repository.ErrNotFound) &&
		!errors.Is(err, repository.ErrSubtaskIndex) &&
		!errors.Is(err, repository.ErrEmailTaken) &&
		!errors.Is(err, context.Canceled)
}

func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("record", nil)
	case errors.Is(err, repository.ErrSubtaskIndex):
		return apperrors.NewValidationError("subtask does not exist", map[string]any{"index": "out of range"})
	case errors.Is(err, repository.ErrEmailTaken):
		return apperrors.NewConflict("email already registered", nil)
	case errors.Is(err, context.Canceled):
		return apperrors.NewBackendError(err)
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return apperrors.NewBackendError(err)
}
