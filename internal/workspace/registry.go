package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/chat"
	"github.com/spec-kit/workflow-service/internal/dashboard"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/feed"
	"github.com/spec-kit/workflow-service/internal/mutation"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/session"
	"github.com/spec-kit/workflow-service/internal/storage"
	"github.com/spec-kit/workflow-service/internal/store"
	"github.com/spec-kit/workflow-service/internal/subscription"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// Options tune workspace lifetimes.
type Options struct {
	IdleTimeout  time.Duration
	ReadyTimeout time.Duration
	ReapInterval time.Duration
	Retry        mutation.RetryPolicy
	AtomicAppend bool
}

// Dependencies bundles the shared collaborators every workspace is wired to.
type Dependencies struct {
	Auth       session.Authenticator
	Users      repository.UserRepository
	Tasks      repository.TaskRepository
	Requests   repository.RequestRepository
	Feed       feed.Feed
	Dispatcher events.Dispatcher
	Uploader   storage.Uploader
	Chat       *chat.Service
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
	Options    Options
}

// Registry owns one workspace per signed-in user.
type Registry struct {
	deps Dependencies

	mu         sync.Mutex
	workspaces map[string]*Workspace
	opening    map[string]*opening
}

// opening tracks a workspace being opened outside the registry lock.
type opening struct {
	done chan struct{}
	w    *Workspace
	err  error
}

// NewRegistry builds an empty registry.
func NewRegistry(deps Dependencies) *Registry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Options.ReadyTimeout <= 0 {
		deps.Options.ReadyTimeout = 5 * time.Second
	}
	return &Registry{deps: deps, workspaces: map[string]*Workspace{}, opening: map[string]*opening{}}
}

// Acquire returns the workspace of identity, opening it when needed, and
// waits until its first snapshots arrived.
func (r *Registry) Acquire(ctx context.Context, identity domain.Identity, tok auth.Token) (*Workspace, error) {
	w, err := r.lookupOrOpen(ctx, identity, tok)
	if err != nil {
		return nil, err
	}

	w.Touch()
	timer := time.NewTimer(r.deps.Options.ReadyTimeout)
	defer timer.Stop()
	select {
	case <-w.Ready():
		return w, nil
	case <-w.Done():
		return nil, apperrors.NewBackendError(errors.New("workspace closed"))
	case <-timer.C:
		return nil, apperrors.NewBackendError(errors.New("workspace not ready"))
	case <-ctx.Done():
		return nil, apperrors.NewBackendError(ctx.Err())
	}
}

// lookupOrOpen returns the live workspace of identity or opens one. Opening
// runs without holding r.mu; concurrent callers for the same user wait for
// the pending open instead of starting a second one.
func (r *Registry) lookupOrOpen(ctx context.Context, identity domain.Identity, tok auth.Token) (*Workspace, error) {
	r.mu.Lock()
	if w, ok := r.workspaces[identity.ID]; ok {
		select {
		case <-w.Done():
		default:
			r.mu.Unlock()
			return w, nil
		}
	}
	if p, ok := r.opening[identity.ID]; ok {
		r.mu.Unlock()
		select {
		case <-p.done:
			return p.w, p.err
		case <-ctx.Done():
			return nil, apperrors.NewBackendError(ctx.Err())
		}
	}
	p := &opening{done: make(chan struct{})}
	r.opening[identity.ID] = p
	r.mu.Unlock()

	p.w, p.err = r.open(identity, tok)

	r.mu.Lock()
	delete(r.opening, identity.ID)
	if p.err == nil {
		r.workspaces[identity.ID] = p.w
	}
	r.mu.Unlock()
	close(p.done)
	return p.w, p.err
}

// Lookup returns an open workspace without creating one.
func (r *Registry) Lookup(userID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workspaces[userID]
	return w, ok
}

// Release signs the workspace of userID out and stops it.
func (r *Registry) Release(ctx context.Context, userID string) bool {
	r.mu.Lock()
	w, ok := r.workspaces[userID]
	delete(r.workspaces, userID)
	r.mu.Unlock()
	if !ok {
		return false
	}
	w.session.SignOut(ctx)
	w.Close()
	r.deps.Logger.Info("workspace released", zap.String("user_id", userID))
	return true
}

// Len counts open workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Run closes idle workspaces until ctx ends, then closes all of them.
func (r *Registry) Run(ctx context.Context) {
	interval := r.deps.Options.ReapInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer r.CloseAll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap()
		}
	}
}

// Reap closes workspaces idle longer than the idle timeout. Sessions are not
// revoked; the next request reopens the workspace.
func (r *Registry) Reap() int {
	idle := r.deps.Options.IdleTimeout
	if idle <= 0 {
		return 0
	}
	now := r.deps.Clock()

	r.mu.Lock()
	var stale []*Workspace
	for id, w := range r.workspaces {
		if w.IdleSince(now) > idle {
			stale = append(stale, w)
			delete(r.workspaces, id)
		}
	}
	r.mu.Unlock()

	for _, w := range stale {
		w.Close()
		r.deps.Logger.Debug("idle workspace closed", zap.String("user_id", w.identity.ID))
	}
	return len(stale)
}

// CloseAll stops every workspace.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Workspace, 0, len(r.workspaces))
	for id, w := range r.workspaces {
		all = append(all, w)
		delete(r.workspaces, id)
	}
	r.mu.Unlock()
	for _, w := range all {
		w.Close()
	}
}

func (r *Registry) open(identity domain.Identity, tok auth.Token) (*Workspace, error) {
	deps := r.deps
	logger := deps.Logger.With(zap.String("user_id", identity.ID), zap.String("role", string(identity.Role)))

	ctx, cancel := context.WithCancel(context.Background())
	sess := session.New(deps.Auth, logger)
	sess.Restore(identity, tok)
	st := store.New()

	subOpts := subscription.Options{Logger: logger, Metrics: deps.Metrics}
	scope := identity.Department
	users, err := subscription.Subscribe(ctx, deps.Feed, domain.CollectionUsers,
		func(ctx context.Context) ([]domain.User, error) {
			return deps.Users.List(ctx, repository.UserFilter{})
		}, subOpts)
	if err != nil {
		cancel()
		return nil, apperrors.NewBackendError(err)
	}
	tasks, err := subscription.Subscribe(ctx, deps.Feed, domain.CollectionTasks,
		func(ctx context.Context) ([]domain.Task, error) {
			return deps.Tasks.List(ctx, repository.TaskFilter{Department: scope})
		}, subOpts)
	if err != nil {
		cancel()
		return nil, apperrors.NewBackendError(err)
	}
	requests, err := subscription.Subscribe(ctx, deps.Feed, domain.CollectionRequests,
		func(ctx context.Context) ([]domain.Request, error) {
			return deps.Requests.List(ctx, repository.RequestFilter{Department: scope})
		}, subOpts)
	if err != nil {
		cancel()
		return nil, apperrors.NewBackendError(err)
	}

	w := &Workspace{
		identity:  identity,
		session:   sess,
		store:     st,
		chat:      deps.Chat,
		clock:     deps.Clock,
		logger:    logger,
		users:     users,
		tasks:     tasks,
		requests:  requests,
		filters:   make(chan dashboard.Filters),
		chatOpen:  make(chan string),
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
		listeners: map[int]chan Update{},
	}
	w.gateway = mutation.New(mutation.Dependencies{
		Session:      sess,
		Snapshot:     st,
		Users:        deps.Users,
		Tasks:        deps.Tasks,
		Requests:     deps.Requests,
		Feed:         deps.Feed,
		Dispatcher:   deps.Dispatcher,
		Uploader:     deps.Uploader,
		Logger:       logger,
		Clock:        deps.Clock,
		Retry:        deps.Options.Retry,
		AtomicAppend: deps.Options.AtomicAppend,
	})
	sess.OnChange(func(id *domain.Identity) {
		if id == nil {
			w.broadcast(Update{Type: UpdateSignedOut})
		}
	})
	w.Touch()

	go w.run()
	logger.Info("workspace opened")
	return w, nil
}
