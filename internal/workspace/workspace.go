// Package workspace keeps the live application state of one signed-in user:
// the session, the collection store fed by subscriptions, the dashboard render
// model and the gateway used for writes.
package workspace

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/chat"
	"github.com/spec-kit/workflow-service/internal/dashboard"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/mutation"
	"github.com/spec-kit/workflow-service/internal/session"
	"github.com/spec-kit/workflow-service/internal/store"
)

// UpdateType tags messages pushed to listeners.
type UpdateType string

const (
	UpdateView      UpdateType = "view"
	UpdateChat      UpdateType = "chat"
	UpdateSignedOut UpdateType = "signed_out"
)

// Update is one push to a listener.
type Update struct {
	Type UpdateType
	View *dashboard.View
	Chat *ChatUpdate
}

// ChatUpdate carries the full conversation with PeerID.
type ChatUpdate struct {
	PeerID   string
	Messages []domain.ChatMessage
}

const listenerBuffer = 8

// Workspace is the state object of one identity. A single goroutine applies
// snapshots, filter changes and chat selection in arrival order, so view
// recomputation never interleaves.
type Workspace struct {
	identity domain.Identity
	session  *session.Session
	store    *store.Store
	gateway  *mutation.Gateway
	chat     *chat.Service
	clock    func() time.Time
	logger   *zap.Logger

	users    <-chan []domain.User
	tasks    <-chan []domain.Task
	requests <-chan []domain.Request

	filters  chan dashboard.Filters
	chatOpen chan string

	ctx    context.Context
	cancel context.CancelFunc
	ready  chan struct{}
	done   chan struct{}

	lastUsed atomic.Int64

	mu        sync.RWMutex
	view      dashboard.View
	nextID    int
	listeners map[int]chan Update
}

// Identity returns the identity the workspace was opened for.
func (w *Workspace) Identity() domain.Identity {
	return w.identity
}

// Session returns the workspace session.
func (w *Workspace) Session() *session.Session {
	return w.session
}

// Gateway returns the write gateway bound to this workspace.
func (w *Workspace) Gateway() *mutation.Gateway {
	return w.gateway
}

// Snapshot exposes the collection store read side.
func (w *Workspace) Snapshot() store.Snapshot {
	return w.store
}

// View returns the latest render model.
func (w *Workspace) View() dashboard.View {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.view
}

// Ready is closed once every collection delivered its first snapshot.
func (w *Workspace) Ready() <-chan struct{} {
	return w.ready
}

// Done is closed when the workspace stopped.
func (w *Workspace) Done() <-chan struct{} {
	return w.done
}

// Touch marks the workspace as used now.
func (w *Workspace) Touch() {
	w.lastUsed.Store(w.clock().UnixNano())
}

// IdleSince reports how long the workspace has gone unused.
func (w *Workspace) IdleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, w.lastUsed.Load()))
}

// SetFilters replaces the dashboard filters and recomputes the view.
func (w *Workspace) SetFilters(ctx context.Context, f dashboard.Filters) error {
	select {
	case w.filters <- f:
		return nil
	case <-w.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OpenChat streams the conversation with peerID to listeners. An empty peer
// closes the open conversation.
func (w *Workspace) OpenChat(ctx context.Context, peerID string) error {
	select {
	case w.chatOpen <- peerID:
		return nil
	case <-w.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendChat writes a direct message from the workspace identity.
func (w *Workspace) SendChat(ctx context.Context, peerID, text string) (*domain.ChatMessage, error) {
	return w.chat.Send(ctx, w.identity, peerID, text)
}

// Contacts lists active users the identity may chat with.
func (w *Workspace) Contacts() []domain.User {
	return chat.Contacts(w.store.Users(), w.identity.ID)
}

// Listen registers a listener. The current view is queued immediately. The
// returned function unregisters it; the channel is closed on unregister or
// when the workspace stops.
func (w *Workspace) Listen() (<-chan Update, func()) {
	ch := make(chan Update, listenerBuffer)

	w.mu.Lock()
	select {
	case <-w.ready:
		view := w.view
		ch <- Update{Type: UpdateView, View: &view}
	default:
	}
	id := w.nextID
	w.nextID++
	if w.listeners != nil {
		w.listeners[id] = ch
	} else {
		close(ch)
	}
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if l, ok := w.listeners[id]; ok {
				delete(w.listeners, id)
				close(l)
			}
		})
	}
}

// Close stops the consumer loop and every subscription.
func (w *Workspace) Close() {
	w.cancel()
	<-w.done
}

func (w *Workspace) run() {
	defer close(w.done)
	defer w.closeListeners()

	var (
		filters                            dashboard.Filters
		seenUsers, seenTasks, seenRequests bool
		readyDelivered                     bool
		chatCh                             <-chan []domain.ChatMessage
		chatPeer                           string
	)
	chatCancel := context.CancelFunc(func() {})
	users, tasks, requests := w.users, w.tasks, w.requests
	defer func() { chatCancel() }()

	recompute := func() {
		if !seenUsers || !seenTasks || !seenRequests {
			return
		}
		view := dashboard.Build(w.identity, w.store, filters, w.clock())
		w.mu.Lock()
		w.view = view
		w.mu.Unlock()
		if !readyDelivered {
			readyDelivered = true
			close(w.ready)
		}
		w.broadcast(Update{Type: UpdateView, View: &view})
	}

	for {
		select {
		case <-w.ctx.Done():
			return
		case snap, ok := <-users:
			if !ok {
				users = nil
				continue
			}
			w.store.ReplaceUsers(snap)
			seenUsers = true
			recompute()
		case snap, ok := <-tasks:
			if !ok {
				tasks = nil
				continue
			}
			w.store.ReplaceTasks(snap)
			seenTasks = true
			recompute()
		case snap, ok := <-requests:
			if !ok {
				requests = nil
				continue
			}
			w.store.ReplaceRequests(snap)
			seenRequests = true
			recompute()
		case f := <-w.filters:
			filters = f
			recompute()
		case peer := <-w.chatOpen:
			chatCancel()
			chatCancel, chatCh, chatPeer = func() {}, nil, peer
			if peer == "" {
				continue
			}
			ctx, cancel := context.WithCancel(w.ctx)
			stream, err := w.chat.Subscribe(ctx, w.identity.ID, peer)
			if err != nil {
				cancel()
				w.logger.Warn("chat subscription failed", zap.String("peer_id", peer), zap.Error(err))
				continue
			}
			chatCancel, chatCh = cancel, stream
		case msgs, ok := <-chatCh:
			if !ok {
				chatCh = nil
				continue
			}
			w.broadcast(Update{Type: UpdateChat, Chat: &ChatUpdate{PeerID: chatPeer, Messages: msgs}})
		}
	}
}

// broadcast queues u for every listener, dropping the oldest queued update
// of a listener that fell behind.
func (w *Workspace) broadcast(u Update) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, ch := range w.listeners {
		select {
		case ch <- u:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

func (w *Workspace) closeListeners() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range w.listeners {
		delete(w.listeners, id)
		close(ch)
	}
	w.listeners = nil
}
