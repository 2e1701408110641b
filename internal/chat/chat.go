// Package chat implements direct messages between two users.
package chat

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/feed"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/subscription"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// MaxMessageLength bounds a single message.
const MaxMessageLength = 2000

// Service sends and streams conversations.
type Service struct {
	messages   repository.ChatMessageRepository
	users      repository.UserRepository
	feed       feed.Feed
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// Dependencies bundles what the chat service needs.
type Dependencies struct {
	Messages   repository.ChatMessageRepository
	Users      repository.UserRepository
	Feed       feed.Feed
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewService builds the chat service.
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		messages:   deps.Messages,
		users:      deps.Users,
		feed:       deps.Feed,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Send appends a message to the conversation between sender and receiverID.
func (s *Service) Send(ctx context.Context, sender domain.Identity, receiverID, text string) (*domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return nil, apperrors.NewValidationError("message is empty", map[string]any{"text": "required"})
	case len([]rune(text)) > MaxMessageLength:
		return nil, apperrors.NewValidationError("message too long", map[string]any{"text": "too long"})
	case receiverID == "" || receiverID == sender.ID:
		return nil, apperrors.NewValidationError("invalid receiver", map[string]any{"receiver_id": "invalid"})
	}
	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": receiverID})
		}
		return nil, apperrors.NewBackendError(err)
	}
	if !receiver.Active {
		return nil, apperrors.NewValidationError("receiver is inactive", map[string]any{"receiver_id": "inactive"})
	}

	msg := &domain.ChatMessage{
		ChatID:     domain.ChatID(sender.ID, receiverID),
		SenderID:   sender.ID,
		ReceiverID: receiverID,
		Text:       text,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.NewBackendError(err)
	}
	if err := s.feed.Notify(ctx, domain.ChatCollection(msg.ChatID)); err != nil {
		s.logger.Warn("chat change notice failed", zap.String("chat_id", msg.ChatID), zap.Error(err))
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.New(events.EventChatMessageSent, msg.ID, events.ActorOf(sender),
			events.ChatMessageSentPayload{ChatID: msg.ChatID, ReceiverID: receiverID}))
	}
	return msg, nil
}

// History returns the conversation between a and b, oldest first.
func (s *Service) History(ctx context.Context, a, b string) ([]domain.ChatMessage, error) {
	msgs, err := s.messages.ListByChat(ctx, domain.ChatID(a, b))
	if err != nil {
		return nil, apperrors.NewBackendError(err)
	}
	return msgs, nil
}

// Subscribe streams the full conversation between a and b on every change.
func (s *Service) Subscribe(ctx context.Context, a, b string) (<-chan []domain.ChatMessage, error) {
	chatID := domain.ChatID(a, b)
	return subscription.Subscribe(ctx, s.feed, domain.ChatCollection(chatID),
		func(ctx context.Context) ([]domain.ChatMessage, error) {
			return s.messages.ListByChat(ctx, chatID)
		},
		subscription.Options{Logger: s.logger, Metrics: s.metrics})
}

// Contacts lists the active users self may write to.
func Contacts(users []domain.User, self string) []domain.User {
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.Active && u.ID != self {
			out = append(out, u)
		}
	}
	return out
}
