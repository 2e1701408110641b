package calendar

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
)

// Sync keeps one calendar event per task, keyed by the task's calendar id.
type Sync struct {
	client     Client
	calendarID string
	logger     *zap.Logger
}

// NewSync builds the sync handler set.
func NewSync(client Client, calendarID string, logger *zap.Logger) *Sync {
	return &Sync{client: client, calendarID: calendarID, logger: logger}
}

// RegisterHandlers subscribes to task lifecycle events.
func (s *Sync) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTaskCreated, s.upsert)
	dispatcher.Subscribe(events.EventTaskUpdated, s.upsert)
	dispatcher.Subscribe(events.EventTaskDeleted, s.remove)
}

func (s *Sync) upsert(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TaskPayload)
	if !ok {
		return fmt.Errorf("calendar: unexpected payload %T", event.Payload)
	}
	task := domain.Task{ID: event.SubjectID}
	err := s.client.Upsert(ctx, s.calendarID, Event{
		ID:          task.CalendarEventID(),
		Summary:     payload.Title,
		Description: "Department: " + payload.Department,
		Date:        domain.DateOf(payload.Deadline),
	})
	if err != nil {
		s.logger.Warn("calendar upsert failed", zap.String("task_id", event.SubjectID), zap.Error(err))
	}
	return nil
}

func (s *Sync) remove(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TaskDeletedPayload)
	eventID := payload.CalendarEventID
	if eventID == "" {
		eventID = domain.Task{ID: event.SubjectID}.CalendarEventID()
	}
	if err := s.client.Delete(ctx, s.calendarID, eventID); err != nil {
		s.logger.Warn("calendar delete failed", zap.String("task_id", event.SubjectID), zap.Error(err))
	}
	return nil
}
