// Package calendar mirrors task deadlines into an external calendar.
package calendar

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event is an all-day calendar entry.
type Event struct {
	ID          string
	Summary     string
	Description string
	Date        time.Time
}

// Client is the external calendar collaborator.
type Client interface {
	Upsert(ctx context.Context, calendarID string, event Event) error
	Delete(ctx context.Context, calendarID, eventID string) error
}

// LogClient records calendar calls without contacting a provider.
type LogClient struct {
	logger *zap.Logger
}

// NewLogClient builds a logging client.
func NewLogClient(logger *zap.Logger) *LogClient {
	return &LogClient{logger: logger}
}

func (c *LogClient) Upsert(_ context.Context, calendarID string, event Event) error {
	c.logger.Info("calendar upsert",
		zap.String("calendar_id", calendarID),
		zap.String("event_id", event.ID),
		zap.String("summary", event.Summary),
		zap.String("date", event.Date.Format("2006-01-02")))
	return nil
}

func (c *LogClient) Delete(_ context.Context, calendarID, eventID string) error {
	c.logger.Info("calendar delete", zap.String("calendar_id", calendarID), zap.String("event_id", eventID))
	return nil
}
