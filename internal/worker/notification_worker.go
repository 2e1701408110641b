package worker

import (
	"github.com/spec-kit/workflow-service/internal/calendar"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartCalendarWorker registers calendar sync handlers when a sync is configured.
func StartCalendarWorker(dispatcher events.Dispatcher, sync *calendar.Sync) {
	if dispatcher == nil || sync == nil {
		return
	}
	sync.RegisterHandlers(dispatcher)
}
