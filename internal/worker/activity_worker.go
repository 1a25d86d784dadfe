package worker

import (
	"github.com/spec-kit/ticket-router/internal/service"
)

// StartActivityWorker registers the activity recorder on the event bus.
func StartActivityWorker(activity *service.ActivityService) {
	if activity == nil {
		return
	}
	activity.RegisterHandlers()
}
