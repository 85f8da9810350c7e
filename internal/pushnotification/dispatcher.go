package pushnotification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kazz187/taskcadence/internal/eventbus"
)

type UserSender interface {
	SendToUser(ctx context.Context, userID string, payload *NotificationPayload) int
}

// Dispatcher turns stored notifications into web pushes.
type Dispatcher struct {
	eventBus *eventbus.Bus
	sender   UserSender
}

func NewDispatcher(eventBus *eventbus.Bus, sender UserSender) *Dispatcher {
	return &Dispatcher{
		eventBus: eventBus,
		sender:   sender,
	}
}

// Start blocks until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.eventBus.Subscribe(256)
	defer d.eventBus.Unsubscribe(subID)

	slog.InfoContext(ctx, "push notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("push notification dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Type == eventbus.NotificationCreated {
				d.handleNotificationCreated(ctx, event)
			}
		}
	}
}

func (d *Dispatcher) handleNotificationCreated(ctx context.Context, event eventbus.Event) {
	userID := event.Metadata["userId"]
	if userID == "" {
		return
	}
	title := event.Metadata["title"]
	if title == "" {
		title = "Taskcadence"
	}
	var url string
	if taskID := event.Metadata["taskId"]; taskID != "" {
		if projectID := event.Metadata["projectId"]; projectID != "" {
			url = fmt.Sprintf("/projects/%s/tasks/%s", projectID, taskID)
		} else {
			url = fmt.Sprintf("/tasks/%s", taskID)
		}
	}
	d.sender.SendToUser(ctx, userID, &NotificationPayload{
		Title: title,
		Body:  event.Payload,
		URL:   url,
		Tag:   event.ResourceID,
	})
}
