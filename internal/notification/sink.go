package notification

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/kazz187/taskcadence/internal/eventbus"
)

// Sink persists notifications and announces them on the event bus.
type Sink struct {
	repo     Repository
	eventBus *eventbus.Bus
	now      func() time.Time
}

func NewSink(repo Repository, eventBus *eventbus.Bus, now func() time.Time) *Sink {
	if now == nil {
		now = time.Now
	}
	return &Sink{repo: repo, eventBus: eventBus, now: now}
}

// Add stores one notification built from payload. Nil values are dropped,
// tags default to an empty list, type to "" and icon to "bell". isRead and
// createdAt are always set here.
func (s *Sink) Add(ctx context.Context, payload Payload, projectName string) (*Notification, error) {
	fields := make(map[string]any, len(payload)+4)
	for k, v := range payload {
		if !isNil(v) {
			fields[k] = v
		}
	}
	if _, ok := fields["tags"]; !ok {
		fields["tags"] = []string{}
	}
	if _, ok := fields["type"]; !ok {
		fields["type"] = ""
	}
	if _, ok := fields["icon"]; !ok {
		fields["icon"] = DefaultIcon
	}
	fields["projectName"] = projectName
	fields["isRead"] = false
	fields["createdAt"] = s.now().UTC()

	n, err := s.repo.Create(ctx, fields)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "notification created", "notification_id", n.ID, "user_id", n.UserID, "type", n.Type)

	if s.eventBus != nil {
		s.eventBus.PublishNew(eventbus.NotificationCreated, n.ID, n.Message, map[string]string{
			"userId":    n.UserID,
			"taskId":    n.TaskID,
			"projectId": n.ProjectID,
			"type":      n.Type,
			"title":     n.Title,
		})
	}
	return n, nil
}

// isNil also catches typed nils such as a nil *string stored in an any.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
