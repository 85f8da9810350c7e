package repositoryimpl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kazz187/taskcadence/internal/notification"
	"github.com/kazz187/taskcadence/pkg/cerr"
	"github.com/kazz187/taskcadence/pkg/docstore"
)

const collection = "notifications"

type DocstoreRepository struct {
	db *docstore.Client
}

func NewDocstoreRepository(db *docstore.Client) *DocstoreRepository {
	return &DocstoreRepository{db: db}
}

func (r *DocstoreRepository) Create(ctx context.Context, fields map[string]any) (*notification.Notification, error) {
	data, err := docstore.ToData(fields)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", err)
	}
	ref, err := r.db.Collection(collection).Add(ctx, data)
	if err != nil {
		return nil, cerr.WrapStorageWriteError("notification", err)
	}
	var n notification.Notification
	if err := docstore.FromData(data, &n); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to decode notification: %w", err))
	}
	n.ID = ref.ID()
	return &n, nil
}

func (r *DocstoreRepository) Exists(ctx context.Context, taskID, userID, typ string) (bool, error) {
	q := r.db.Collection(collection).
		Where("taskId", docstore.OpEqual, taskID).
		Where("userId", docstore.OpEqual, userID).
		Where("type", docstore.OpEqual, typ).
		Limit(1)
	for _, err := range q.Stream(ctx) {
		if err != nil {
			return false, cerr.WrapStorageReadError("notifications", err)
		}
		return true, nil
	}
	return false, nil
}

func (r *DocstoreRepository) ListByUser(ctx context.Context, userID string) ([]*notification.Notification, error) {
	var out []*notification.Notification
	for snap, err := range r.db.Collection(collection).Where("userId", docstore.OpEqual, userID).Stream(ctx) {
		if err != nil {
			return nil, cerr.WrapStorageReadError("notifications", err)
		}
		var n notification.Notification
		if err := snap.DataTo(&n); err != nil {
			slog.WarnContext(ctx, "skipping undecodable notification", "notification_id", snap.ID(), "error", err)
			continue
		}
		n.ID = snap.ID()
		out = append(out, &n)
	}
	return out, nil
}
