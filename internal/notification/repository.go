package notification

import "context"

type Repository interface {
	Create(ctx context.Context, fields map[string]any) (*Notification, error)
	// Exists reports whether userID was already sent a notification of
	// type typ for taskID.
	Exists(ctx context.Context, taskID, userID, typ string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*Notification, error)
}
