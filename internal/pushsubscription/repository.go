package pushsubscription

import "context"

type Repository interface {
	// Save creates the subscription or, when the endpoint is already known,
	// replaces it.
	Save(ctx context.Context, s *Subscription) error
	ListByUser(ctx context.Context, userID string) ([]*Subscription, error)
	FindByEndpoint(ctx context.Context, endpoint string) (*Subscription, error)
	Delete(ctx context.Context, id string) error
}
