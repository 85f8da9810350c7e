package repositoryimpl

import (
	"context"
	"fmt"

	"github.com/kazz187/taskcadence/internal/pushsubscription"
	"github.com/kazz187/taskcadence/pkg/cerr"
	"github.com/kazz187/taskcadence/pkg/docstore"
)

const collection = "push_subscriptions"

type DocstoreRepository struct {
	db *docstore.Client
}

func NewDocstoreRepository(db *docstore.Client) *DocstoreRepository {
	return &DocstoreRepository{db: db}
}

func (r *DocstoreRepository) Save(ctx context.Context, s *pushsubscription.Subscription) error {
	existing, err := r.FindByEndpoint(ctx, s.Endpoint)
	if err != nil && !cerr.IsCode(err, cerr.NotFound) {
		return err
	}
	if existing != nil {
		s.ID = existing.ID
	}
	col := r.db.Collection(collection)
	if s.ID == "" {
		ref, err := col.Add(ctx, s)
		if err != nil {
			return cerr.WrapStorageWriteError("push_subscription", err)
		}
		s.ID = ref.ID()
		return nil
	}
	if err := col.Doc(s.ID).Set(ctx, s); err != nil {
		return cerr.WrapStorageWriteError("push_subscription", err)
	}
	return nil
}

func (r *DocstoreRepository) ListByUser(ctx context.Context, userID string) ([]*pushsubscription.Subscription, error) {
	return r.query(ctx, r.db.Collection(collection).Where("userId", docstore.OpEqual, userID))
}

func (r *DocstoreRepository) FindByEndpoint(ctx context.Context, endpoint string) (*pushsubscription.Subscription, error) {
	subs, err := r.query(ctx, r.db.Collection(collection).Where("endpoint", docstore.OpEqual, endpoint).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, cerr.NewError(cerr.NotFound, "push subscription not found", nil)
	}
	return subs[0], nil
}

func (r *DocstoreRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return cerr.WrapStorageDeleteError("push_subscription", err)
	}
	return nil
}

func (r *DocstoreRepository) query(ctx context.Context, q *docstore.CollectionRef) ([]*pushsubscription.Subscription, error) {
	var subs []*pushsubscription.Subscription
	for snap, err := range q.Stream(ctx) {
		if err != nil {
			return nil, cerr.WrapStorageReadError("push_subscriptions", err)
		}
		var s pushsubscription.Subscription
		if err := snap.DataTo(&s); err != nil {
			return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to decode push subscription: %w", err))
		}
		s.ID = snap.ID()
		subs = append(subs, &s)
	}
	return subs, nil
}
