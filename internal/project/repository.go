package project

import "context"

type Repository interface {
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	// Name resolves the display name for notifications. It never fails:
	// an empty id yields PersonalName and a missing project UnknownName.
	Name(ctx context.Context, id string) string
}
