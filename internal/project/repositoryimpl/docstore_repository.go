package repositoryimpl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kazz187/taskcadence/internal/project"
	"github.com/kazz187/taskcadence/pkg/cerr"
	"github.com/kazz187/taskcadence/pkg/docstore"
)

const collection = "projects"

type DocstoreRepository struct {
	db *docstore.Client
}

func NewDocstoreRepository(db *docstore.Client) *DocstoreRepository {
	return &DocstoreRepository{db: db}
}

func (r *DocstoreRepository) Create(ctx context.Context, p *project.Project) error {
	col := r.db.Collection(collection)
	if p.ID == "" {
		ref, err := col.Add(ctx, p)
		if err != nil {
			return cerr.WrapStorageWriteError("project", err)
		}
		p.ID = ref.ID()
		return nil
	}
	if err := col.Doc(p.ID).Set(ctx, p); err != nil {
		return cerr.WrapStorageWriteError("project", err)
	}
	return nil
}

func (r *DocstoreRepository) Get(ctx context.Context, id string) (*project.Project, error) {
	snap, err := r.db.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, cerr.WrapStorageReadError("project", err)
	}
	if !snap.Exists() {
		return nil, cerr.NewError(cerr.NotFound, "project not found", nil)
	}
	return decode(snap)
}

func (r *DocstoreRepository) List(ctx context.Context) ([]*project.Project, error) {
	var projects []*project.Project
	for snap, err := range r.db.Collection(collection).Stream(ctx) {
		if err != nil {
			return nil, cerr.WrapStorageReadError("projects", err)
		}
		p, err := decode(snap)
		if err != nil {
			slog.WarnContext(ctx, "skipping undecodable project", "project_id", snap.ID(), "error", err)
			continue
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func (r *DocstoreRepository) Name(ctx context.Context, id string) string {
	if id == "" {
		return project.PersonalName
	}
	p, err := r.Get(ctx, id)
	if err != nil {
		if !cerr.IsCode(err, cerr.NotFound) {
			slog.WarnContext(ctx, "failed to resolve project name", "project_id", id, "error", err)
		}
		return project.UnknownName
	}
	if p.Name == "" {
		return project.UnknownName
	}
	return p.Name
}

func decode(snap *docstore.DocumentSnapshot) (*project.Project, error) {
	var p project.Project
	if err := snap.DataTo(&p); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to decode project: %w", err))
	}
	p.ID = snap.ID()
	return &p, nil
}
