package store

import (
	"context"
	"fmt"

	"github.com/kazz187/taskcadence/internal/config"
	"github.com/kazz187/taskcadence/pkg/docstore"
	"github.com/kazz187/taskcadence/pkg/docstore/mongostore"
	"github.com/kazz187/taskcadence/pkg/docstore/yamlstore"
	"github.com/kazz187/taskcadence/pkg/storage"
)

// Store is an opened document store. Local is set only for the local file
// backend, which is the one that can be watched.
type Store struct {
	DB    *docstore.Client
	Local *storage.LocalStorage
	close func(context.Context) error
}

func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

func Open(ctx context.Context, env *config.StorageEnv) (*Store, error) {
	switch env.Type {
	case config.StorageMongo:
		backend, disconnect, err := mongostore.Connect(ctx, env.MongoURI, env.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		return &Store{DB: docstore.New(backend), close: disconnect}, nil
	case config.StorageS3:
		s3, err := storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return &Store{DB: docstore.New(yamlstore.New(s3))}, nil
	case config.StorageLocal, "":
		local, err := storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		return &Store{DB: docstore.New(yamlstore.New(local)), Local: local}, nil
	}
	return nil, fmt.Errorf("unsupported storage type %q", env.Type)
}
