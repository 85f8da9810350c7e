// Package yamlstore keeps each document as a YAML file on a storage.Storage.
// A document "projects/p1" lives at projects/p1.yaml and its sub-collection
// "tasks" under projects/p1/tasks/.
package yamlstore

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/taskcadence/pkg/docstore"
	"github.com/kazz187/taskcadence/pkg/storage"
)

const ext = ".yaml"

type Backend struct {
	storage storage.Storage
}

var _ docstore.Backend = (*Backend)(nil)

func New(s storage.Storage) *Backend {
	return &Backend{storage: s}
}

// DocumentPath returns the storage path of a document.
func DocumentPath(collection, id string) string {
	return collection + "/" + id + ext
}

// SplitDocumentPath is the inverse of DocumentPath.
func SplitDocumentPath(p string) (collection, id string, ok bool) {
	if !strings.HasSuffix(p, ext) {
		return "", "", false
	}
	collection, file := path.Split(strings.TrimSuffix(p, ext))
	collection = strings.TrimSuffix(collection, "/")
	if collection == "" || file == "" {
		return "", "", false
	}
	return collection, file, true
}

func (b *Backend) Get(ctx context.Context, collection, id string) (docstore.Data, error) {
	raw, err := b.storage.Read(ctx, DocumentPath(collection, id))
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func (b *Backend) Put(ctx context.Context, collection, id string, data docstore.Data) error {
	raw, err := yaml.Marshal(map[string]any(data))
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", collection, id, err)
	}
	return b.storage.Write(ctx, DocumentPath(collection, id), raw)
}

func (b *Backend) Delete(ctx context.Context, collection, id string) error {
	return b.storage.Delete(ctx, DocumentPath(collection, id))
}

func (b *Backend) Query(ctx context.Context, collection string, q docstore.Query) iter.Seq2[docstore.Record, error] {
	return func(yield func(docstore.Record, error) bool) {
		paths, err := b.storage.List(ctx, collection)
		if err != nil {
			yield(docstore.Record{}, fmt.Errorf("failed to list %s: %w", collection, err))
			return
		}
		matched := 0
		for _, p := range paths {
			if err := ctx.Err(); err != nil {
				yield(docstore.Record{}, err)
				return
			}
			_, id, ok := SplitDocumentPath(p)
			if !ok {
				continue
			}
			raw, err := b.storage.Read(ctx, p)
			if err != nil {
				// Deleted between List and Read.
				continue
			}
			data, err := decode(raw)
			if err != nil {
				slog.WarnContext(ctx, "yamlstore: skipping undecodable document", "path", p, "error", err)
				continue
			}
			if !q.Match(data) {
				continue
			}
			if !yield(docstore.Record{ID: id, Data: data}, nil) {
				return
			}
			matched++
			if q.Limit > 0 && matched >= q.Limit {
				return
			}
		}
	}
}

func decode(raw []byte) (docstore.Data, error) {
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return docstore.Data(m), nil
}
