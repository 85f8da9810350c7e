// Package mongostore maps the document hierarchy onto MongoDB. The last
// segment of a collection path names the Mongo collection; the rest of the
// path is kept in the _parent field so sibling sub-collections share one
// Mongo collection. _id is the parent path joined with the document id, so
// equal ids under different parents do not collide.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kazz187/taskcadence/pkg/docstore"
)

const (
	idField     = "_id"
	docIDField  = "_docId"
	parentField = "_parent"
)

type Backend struct {
	db *mongo.Database
}

var _ docstore.Backend = (*Backend)(nil)

func New(db *mongo.Database) *Backend {
	return &Backend{db: db}
}

// Connect dials uri and pings the server before returning the backend.
func Connect(ctx context.Context, uri, database string) (*Backend, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return New(client.Database(database)), client.Disconnect, nil
}

// SplitCollection splits a collection path into its Mongo collection name
// and parent document path.
func SplitCollection(collection string) (name, parent string) {
	collection = strings.Trim(collection, "/")
	i := strings.LastIndex(collection, "/")
	if i < 0 {
		return collection, ""
	}
	return collection[i+1:], collection[:i]
}

func (b *Backend) coll(collection string) (*mongo.Collection, string) {
	name, parent := SplitCollection(collection)
	return b.db.Collection(name), parent
}

// Key is the _id of document id under parent.
func Key(parent, id string) string {
	if parent == "" {
		return id
	}
	return parent + "/" + id
}

func (b *Backend) Get(ctx context.Context, collection, id string) (docstore.Data, error) {
	c, parent := b.coll(collection)
	var m bson.M
	err := c.FindOne(ctx, bson.M{idField: Key(parent, id)}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return toData(m), nil
}

func (b *Backend) Put(ctx context.Context, collection, id string, data docstore.Data) error {
	c, parent := b.coll(collection)
	doc := bson.M{}
	for k, v := range data {
		doc[k] = v
	}
	doc[idField] = Key(parent, id)
	doc[docIDField] = id
	doc[parentField] = parent
	_, err := c.ReplaceOne(ctx, bson.M{idField: Key(parent, id)}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, collection, id string) error {
	c, parent := b.coll(collection)
	res, err := c.DeleteOne(ctx, bson.M{idField: Key(parent, id)})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

func (b *Backend) Query(ctx context.Context, collection string, q docstore.Query) iter.Seq2[docstore.Record, error] {
	return func(yield func(docstore.Record, error) bool) {
		c, parent := b.coll(collection)
		opts := options.Find()
		if q.Limit > 0 {
			opts.SetLimit(int64(q.Limit))
		}
		cur, err := c.Find(ctx, Filter(parent, q), opts)
		if err != nil {
			yield(docstore.Record{}, fmt.Errorf("failed to query %s: %w", collection, err))
			return
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var m bson.M
			if err := cur.Decode(&m); err != nil {
				if !yield(docstore.Record{}, fmt.Errorf("failed to decode %s document: %w", collection, err)) {
					return
				}
				continue
			}
			if !yield(docstore.Record{ID: docID(m), Data: toData(m)}, nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(docstore.Record{}, fmt.Errorf("cursor error on %s: %w", collection, err))
		}
	}
}

// Filter builds the Mongo filter for a query under parent.
func Filter(parent string, q docstore.Query) bson.D {
	filter := bson.D{{Key: parentField, Value: parent}}
	for _, f := range q.Filters {
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}
	return filter
}

func docID(m bson.M) string {
	if id, ok := m[docIDField].(string); ok {
		return id
	}
	id, _ := m[idField].(string)
	return id
}

func toData(m bson.M) docstore.Data {
	data := make(docstore.Data, len(m))
	for k, v := range m {
		if k == idField || k == docIDField || k == parentField {
			continue
		}
		data[k] = normalize(v)
	}
	return data
}

// normalize turns driver specific container types into plain maps and
// slices so documents look the same regardless of backend.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalize(vv)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalize(vv)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalize(vv)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}
