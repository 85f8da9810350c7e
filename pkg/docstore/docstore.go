// Package docstore is a small hierarchical document API: collections hold
// documents, documents hold sub-collections. Backends only persist flat
// (collection path, id) -> Data records; the path hierarchy is encoded in
// the collection path ("projects/p1/tasks").
package docstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/kazz187/taskcadence/pkg/storage"
)

// ErrNotFound is returned by backends when a document does not exist.
var ErrNotFound = storage.ErrNotFound

// ErrUnsupportedOperator is yielded by Stream when a query uses anything
// other than equality.
var ErrUnsupportedOperator = errors.New("unsupported query operator")

// OpEqual is the only supported filter operator.
const OpEqual = "=="

// Data is the field map of a single document.
type Data map[string]any

// Filter is one equality constraint. Field may be a dotted path into
// embedded objects.
type Filter struct {
	Field string
	Op    string
	Value any
}

// Query is a conjunction of filters with an optional limit (0 = none).
type Query struct {
	Filters []Filter
	Limit   int
}

// Record is a raw document yielded by a backend query.
type Record struct {
	ID   string
	Data Data
}

// Backend persists documents.
type Backend interface {
	Get(ctx context.Context, collection, id string) (Data, error)
	Put(ctx context.Context, collection, id string, data Data) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) iter.Seq2[Record, error]
}

// Client is the entry point for building document references.
type Client struct {
	backend Backend
	newID   func() string
}

type Option func(*Client)

// WithIDGenerator overrides the id generator used by CollectionRef.Add.
func WithIDGenerator(fn func() string) Option {
	return func(c *Client) {
		c.newID = fn
	}
}

func New(b Backend, opts ...Option) *Client {
	c := &Client{
		backend: b,
		newID:   NewID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collection returns a reference to a top-level collection, or to a nested
// one when name is a full slash separated path.
func (c *Client) Collection(name string) *CollectionRef {
	return &CollectionRef{client: c, path: strings.Trim(name, "/")}
}

// Doc returns a reference to the document at a full slash separated path
// such as "projects/p1/tasks/t1".
func (c *Client) Doc(path string) (*DocumentRef, error) {
	path = strings.Trim(path, "/")
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return nil, fmt.Errorf("invalid document path %q", path)
	}
	return c.Collection(path[:i]).Doc(path[i+1:]), nil
}

type CollectionRef struct {
	client *Client
	path   string
	query  Query
	err    error
}

func (r *CollectionRef) Path() string {
	return r.path
}

func (r *CollectionRef) Doc(id string) *DocumentRef {
	return &DocumentRef{client: r.client, collection: r.path, id: id}
}

// Add stores v under a newly generated id.
func (r *CollectionRef) Add(ctx context.Context, v any) (*DocumentRef, error) {
	ref := r.Doc(r.client.newID())
	if err := ref.Set(ctx, v); err != nil {
		return nil, err
	}
	return ref, nil
}

// Where returns a copy of the reference narrowed by one more filter.
func (r *CollectionRef) Where(field, op string, value any) *CollectionRef {
	nr := r.clone()
	if op != OpEqual && nr.err == nil {
		nr.err = fmt.Errorf("%w: %q on field %s", ErrUnsupportedOperator, op, field)
	}
	nr.query.Filters = append(nr.query.Filters, Filter{Field: field, Op: op, Value: value})
	return nr
}

// Limit returns a copy of the reference yielding at most n documents.
func (r *CollectionRef) Limit(n int) *CollectionRef {
	nr := r.clone()
	nr.query.Limit = n
	return nr
}

// Stream iterates over the matching documents. Iteration order is backend
// defined.
func (r *CollectionRef) Stream(ctx context.Context) iter.Seq2[*DocumentSnapshot, error] {
	return func(yield func(*DocumentSnapshot, error) bool) {
		if r.err != nil {
			yield(nil, r.err)
			return
		}
		for rec, err := range r.client.backend.Query(ctx, r.path, r.query) {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			snap := &DocumentSnapshot{ref: r.Doc(rec.ID), data: rec.Data, exists: true}
			if !yield(snap, nil) {
				return
			}
		}
	}
}

// GetAll drains Stream, stopping at the first error.
func (r *CollectionRef) GetAll(ctx context.Context) ([]*DocumentSnapshot, error) {
	var snaps []*DocumentSnapshot
	for snap, err := range r.Stream(ctx) {
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (r *CollectionRef) clone() *CollectionRef {
	nr := *r
	nr.query.Filters = append([]Filter(nil), r.query.Filters...)
	return &nr
}

type DocumentRef struct {
	client     *Client
	collection string
	id         string
}

func (d *DocumentRef) ID() string {
	return d.id
}

func (d *DocumentRef) Path() string {
	return d.collection + "/" + d.id
}

// Parent returns the collection holding this document.
func (d *DocumentRef) Parent() *CollectionRef {
	return d.client.Collection(d.collection)
}

// Collection returns a sub-collection beneath this document.
func (d *DocumentRef) Collection(name string) *CollectionRef {
	return d.client.Collection(d.Path() + "/" + strings.Trim(name, "/"))
}

// Get reads the document. A missing document is not an error; check
// Exists on the snapshot.
func (d *DocumentRef) Get(ctx context.Context) (*DocumentSnapshot, error) {
	data, err := d.client.backend.Get(ctx, d.collection, d.id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &DocumentSnapshot{ref: d}, nil
		}
		return nil, err
	}
	return &DocumentSnapshot{ref: d, data: data, exists: true}, nil
}

// Set replaces the document with v, which may be a struct or a map.
func (d *DocumentRef) Set(ctx context.Context, v any) error {
	data, err := ToData(v)
	if err != nil {
		return err
	}
	return d.client.backend.Put(ctx, d.collection, d.id, data)
}

// Update merges fields into an existing document.
func (d *DocumentRef) Update(ctx context.Context, fields map[string]any) error {
	current, err := d.client.backend.Get(ctx, d.collection, d.id)
	if err != nil {
		return err
	}
	patch, err := ToData(fields)
	if err != nil {
		return err
	}
	for k, v := range patch {
		current[k] = v
	}
	return d.client.backend.Put(ctx, d.collection, d.id, current)
}

func (d *DocumentRef) Delete(ctx context.Context) error {
	return d.client.backend.Delete(ctx, d.collection, d.id)
}

type DocumentSnapshot struct {
	ref    *DocumentRef
	data   Data
	exists bool
}

func (s *DocumentSnapshot) Ref() *DocumentRef {
	return s.ref
}

func (s *DocumentSnapshot) ID() string {
	return s.ref.id
}

func (s *DocumentSnapshot) Exists() bool {
	return s.exists
}

// Data returns the raw fields, nil for a missing document.
func (s *DocumentSnapshot) Data() Data {
	return s.data
}

// DataTo decodes the document into v using its json field tags.
func (s *DocumentSnapshot) DataTo(v any) error {
	if !s.exists {
		return fmt.Errorf("%s: %w", s.ref.Path(), ErrNotFound)
	}
	return FromData(s.data, v)
}
