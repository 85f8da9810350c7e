package docstore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskcadence/pkg/docstore"
	"github.com/kazz187/taskcadence/pkg/docstore/yamlstore"
	"github.com/kazz187/taskcadence/pkg/storage"
)

type item struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind,omitempty"`
	Count     int       `json:"count"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func newClient(t *testing.T) *docstore.Client {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return docstore.New(yamlstore.New(s))
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ref := c.Collection("items").Doc("a")
	require.NoError(t, ref.Set(ctx, item{Name: "a", Count: 3, Tags: []string{"x"}, CreatedAt: created}))

	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	require.True(t, snap.Exists())

	var got item
	require.NoError(t, snap.DataTo(&got))
	assert.Equal(t, "a", got.Name)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, []string{"x"}, got.Tags)
	assert.True(t, created.Equal(got.CreatedAt))

	_, hasKind := snap.Data()["kind"]
	assert.False(t, hasKind, "omitempty fields are not stored")
}

func TestGetMissing(t *testing.T) {
	c := newClient(t)
	snap, err := c.Collection("items").Doc("nope").Get(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Exists())
	assert.Nil(t, snap.Data())
	assert.True(t, errors.Is(snap.DataTo(&item{}), docstore.ErrNotFound))
}

func TestAddGeneratesID(t *testing.T) {
	ctx := context.Background()
	n := 0
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	c := docstore.New(yamlstore.New(s), docstore.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))

	ref, err := c.Collection("items").Add(ctx, item{Name: "first"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", ref.ID())
	assert.Equal(t, "items/id-1", ref.Path())
}

func TestUpdateMerges(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	ref := c.Collection("items").Doc("a")
	require.NoError(t, ref.Set(ctx, item{Name: "a", Count: 1}))

	require.NoError(t, ref.Update(ctx, map[string]any{"count": 7}))

	var got item
	snap, err := ref.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, snap.DataTo(&got))
	assert.Equal(t, "a", got.Name)
	assert.Equal(t, 7, got.Count)

	err = c.Collection("items").Doc("missing").Update(ctx, map[string]any{"count": 1})
	assert.True(t, errors.Is(err, docstore.ErrNotFound))
}

func TestSubCollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	project := c.Collection("projects").Doc("p1")
	require.NoError(t, project.Set(ctx, map[string]any{"name": "P1"}))
	task := project.Collection("tasks").Doc("t1")
	require.NoError(t, task.Set(ctx, item{Name: "t1"}))
	require.NoError(t, task.Collection("subtasks").Doc("s1").Set(ctx, item{Name: "s1"}))

	projects, err := c.Collection("projects").GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "p1", projects[0].ID())

	tasks, err := project.Collection("tasks").GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	subs, err := c.Collection("projects/p1/tasks/t1/subtasks").GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "projects/p1/tasks/t1/subtasks/s1", subs[0].Ref().Path())
}

func TestWhereAndLimit(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	coll := c.Collection("items")
	for i, kind := range []string{"a", "b", "a", "a"} {
		require.NoError(t, coll.Doc(fmt.Sprintf("i%d", i)).Set(ctx, item{Name: fmt.Sprint(i), Kind: kind, Count: i % 2}))
	}

	all, err := coll.Where("kind", docstore.OpEqual, "a").GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	narrowed, err := coll.Where("kind", "==", "a").Where("count", "==", 0).GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, narrowed, 2)

	limited, err := coll.Where("kind", "==", "a").Limit(1).GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := coll.Where("kind", "==", "z").GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWhereRejectsOtherOperators(t *testing.T) {
	c := newClient(t)
	_, err := c.Collection("items").Where("count", ">", 1).GetAll(context.Background())
	assert.True(t, errors.Is(err, docstore.ErrUnsupportedOperator))
}

func TestDocPath(t *testing.T) {
	c := newClient(t)
	ref, err := c.Doc("projects/p1/tasks/t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", ref.ID())
	assert.Equal(t, "projects/p1/tasks", ref.Parent().Path())

	_, err = c.Doc("projects")
	assert.Error(t, err)
}

func TestQueryMatchNested(t *testing.T) {
	q := docstore.Query{Filters: []docstore.Filter{{Field: "pattern.frequency", Op: "==", Value: "daily"}, {Field: "n", Op: "==", Value: int64(2)}}}
	assert.True(t, q.Match(docstore.Data{"pattern": map[string]any{"frequency": "daily"}, "n": 2.0}))
	assert.False(t, q.Match(docstore.Data{"pattern": map[string]any{"frequency": "weekly"}, "n": 2}))
	assert.False(t, q.Match(docstore.Data{"n": 2}))
}
