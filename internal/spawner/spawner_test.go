package spawner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskcadence/internal/duedate"
	"github.com/kazz187/taskcadence/internal/eventbus"
	"github.com/kazz187/taskcadence/internal/notification"
	notificationrepo "github.com/kazz187/taskcadence/internal/notification/repositoryimpl"
	"github.com/kazz187/taskcadence/internal/project"
	projectrepo "github.com/kazz187/taskcadence/internal/project/repositoryimpl"
	"github.com/kazz187/taskcadence/internal/recurrence"
	"github.com/kazz187/taskcadence/internal/task"
	taskrepo "github.com/kazz187/taskcadence/internal/task/repositoryimpl"
	"github.com/kazz187/taskcadence/pkg/docstore"
	"github.com/kazz187/taskcadence/pkg/docstore/yamlstore"
	"github.com/kazz187/taskcadence/pkg/storage"
)

var now = time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC)

type fixture struct {
	tasks         *taskrepo.DocstoreRepository
	projects      *projectrepo.DocstoreRepository
	notifications *notificationrepo.DocstoreRepository
	bus           *eventbus.Bus
	spawner       *Spawner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	db := docstore.New(yamlstore.New(s))
	f := &fixture{
		tasks:         taskrepo.NewDocstoreRepository(db),
		projects:      projectrepo.NewDocstoreRepository(db),
		notifications: notificationrepo.NewDocstoreRepository(db),
		bus:           eventbus.New(),
	}
	clock := func() time.Time { return now }
	sink := notification.NewSink(f.notifications, f.bus, clock)
	f.spawner = New(f.tasks, f.projects, sink, f.bus, clock)
	require.NoError(t, f.projects.Create(context.Background(), &project.Project{ID: "p1", Name: "Home"}))
	return f
}

func recurringTask(endCondition recurrence.EndCondition) *task.Task {
	return &task.Task{
		ID:                "t1",
		Title:             "Pay rent",
		Description:       "Bank transfer",
		AssigneeID:        "u1",
		OwnerID:           "u0",
		Status:            task.StatusCompleted,
		CollaboratorsIDs:  []string{"u2"},
		Tags:              []string{"finance"},
		DueDate:           duedate.Of(duedate.ISOString("2025-01-31")),
		IsRecurring:       true,
		RecurrencePattern: &recurrence.Pattern{Frequency: recurrence.Monthly, Interval: 1, EndCondition: endCondition},
		CreatedBy:         "creator",
	}
}

func TestCreateNextInstance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, events := f.bus.Subscribe(8)

	completed := recurringTask(recurrence.Never)
	completed.RecurringInstanceCount = 2
	require.NoError(t, f.tasks.Create(ctx, "p1", completed))
	require.NoError(t, f.tasks.CreateSubtask(ctx, "p1", "t1", &task.Subtask{Title: "Log in", Status: task.StatusCompleted, Priority: 3}))
	require.NoError(t, f.tasks.CreateSubtask(ctx, "p1", "t1", &task.Subtask{Title: "Confirm", Status: task.StatusInProgress, Priority: 4}))

	res, err := f.spawner.CreateNextInstance(ctx, "p1", "t1", completed)
	require.NoError(t, err)
	require.NotEmpty(t, res.NewTaskID)
	assert.Empty(t, res.Reason)
	assert.Empty(t, res.Warnings)

	next, err := f.tasks.Get(ctx, "p1", res.NewTaskID)
	require.NoError(t, err)
	assert.Equal(t, "Pay rent", next.Title)
	assert.Equal(t, "Bank transfer", next.Description)
	assert.Equal(t, task.StatusToDo, next.Status)
	assert.Equal(t, task.DefaultPriority, next.Priority)
	assert.Equal(t, duedate.ISOString("2025-02-28T00:00:00Z"), next.DueDate.Value)
	assert.Equal(t, 3, next.RecurringInstanceCount)
	assert.Equal(t, "t1", next.PreviousInstanceID)
	assert.Equal(t, completed.RecurrencePattern, next.RecurrencePattern)
	assert.Equal(t, []string{"u2"}, next.CollaboratorsIDs)
	assert.Equal(t, []string{"finance"}, next.Tags)
	assert.Equal(t, "creator", next.CreatedBy)
	assert.True(t, now.Equal(next.CreatedAt))

	prev, err := f.tasks.PreviousInstance(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "t1", prev.ID)

	subs, err := f.tasks.ListSubtasks(ctx, "p1", res.NewTaskID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	for _, sub := range subs {
		assert.Equal(t, task.StatusToDo, sub.Status)
		assert.Equal(t, res.NewTaskID, sub.ParentTaskID)
	}

	ns, err := f.notifications.ListByUser(ctx, "creator")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, notification.TypeRecurringCreated, ns[0].Type)
	assert.Equal(t, "Home", ns[0].ProjectName)
	assert.Equal(t, res.NewTaskID, ns[0].TaskID)

	var types []eventbus.EventType
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.Contains(t, types, eventbus.TaskSpawned)
}

func TestCreateNextInstanceStandalone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	completed := recurringTask(recurrence.Never)
	require.NoError(t, f.tasks.Create(ctx, "", completed))

	res, err := f.spawner.CreateNextInstance(ctx, "", "t1", completed)
	require.NoError(t, err)

	next, err := f.tasks.Get(ctx, "", res.NewTaskID)
	require.NoError(t, err)
	assert.Equal(t, 1, next.RecurringInstanceCount)

	ns, err := f.notifications.ListByUser(ctx, "creator")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, project.PersonalName, ns[0].ProjectName)
	assert.Empty(t, ns[0].ProjectID)
}

func TestCreateNextInstanceRefusals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	maxed := recurringTask(recurrence.AfterCount)
	maxed.RecurrencePattern.MaxCount = 3
	maxed.RecurringInstanceCount = 3
	res, err := f.spawner.CreateNextInstance(ctx, "p1", "t1", maxed)
	require.NoError(t, err)
	assert.Equal(t, Result{Reason: recurrence.ReasonMaxInstances}, res)

	ended := recurringTask(recurrence.OnDate)
	ended.RecurrencePattern.EndDate = "2025-02-01"
	res, err = f.spawner.CreateNextInstance(ctx, "p1", "t1", ended)
	require.NoError(t, err)
	assert.Equal(t, Result{Reason: recurrence.ReasonEndDate}, res)

	plain := recurringTask(recurrence.Never)
	plain.IsRecurring = false
	res, err = f.spawner.CreateNextInstance(ctx, "p1", "t1", plain)
	require.NoError(t, err)
	assert.Equal(t, Result{Reason: ReasonNotRecurring}, res)

	tasks, err := f.tasks.List(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

type failingTasks struct {
	task.Repository
	createErr  error
	subtaskErr error
}

func (r *failingTasks) Create(ctx context.Context, projectID string, t *task.Task) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.Repository.Create(ctx, projectID, t)
}

func (r *failingTasks) CreateSubtask(ctx context.Context, projectID, taskID string, s *task.Subtask) error {
	if r.subtaskErr != nil {
		return r.subtaskErr
	}
	return r.Repository.CreateSubtask(ctx, projectID, taskID, s)
}

type failingNotifier struct{}

func (failingNotifier) Add(context.Context, notification.Payload, string) (*notification.Notification, error) {
	return nil, errors.New("sink down")
}

func TestCreateNextInstancePersistenceFailurePropagates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	boom := errors.New("disk full")
	s := New(&failingTasks{Repository: f.tasks, createErr: boom}, f.projects, failingNotifier{}, nil, func() time.Time { return now })

	_, err := s.CreateNextInstance(ctx, "p1", "t1", recurringTask(recurrence.Never))
	assert.ErrorIs(t, err, boom)
}

func TestCreateNextInstanceBestEffortStepsWarn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	completed := recurringTask(recurrence.Never)
	require.NoError(t, f.tasks.Create(ctx, "p1", completed))
	require.NoError(t, f.tasks.CreateSubtask(ctx, "p1", "t1", &task.Subtask{Title: "Step"}))

	repo := &failingTasks{Repository: f.tasks, subtaskErr: errors.New("quota")}
	s := New(repo, f.projects, failingNotifier{}, nil, func() time.Time { return now })

	res, err := s.CreateNextInstance(ctx, "p1", "t1", completed)
	require.NoError(t, err)
	require.NotEmpty(t, res.NewTaskID)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "quota")
	assert.Contains(t, res.Warnings[1], "sink down")

	_, err = f.tasks.Get(ctx, "p1", res.NewTaskID)
	assert.NoError(t, err, "successor survives failed side effects")
}
