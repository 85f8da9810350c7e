package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/kazz187/taskcadence/internal/config"
	"github.com/kazz187/taskcadence/internal/deadline"
	"github.com/kazz187/taskcadence/internal/duedate"
	"github.com/kazz187/taskcadence/internal/eventbus"
	"github.com/kazz187/taskcadence/internal/notification"
	notificationrepo "github.com/kazz187/taskcadence/internal/notification/repositoryimpl"
	projectrepo "github.com/kazz187/taskcadence/internal/project/repositoryimpl"
	"github.com/kazz187/taskcadence/internal/recurrence"
	"github.com/kazz187/taskcadence/internal/spawner"
	"github.com/kazz187/taskcadence/internal/store"
	"github.com/kazz187/taskcadence/internal/task"
	taskrepo "github.com/kazz187/taskcadence/internal/task/repositoryimpl"
	"github.com/kazz187/taskcadence/pkg/clog"
)

var (
	app     = kingpin.New("taskcadence", "Recurring task and deadline automation")
	verbose = app.Flag("verbose", "Enable debug logging").Short('v').Bool()

	scanCmd = app.Command("scan", "Run the deadline scan once against the configured store")

	validateCmd     = app.Command("validate-pattern", "Validate a recurrence pattern")
	validatePattern = validateCmd.Arg("pattern", "Pattern as JSON").Required().String()

	nextCmd     = app.Command("next-date", "Compute the due date that follows a due date")
	nextDue     = nextCmd.Arg("due", "Current due date (ISO 8601)").Required().String()
	nextPattern = nextCmd.Arg("pattern", "Pattern as JSON").Required().String()

	completeCmd     = app.Command("complete", "Mark a task completed and create its next instance")
	completeTask    = completeCmd.Arg("id", "Task ID").Required().String()
	completeProject = completeCmd.Flag("project", "Project ID; empty for a standalone task").String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(clog.NewTextHandler(os.Stderr, clog.WithLevel(level)))))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case scanCmd.FullCommand():
		err = handleScan(ctx)
	case validateCmd.FullCommand():
		err = handleValidate(*validatePattern)
	case nextCmd.FullCommand():
		err = handleNextDate(*nextDue, *nextPattern)
	case completeCmd.FullCommand():
		err = handleComplete(ctx, *completeProject, *completeTask)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type services struct {
	st      *store.Store
	tasks   *taskrepo.DocstoreRepository
	scanner *deadline.Scanner
	spawner *spawner.Spawner
}

func openServices(ctx context.Context) (*services, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	env, err := config.LoadStorageEnv()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, env)
	if err != nil {
		return nil, err
	}
	bus := eventbus.New()
	projects := projectrepo.NewDocstoreRepository(st.DB)
	tasks := taskrepo.NewDocstoreRepository(st.DB)
	notifications := notificationrepo.NewDocstoreRepository(st.DB)
	sink := notification.NewSink(notifications, bus, nil)
	return &services{
		st:      st,
		tasks:   tasks,
		scanner: deadline.NewScanner(projects, tasks, notifications, sink, bus, nil),
		spawner: spawner.New(tasks, projects, sink, bus, nil),
	}, nil
}

func (s *services) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.st.Close(ctx); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}

func handleScan(ctx context.Context) error {
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	sum, err := svc.scanner.ScanAll(ctx)
	if err != nil {
		return err
	}
	return printJSON(sum)
}

func parsePatternArg(raw string) (recurrence.Pattern, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return recurrence.Pattern{}, fmt.Errorf("pattern is not valid JSON: %w", err)
	}
	return recurrence.ParsePattern(v)
}

func handleValidate(raw string) error {
	p, err := parsePatternArg(raw)
	if err != nil {
		return err
	}
	fmt.Println("Pattern is valid")
	return printJSON(p)
}

func handleNextDate(due, raw string) error {
	p, err := parsePatternArg(raw)
	if err != nil {
		return err
	}
	next, err := recurrence.NextDueDate(duedate.ISOString(due), p, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(duedate.Format(next))
	return nil
}

func handleComplete(ctx context.Context, projectID, taskID string) error {
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	t, err := svc.tasks.Get(ctx, projectID, taskID)
	if err != nil {
		return err
	}
	if t.Status.IsCompleted() {
		return fmt.Errorf("task %s is already completed", taskID)
	}
	prevStatus, prevUpdatedAt := t.Status, t.UpdatedAt
	t.Status = task.StatusCompleted
	t.UpdatedAt = time.Now()
	if err := svc.tasks.Update(ctx, t); err != nil {
		return err
	}

	res, err := svc.spawner.CreateNextInstance(ctx, projectID, taskID, t)
	if err != nil {
		t.Status, t.UpdatedAt = prevStatus, prevUpdatedAt
		if rerr := svc.tasks.Update(ctx, t); rerr != nil {
			slog.Error("failed to reopen task after spawn failure", "task_id", taskID, "error", rerr)
		}
		return err
	}
	if res.NewTaskID == "" {
		fmt.Printf("Task %s completed; no next instance: %s\n", taskID, res.Reason)
	} else {
		fmt.Printf("Task %s completed; next instance %s\n", taskID, res.NewTaskID)
		if next, err := svc.tasks.Get(ctx, projectID, res.NewTaskID); err == nil {
			n, err := svc.scanner.CheckTask(ctx, projectID, next.ID, next, "")
			if err != nil {
				slog.Warn("deadline check of next instance failed", "task_id", next.ID, "error", err)
			} else if n > 0 {
				fmt.Printf("Created %d deadline notification(s)\n", n)
			}
		}
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
