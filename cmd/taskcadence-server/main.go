package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	server "github.com/kazz187/taskcadence/internal"
	"github.com/kazz187/taskcadence/internal/config"
	"github.com/kazz187/taskcadence/internal/deadline"
	"github.com/kazz187/taskcadence/internal/eventbus"
	"github.com/kazz187/taskcadence/internal/notification"
	notificationrepo "github.com/kazz187/taskcadence/internal/notification/repositoryimpl"
	projectrepo "github.com/kazz187/taskcadence/internal/project/repositoryimpl"
	"github.com/kazz187/taskcadence/internal/pushnotification"
	pushsubrepo "github.com/kazz187/taskcadence/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/taskcadence/internal/recurrence"
	"github.com/kazz187/taskcadence/internal/spawner"
	"github.com/kazz187/taskcadence/internal/store"
	"github.com/kazz187/taskcadence/internal/task"
	taskrepo "github.com/kazz187/taskcadence/internal/task/repositoryimpl"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	logger, logCloser := newLogger(env)
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Setup document store
	st, err := store.Open(ctx, &env.StorageEnv)
	if err != nil {
		slog.Error("failed to open store", "type", env.StorageEnv.Type, "error", err)
		os.Exit(1)
	}
	defer func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ccancel()
		if err := st.Close(cctx); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()
	db := st.DB

	// Setup event bus
	bus := eventbus.New()

	// Setup repositories
	projectRepo := projectrepo.NewDocstoreRepository(db)
	taskRepo := taskrepo.NewDocstoreRepository(db)
	notificationRepo := notificationrepo.NewDocstoreRepository(db)
	pushSubRepo := pushsubrepo.NewDocstoreRepository(db)

	// Setup automation
	sink := notification.NewSink(notificationRepo, bus, nil)
	instanceSpawner := spawner.New(taskRepo, projectRepo, sink, bus, nil)
	scanner := deadline.NewScanner(projectRepo, taskRepo, notificationRepo, sink, bus, nil)
	scheduler, err := deadline.NewScheduler(scanner, env.SchedulerEnv.DeadlineScanSchedule, env.SchedulerEnv.ScanOnStart)
	if err != nil {
		slog.Error("invalid deadline scan schedule", "error", err)
		os.Exit(1)
	}

	// Setup push notification
	vapidEnv := &env.VAPIDEnv
	pushSender := pushnotification.NewSender(vapidEnv, pushSubRepo)
	pushDispatcher := pushnotification.NewDispatcher(bus, pushSender)

	srv := server.NewServer(
		env,
		recurrence.NewServer(nil),
		task.NewServer(taskRepo, scanner, instanceSpawner, nil),
		notification.NewServer(notificationRepo),
		deadline.NewServer(scanner),
		pushnotification.NewServer(vapidEnv, pushSubRepo),
	)

	var wg conc.WaitGroup
	scheduler.Start(ctx)
	wg.Go(func() { pushDispatcher.Start(ctx) })
	if st.Local != nil && env.StorageEnv.WatchLocal {
		watcher := deadline.NewWatcher(st.Local, taskRepo, scanner)
		wg.Go(func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("task watcher stopped", "error", err)
			}
		})
	}

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	scheduler.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	wg.Wait()
}
