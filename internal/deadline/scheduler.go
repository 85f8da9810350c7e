package deadline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/kazz187/taskcadence/internal/duedate"
)

// DefaultSchedule fires at midnight SGT.
const DefaultSchedule = "0 0 * * *"

type BatchScanner interface {
	ScanAll(ctx context.Context) (Summary, error)
}

// Scheduler runs the batch scan on a cron schedule evaluated in SGT.
type Scheduler struct {
	scanner     BatchScanner
	schedule    cron.Schedule
	scanOnStart bool

	cron *cron.Cron
	wg   sync.WaitGroup
}

func NewScheduler(scanner BatchScanner, spec string, scanOnStart bool) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid deadline scan schedule %q: %w", spec, err)
	}
	return &Scheduler{
		scanner:     scanner,
		schedule:    schedule,
		scanOnStart: scanOnStart,
		cron:        cron.New(cron.WithLocation(duedate.SGT), cron.WithLogger(cronLogger{})),
	}, nil
}

// Start schedules the scan and, when configured, runs one right away. Scans
// use ctx, so cancelling it aborts store calls of a running scan.
func (s *Scheduler) Start(ctx context.Context) {
	logger := cronLogger{}
	job := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		if _, err := s.scanner.ScanAll(ctx); err != nil {
			slog.ErrorContext(ctx, "scheduled deadline scan failed", "error", err)
		}
	}))
	s.cron.Schedule(s.schedule, job)
	s.cron.Start()
	slog.InfoContext(ctx, "deadline scheduler started", "next_run", s.cron.Entries()[0].Next)

	if s.scanOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			job.Run()
		}()
	}
}

// Stop stops scheduling and waits for running scans to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	slog.Info("deadline scheduler stopped")
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
