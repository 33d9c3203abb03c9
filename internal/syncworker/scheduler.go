package syncworker

import (
	"context"
	"fmt"
	"time"

	"medbook/pkg/logger"

	"github.com/hibiken/asynq"
)

// Runner owns the asynq scheduler and server for the sync worker.
type Runner struct {
	scheduler *asynq.Scheduler
	server    *asynq.Server
	worker    *Worker
	interval  time.Duration
	log       *logger.Logger
}

func NewRunner(redis asynq.RedisConnOpt, worker *Worker, interval time.Duration, loc *time.Location, log *logger.Logger) *Runner {
	adapter := &asynqLogger{log: log.With("component", "asynq")}

	scheduler := asynq.NewScheduler(redis, &asynq.SchedulerOpts{
		Location: loc,
		Logger:   adapter,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Debug("Scheduled sync not enqueued", "error", err)
			}
		},
	})

	server := asynq.NewServer(redis, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{Queue: 1},
		Logger:      adapter,
	})

	return &Runner{
		scheduler: scheduler,
		server:    server,
		worker:    worker,
		interval:  interval,
		log:       log,
	}
}

// CronSpec renders interval as an asynq "@every" spec.
func CronSpec(interval time.Duration) string {
	return fmt.Sprintf("@every %s", interval)
}

// Start registers the periodic pass and starts processing. It returns once
// both the scheduler and the server are running.
func (r *Runner) Start() error {
	entryID, err := r.scheduler.Register(CronSpec(r.interval), NewSyncAllTask(r.interval))
	if err != nil {
		return fmt.Errorf("failed to register sync schedule: %w", err)
	}
	if err := r.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start sync scheduler: %w", err)
	}
	if err := r.server.Start(r.worker.Mux()); err != nil {
		r.scheduler.Shutdown()
		return fmt.Errorf("failed to start sync worker: %w", err)
	}

	r.log.Info("Sync worker started", "entry_id", entryID, "interval", r.interval.String())
	return nil
}

func (r *Runner) Shutdown() {
	r.scheduler.Shutdown()
	r.server.Shutdown()
	r.log.Info("Sync worker stopped")
}

// Enqueuer is the part of *asynq.Client the event trigger needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type asynqLogger struct {
	log *logger.Logger
}

func (l *asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...any) { l.log.Fatal(fmt.Sprint(args...)) }
