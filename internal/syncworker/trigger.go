package syncworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medbook/internal/events"
	"medbook/pkg/kafka"
	"medbook/pkg/logger"

	"github.com/hibiken/asynq"
)

// Trigger turns availability events into single-doctor sync tasks. Only
// doctors with a linked user need one, and events the sync itself emitted
// are ignored so a pass never schedules another.
type Trigger struct {
	queue  Enqueuer
	dedupe time.Duration
	log    *logger.Logger
}

func NewTrigger(queue Enqueuer, dedupe time.Duration, log *logger.Logger) *Trigger {
	return &Trigger{queue: queue, dedupe: dedupe, log: log.With("component", "sync_trigger")}
}

// Handle is a kafka.MessageHandler for the availability topic.
func (t *Trigger) Handle(ctx context.Context, msg kafka.Message) error {
	if msg.GetEventType() != events.TypeAvailabilityChanged {
		return nil
	}

	var event events.AvailabilityChanged
	if err := msg.DecodeValue(&event); err != nil {
		return err
	}
	if event.LinkedUserID == "" || event.Reason == events.ReasonSynced {
		return nil
	}

	task, err := NewSyncDoctorTask(event.DoctorID, t.dedupe)
	if err != nil {
		return kafka.NewPermanentError("invalid availability event", err)
	}

	_, err = t.queue.EnqueueContext(ctx, task)
	switch {
	case err == nil:
		t.log.Debug("Doctor sync enqueued", "doctor_id", event.DoctorID, "reason", event.Reason)
		return nil
	case errors.Is(err, asynq.ErrDuplicateTask):
		return nil
	default:
		return kafka.NewTransientError(fmt.Sprintf("enqueue sync for doctor %s", event.DoctorID), err)
	}
}
