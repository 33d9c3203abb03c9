package syncworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	doctorserrors "medbook/internal/doctors/errors"
	"medbook/internal/doctors/service"
	apperrors "medbook/pkg/errors"
	"medbook/pkg/logger"

	"github.com/hibiken/asynq"
)

// Syncer is the part of the availability service the worker drives.
type Syncer interface {
	SyncLinkedUsers(ctx context.Context) (*service.SyncReport, error)
	SyncDoctor(ctx context.Context, doctorID string) (bool, error)
}

type Worker struct {
	syncer Syncer
	log    *logger.Logger
}

func NewWorker(syncer Syncer, log *logger.Logger) *Worker {
	return &Worker{syncer: syncer, log: log.With("component", "sync_worker")}
}

func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSyncAll, w.HandleSyncAll)
	mux.HandleFunc(TypeSyncDoctor, w.HandleSyncDoctor)
	return mux
}

func (w *Worker) HandleSyncAll(ctx context.Context, _ *asynq.Task) error {
	report, err := w.syncer.SyncLinkedUsers(ctx)
	if err != nil {
		w.log.Error("Scheduled sync failed", "error", err)
		return err
	}
	w.log.Info("Scheduled sync completed",
		"checked", report.Checked,
		"updated", report.Updated,
		"failed", report.Failed,
	)
	return nil
}

// HandleSyncDoctor retries store trouble. A bad payload, a missing doctor
// or a rejected ID are final.
func (w *Worker) HandleSyncDoctor(ctx context.Context, task *asynq.Task) error {
	var p DoctorPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil || p.DoctorID == "" {
		w.log.Warn("Invalid sync task payload", "payload", string(task.Payload()))
		return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
	}

	updated, err := w.syncer.SyncDoctor(ctx, p.DoctorID)
	if err != nil {
		if isFinal(err) {
			w.log.Warn("Doctor sync rejected", "doctor_id", p.DoctorID, "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	w.log.Debug("Doctor sync task done", "doctor_id", p.DoctorID, "updated", updated)
	return nil
}

func isFinal(err error) bool {
	if errors.Is(err, doctorserrors.ErrNotFound) {
		return true
	}
	// non-AppErrors come back as Internal, which is retried
	return apperrors.AsAppError(err).StatusCode() < 500 && !apperrors.IsRetryable(err)
}
