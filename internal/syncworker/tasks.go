// Package syncworker keeps doctors and their linked user accounts in step
// outside the request path. A scheduler enqueues a full pass on an
// interval, availability events enqueue single-doctor passes, and an asynq
// server runs both against the availability service.
package syncworker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeSyncAll    = "availability:sync"
	TypeSyncDoctor = "availability:sync_doctor"

	Queue = "availability"
)

type DoctorPayload struct {
	DoctorID string `json:"doctor_id"`
}

// NewSyncAllTask builds the periodic full pass. Only one may be pending.
func NewSyncAllTask(interval time.Duration) *asynq.Task {
	return asynq.NewTask(TypeSyncAll, nil,
		asynq.Queue(Queue),
		asynq.MaxRetry(1),
		asynq.Unique(interval),
	)
}

// NewSyncDoctorTask builds a single-doctor pass. Bursts of events for one
// doctor collapse into one task within the dedupe window.
func NewSyncDoctorTask(doctorID string, dedupe time.Duration) (*asynq.Task, error) {
	if doctorID == "" {
		return nil, fmt.Errorf("doctor id cannot be empty")
	}
	payload, err := json.Marshal(DoctorPayload{DoctorID: doctorID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSyncDoctor, payload,
		asynq.Queue(Queue),
		asynq.MaxRetry(5),
		asynq.Unique(dedupe),
	), nil
}

func RedisOpt(addr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: addr, Password: password, DB: db}
}
