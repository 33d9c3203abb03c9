package repository

import (
	"context"
	"fmt"
	"time"

	doctorserrors "medbook/internal/doctors/errors"
	"medbook/pkg/config"
	"medbook/pkg/logger"
	"medbook/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LocksCollectionName = "doctor_locks"

// DoctorLockRepository provides operations for advisory locks
type DoctorLockRepository interface {
	Create(ctx context.Context, lock *model.DoctorLock) error
	Delete(ctx context.Context, doctorID string, owner string) error
	DeleteExpired(ctx context.Context, doctorID string, now time.Time) error
}

type mongoDoctorLockRepository struct {
	collection *mongo.Collection
}

func NewDoctorLockRepository(cfg *config.Config) DoctorLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDoctorLockRepository{
		collection: db.Collection(LocksCollectionName),
	}
}

// Returns a duplicate key error if the lock is already held
func (r *mongoDoctorLockRepository) Create(ctx context.Context, lock *model.DoctorLock) error {
	lock.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, lock)
	return err
}

// Delete releases a lock, but only the caller's own.
func (r *mongoDoctorLockRepository) Delete(ctx context.Context, doctorID string, owner string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": doctorID, "owner": owner})
	return err
}

// DeleteExpired clears a lock whose holder died without releasing it. The
// TTL index does the same eventually, but only once a minute.
func (r *mongoDoctorLockRepository) DeleteExpired(ctx context.Context, doctorID string, now time.Time) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": doctorID, "expires_at": bson.M{"$lt": now}})
	return err
}

// Locker serializes read-modify-write cycles on a single doctor record.
type Locker struct {
	repo DoctorLockRepository
	ttl  time.Duration
	log  *logger.Logger
}

func NewLocker(repo DoctorLockRepository, ttl time.Duration, log *logger.Logger) *Locker {
	return &Locker{repo: repo, ttl: ttl, log: log}
}

// WithLock runs fn while holding the advisory lock for doctorID. A lock
// held by someone else yields ErrLocked.
func (l *Locker) WithLock(ctx context.Context, doctorID string, fn func() error) error {
	owner := uuid.NewString()
	now := time.Now().UTC()

	if err := l.repo.DeleteExpired(ctx, doctorID, now); err != nil {
		l.log.Warn("Failed to clear expired doctor lock", "doctor_id", doctorID, "error", err)
	}

	lock := &model.DoctorLock{
		ID:        doctorID,
		Owner:     owner,
		ExpiresAt: now.Add(l.ttl),
	}
	if err := l.repo.Create(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return doctorserrors.ErrLocked
		}
		return fmt.Errorf("failed to acquire doctor lock: %w", err)
	}

	defer func() {
		// release even if the request context is already done
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.repo.Delete(releaseCtx, doctorID, owner); err != nil {
			l.log.Warn("Failed to release doctor lock", "doctor_id", doctorID, "error", err)
		}
	}()

	return fn()
}
