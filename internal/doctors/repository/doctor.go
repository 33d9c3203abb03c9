package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	doctorserrors "medbook/internal/doctors/errors"
	"medbook/pkg/config"
	mongotx "medbook/pkg/db/mongo"
	"medbook/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "doctors"
)

// DoctorRepository is the availability store adapter. It owns every write
// to a doctor's slots and bookings and to the linked user record that
// mirrors them.
type DoctorRepository interface {
	Load(ctx context.Context) []*model.Doctor
	FindByID(ctx context.Context, id string) (*model.Doctor, error)
	FindByLinkedUser(ctx context.Context, userID string) (*model.Doctor, error)
	Save(ctx context.Context, doctors ...*model.Doctor) error
	Create(ctx context.Context, doctor *model.Doctor) error
	UpsertFromUser(ctx context.Context, user *model.User) (bool, error)
	Count(ctx context.Context) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoDoctorRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	users      UserRepository
	txManager  mongotx.TransactionManager
	now        func() time.Time
}

func NewMongoDoctorRepository(cfg *config.Config, users UserRepository) DoctorRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDoctorRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		users:      users,
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
		now:        time.Now,
	}
}

// Load returns every doctor in _id order. A store failure is logged and
// reported as an empty result; callers must read empty as "cannot proceed".
func (r *mongoDoctorRepository) Load(ctx context.Context) []*model.Doctor {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.cfg.Log.Error("Failed to load doctors", "error", err)
		return []*model.Doctor{}
	}
	defer cursor.Close(ctx)

	var doctors []*model.Doctor
	if err := cursor.All(ctx, &doctors); err != nil {
		r.cfg.Log.Error("Failed to decode doctors", "error", err)
		return []*model.Doctor{}
	}
	return doctors
}

func (r *mongoDoctorRepository) FindByID(ctx context.Context, id string) (*model.Doctor, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoDoctorRepository) FindByLinkedUser(ctx context.Context, userID string) (*model.Doctor, error) {
	return r.findOne(ctx, bson.M{"linked_user_id": userID})
}

func (r *mongoDoctorRepository) findOne(ctx context.Context, filter bson.M) (*model.Doctor, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var doctor model.Doctor
	err := r.collection.FindOne(ctx, filter).Decode(&doctor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, doctorserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find doctor: %w", err)
	}
	return &doctor, nil
}

// Save persists slots and bookings of each doctor, guarded by the version
// the doctor was read at. On success the in-memory version and timestamp
// advance and the linked user, if any, is overwritten with the same lists.
// Mirror failures are logged; only the primary write decides the result.
func (r *mongoDoctorRepository) Save(ctx context.Context, doctors ...*model.Doctor) error {
	for _, doctor := range doctors {
		stamp := r.now().UTC().Truncate(time.Millisecond)

		if err := r.savePrimary(ctx, doctor, stamp); err != nil {
			return err
		}

		doctor.Version++
		doctor.LastUpdated = stamp

		r.mirror(ctx, doctor, stamp)
	}
	return nil
}

func (r *mongoDoctorRepository) savePrimary(ctx context.Context, doctor *model.Doctor, stamp time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"available_slots": nonNilSlots(doctor.AvailableSlots),
			"bookings":        nonNilBookings(doctor.Bookings),
			"last_updated":    stamp,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, versionFilter(doctor), update)
	if err != nil {
		return fmt.Errorf("failed to save doctor: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": doctor.ID})
	if err != nil {
		return fmt.Errorf("failed to check doctor existence: %w", err)
	}
	if n == 0 {
		return doctorserrors.ErrNotFound
	}

	r.cfg.Log.Warn("Doctor version conflict on save",
		"doctor_id", doctor.ID,
		"expected_version", doctor.Version,
	)
	return doctorserrors.ErrVersionConflict
}

// versionFilter matches the version the doctor was read at. Documents
// written before versioning carry no field and count as version 0.
func versionFilter(doctor *model.Doctor) bson.M {
	if doctor.Version == 0 {
		return bson.M{
			"_id": doctor.ID,
			"$or": bson.A{
				bson.M{"version": 0},
				bson.M{"version": bson.M{"$exists": false}},
			},
		}
	}
	return bson.M{"_id": doctor.ID, "version": doctor.Version}
}

func (r *mongoDoctorRepository) mirror(ctx context.Context, doctor *model.Doctor, stamp time.Time) {
	if doctor.LinkedUserID == "" || r.users == nil {
		return
	}

	err := r.users.Mirror(ctx, doctor.LinkedUserID, doctor.AvailableSlots, doctor.Bookings, stamp)
	switch {
	case err == nil:
		r.cfg.Log.Debug("Mirrored doctor availability to linked user",
			"doctor_id", doctor.ID,
			"user_id", doctor.LinkedUserID,
		)
	case errors.Is(err, doctorserrors.ErrLinkedUserNotFound):
		r.cfg.Log.Info("Linked user no longer exists, skipping mirror",
			"doctor_id", doctor.ID,
			"user_id", doctor.LinkedUserID,
		)
	default:
		r.cfg.Log.Warn("Failed to mirror doctor availability to linked user",
			"doctor_id", doctor.ID,
			"user_id", doctor.LinkedUserID,
			"error", err,
		)
	}
}

func (r *mongoDoctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if doctor.ID == "" {
		doctor.ID = uuid.NewString()
	}
	doctor.AvailableSlots = nonNilSlots(doctor.AvailableSlots)
	doctor.Bookings = nonNilBookings(doctor.Bookings)
	doctor.Version = 0
	doctor.LastUpdated = r.now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, doctor); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return doctorserrors.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

// UpsertFromUser creates or refreshes the doctors entry linked to a doctor
// account. Slots and bookings are only seeded on insert; afterwards they
// belong to the doctor record. Reports whether a new record was inserted.
func (r *mongoDoctorRepository) UpsertFromUser(ctx context.Context, user *model.User) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	specialization := user.Specialization
	if specialization == "" {
		specialization = config.DefaultSpecialization
	}
	stamp := r.now().UTC().Truncate(time.Millisecond)

	update := bson.M{
		"$set": bson.M{
			"name":           user.DisplayName(),
			"email":          user.Email,
			"specialization": specialization,
			"last_updated":   stamp,
		},
		"$setOnInsert": bson.M{
			"_id":             uuid.NewString(),
			"available_slots": nonNilSlots(user.AvailableSlots),
			"bookings":        nonNilBookings(user.Bookings),
			"version":         int64(0),
		},
	}

	opts := options.Update().SetUpsert(true)
	result, err := r.collection.UpdateOne(ctx, bson.M{"linked_user_id": user.ID}, update, opts)
	if err != nil {
		return false, fmt.Errorf("failed to upsert doctor from user: %w", err)
	}
	return result.UpsertedCount > 0, nil
}

func (r *mongoDoctorRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count doctors: %w", err)
	}
	return count, nil
}

func (r *mongoDoctorRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
