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
	"medbook/pkg/slot"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const UsersCollectionName = "users"

// UserRepository reads account records and writes the fields a linked
// doctor account mirrors. Only the doctor repository calls Mirror.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindDoctorUsers(ctx context.Context) ([]*model.User, error)
	Mirror(ctx context.Context, id string, slots []slot.Slot, bookings []model.Booking, at time.Time) error
}

type mongoUserRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoUserRepository(cfg *config.Config) UserRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoUserRepository{
		cfg:        cfg,
		collection: db.Collection(UsersCollectionName),
	}
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var user model.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, doctorserrors.ErrLinkedUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (r *mongoUserRepository) FindDoctorUsers(ctx context.Context) ([]*model.User, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"user_type": model.UserTypeDoctor})
	if err != nil {
		return nil, fmt.Errorf("failed to find doctor users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*model.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (r *mongoUserRepository) Mirror(ctx context.Context, id string, slots []slot.Slot, bookings []model.Booking, at time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"available_slots": nonNilSlots(slots),
		"bookings":        nonNilBookings(bookings),
		"last_updated":    at,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to mirror linked user: %w", err)
	}
	if result.MatchedCount == 0 {
		return doctorserrors.ErrLinkedUserNotFound
	}
	return nil
}

func nonNilSlots(s []slot.Slot) []slot.Slot {
	if s == nil {
		return []slot.Slot{}
	}
	return s
}

func nonNilBookings(b []model.Booking) []model.Booking {
	if b == nil {
		return []model.Booking{}
	}
	return b
}
