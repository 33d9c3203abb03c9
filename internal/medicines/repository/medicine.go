package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	medicineserrors "medbook/internal/medicines/errors"
	"medbook/pkg/config"
	mongotx "medbook/pkg/db/mongo"
	"medbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const MedicinesCollectionName = "medicines"

// MedicineRepository reads the inventory and moves stock. Name lookups are
// case-insensitive.
type MedicineRepository interface {
	List(ctx context.Context) ([]*model.Medicine, error)
	FindByName(ctx context.Context, name string) (*model.Medicine, error)
	Search(ctx context.Context, query string) ([]*model.Medicine, error)
	FindByCategory(ctx context.Context, category string) ([]*model.Medicine, error)
	FindBySymptom(ctx context.Context, symptom string) ([]*model.Medicine, error)
	AdjustQuantity(ctx context.Context, id string, delta int) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoMedicineRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoMedicineRepository(cfg *config.Config) MedicineRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoMedicineRepository{
		cfg:        cfg,
		collection: db.Collection(MedicinesCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func exactFold(value string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(value) + "$", Options: "i"}
}

func containsFold(value string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(value), Options: "i"}
}

func (r *mongoMedicineRepository) List(ctx context.Context) ([]*model.Medicine, error) {
	return r.find(ctx, bson.M{})
}

func (r *mongoMedicineRepository) FindByName(ctx context.Context, name string) (*model.Medicine, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var medicine model.Medicine
	err := r.collection.FindOne(ctx, bson.M{"name": exactFold(name)}).Decode(&medicine)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, medicineserrors.ErrMedicineNotFound
		}
		return nil, fmt.Errorf("failed to find medicine: %w", err)
	}
	return &medicine, nil
}

// Search matches the query anywhere in the name, generic name, category or
// description.
func (r *mongoMedicineRepository) Search(ctx context.Context, query string) ([]*model.Medicine, error) {
	pattern := containsFold(query)
	return r.find(ctx, bson.M{"$or": bson.A{
		bson.M{"name": pattern},
		bson.M{"generic_name": pattern},
		bson.M{"category": pattern},
		bson.M{"description": pattern},
	}})
}

func (r *mongoMedicineRepository) FindByCategory(ctx context.Context, category string) ([]*model.Medicine, error) {
	return r.find(ctx, bson.M{"category": exactFold(category)})
}

// FindBySymptom matches medicines with any listed symptom containing the text.
func (r *mongoMedicineRepository) FindBySymptom(ctx context.Context, symptom string) ([]*model.Medicine, error) {
	return r.find(ctx, bson.M{"symptoms": containsFold(symptom)})
}

func (r *mongoMedicineRepository) find(ctx context.Context, filter bson.M) ([]*model.Medicine, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find medicines: %w", err)
	}
	defer cursor.Close(ctx)

	medicines := []*model.Medicine{}
	if err := cursor.All(ctx, &medicines); err != nil {
		return nil, fmt.Errorf("failed to decode medicines: %w", err)
	}
	return medicines, nil
}

// AdjustQuantity adds delta to the stock in one conditional update, so two
// purchases can never take the quantity below zero between them.
func (r *mongoMedicineRepository) AdjustQuantity(ctx context.Context, id string, delta int) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id}
	if delta < 0 {
		filter["quantity"] = bson.M{"$gte": -delta}
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"quantity": delta}})
	if err != nil {
		return fmt.Errorf("failed to adjust medicine quantity: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check medicine existence: %w", err)
	}
	if n == 0 {
		return medicineserrors.ErrMedicineNotFound
	}
	return medicineserrors.ErrInsufficientStock
}

func (r *mongoMedicineRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
