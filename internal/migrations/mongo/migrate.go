package mongo

import (
	"context"
	"fmt"
	"sort"

	"medbook/internal/migrations/mongo/validators"
	"medbook/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DoctorsCollection      = "doctors"
	UsersCollection        = "users"
	AppointmentsCollection = "appointments"
	DoctorLocksCollection  = "doctor_locks"
	MedicinesCollection    = "medicines"
	PatientsCollection     = "patients"
)

var (
	DoctorsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "linked_user_id", Value: 1}},
			Options: options.Index().SetName("linked_user_id_unique").SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: "specialization", Value: 1}}},
	}

	UsersIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_type", Value: 1}}},
	}

	AppointmentsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "doctor_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "patient_name", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
	}

	// Expired locks are reaped by Mongo; the locker also clears them eagerly.
	DoctorLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("expires_at_ttl").SetExpireAfterSeconds(0),
		},
	}

	// Name lookups are case-insensitive regexes; the collation index keeps
	// "Paracetamol" and "paracetamol" from both being stocked.
	MedicinesIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("name_unique").SetUnique(true).
				SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "symptoms", Value: 1}}},
	}

	PatientsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
	}
)

// CollectionDef is what a collection should look like after migrating. A
// nil validator leaves the collection unvalidated; users belong to the
// account system and are only indexed here.
type CollectionDef struct {
	Indexes          []mongo.IndexModel
	Validator        bson.M
	ValidationAction string
}

func Collections() map[string]CollectionDef {
	return map[string]CollectionDef{
		DoctorsCollection: {
			Indexes:   DoctorsIndexes,
			Validator: validators.DoctorValidator,
			// older records predate the schema
			ValidationAction: "warn",
		},
		UsersCollection: {
			Indexes: UsersIndexes,
		},
		AppointmentsCollection: {
			Indexes:          AppointmentsIndexes,
			Validator:        validators.AppointmentValidator,
			ValidationAction: "error",
		},
		DoctorLocksCollection: {
			Indexes:          DoctorLocksIndexes,
			Validator:        validators.DoctorLockValidator,
			ValidationAction: "error",
		},
		MedicinesCollection: {
			Indexes:          MedicinesIndexes,
			Validator:        validators.MedicineValidator,
			ValidationAction: "error",
		},
		PatientsCollection: {
			Indexes:          PatientsIndexes,
			Validator:        validators.PatientValidator,
			ValidationAction: "warn",
		},
	}
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	defs := Collections()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := defs[name]
		if err := ensureCollection(ctx, db, name, def, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied", "collections", len(names))
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, def CollectionDef, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection()
		if def.Validator != nil {
			opts.SetValidator(def.Validator).
				SetValidationLevel("moderate").
				SetValidationAction(def.ValidationAction)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	if def.Validator == nil {
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: def.Validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: def.ValidationAction},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	created, err := db.Collection(name).Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "indexes", created)
	return nil
}
