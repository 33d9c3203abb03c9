//go:build integration

package testutil

import (
	"context"
	"testing"
	"time"

	"medbook/pkg/client"
	"medbook/pkg/config"
	"medbook/pkg/logger"
	"medbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DoctorsCollection      = "doctors"
	AppointmentsCollection = "appointments"
	UsersCollection        = "users"
	MedicinesCollection    = "medicines"
	PatientsCollection     = "patients"
)

type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoHelper(t *testing.T, mongoURI, dbName string) *MongoHelper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	return &MongoHelper{Client: client, Database: client.Database(dbName)}
}

func (m *MongoHelper) Close(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}

// CleanDatabase empties the data collections but keeps them, so
// validators and indexes from the migration job survive.
func (m *MongoHelper) CleanDatabase(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, name := range []string{DoctorsCollection, AppointmentsCollection, UsersCollection, "doctor_locks", MedicinesCollection, PatientsCollection} {
		if _, err := m.Database.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			t.Fatalf("failed to clean collection %s: %v", name, err)
		}
	}
}

// InsertDoctor writes a doctor directly, bypassing the API, so tests can
// start from stored legacy or malformed slots.
func (m *MongoHelper) InsertDoctor(t *testing.T, doc bson.M) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := m.Database.Collection(DoctorsCollection).InsertOne(ctx, doc); err != nil {
		t.Fatalf("failed to insert doctor: %v", err)
	}
}

func (m *MongoHelper) FindDoctor(t *testing.T, id string) *model.Doctor {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var doctor model.Doctor
	if err := m.Database.Collection(DoctorsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doctor); err != nil {
		t.Fatalf("failed to find doctor %s: %v", id, err)
	}
	return &doctor
}

func (m *MongoHelper) CountAppointments(t *testing.T, filter bson.M) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := m.Database.Collection(AppointmentsCollection).CountDocuments(ctx, filter)
	if err != nil {
		t.Fatalf("failed to count appointments: %v", err)
	}
	return n
}

// RepositoryConfig wires a config to this helper's connection so
// repositories can be exercised without the service running.
func (m *MongoHelper) RepositoryConfig() *config.Config {
	return &config.Config{
		MongoDatabaseName: m.Database.Name(),
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		Log:               logger.New(logger.Config{Level: "error", Service: "integration"}),
		Client:            &client.Client{Mongo: m.Client},
	}
}

func (m *MongoHelper) InsertUser(t *testing.T, doc bson.M) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := m.Database.Collection(UsersCollection).InsertOne(ctx, doc); err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
}

func (m *MongoHelper) FindUser(t *testing.T, id string) *model.User {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var user model.User
	if err := m.Database.Collection(UsersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		t.Fatalf("failed to find user %s: %v", id, err)
	}
	return &user
}

func (m *MongoHelper) Insert(t *testing.T, collection string, doc any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := m.Database.Collection(collection).InsertOne(ctx, doc); err != nil {
		t.Fatalf("failed to insert into %s: %v", collection, err)
	}
}

func (m *MongoHelper) FindPatient(t *testing.T, email string) *model.Patient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var patient model.Patient
	if err := m.Database.Collection(PatientsCollection).FindOne(ctx, bson.M{"email": email}).Decode(&patient); err != nil {
		t.Fatalf("failed to find patient %s: %v", email, err)
	}
	return &patient
}
