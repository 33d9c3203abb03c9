package repository

import (
	"context"
	"errors"
	"fmt"

	medicineserrors "medbook/internal/medicines/errors"
	"medbook/pkg/config"
	mongotx "medbook/pkg/db/mongo"
	"medbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const PatientsCollectionName = "patients"

// PatientRepository appends to and updates the medicine history lists of a
// patient. Every write targets one patient document by email.
type PatientRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.Patient, error)
	AddMedication(ctx context.Context, email string, medication model.Medication) error
	SetMedicationActive(ctx context.Context, email, medicineName string, active bool) error
	AddPurchase(ctx context.Context, email string, purchase model.MedicinePurchase) error
	UpsertInquiry(ctx context.Context, email string, inquiry model.MedicineInquiry) error
}

type mongoPatientRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoPatientRepository(cfg *config.Config) PatientRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPatientRepository{
		cfg:        cfg,
		collection: db.Collection(PatientsCollectionName),
	}
}

func (r *mongoPatientRepository) FindByEmail(ctx context.Context, email string) (*model.Patient, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var patient model.Patient
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&patient)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, medicineserrors.ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to find patient: %w", err)
	}
	return &patient, nil
}

func (r *mongoPatientRepository) AddMedication(ctx context.Context, email string, medication model.Medication) error {
	return r.push(ctx, email, "medications", medication)
}

func (r *mongoPatientRepository) AddPurchase(ctx context.Context, email string, purchase model.MedicinePurchase) error {
	return r.push(ctx, email, "purchased_medicines", purchase)
}

func (r *mongoPatientRepository) push(ctx context.Context, email, field string, entry any) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$push": bson.M{field: entry}})
	if err != nil {
		return fmt.Errorf("failed to update patient %s: %w", field, err)
	}
	if result.MatchedCount == 0 {
		return medicineserrors.ErrPatientNotFound
	}
	return nil
}

// SetMedicationActive flips the first medication with the given name.
func (r *mongoPatientRepository) SetMedicationActive(ctx context.Context, email, medicineName string, active bool) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"email": email, "medications.name": medicineName},
		bson.M{"$set": bson.M{"medications.$.active": active}},
	)
	if err != nil {
		return fmt.Errorf("failed to update medication status: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}
	return r.missing(ctx, email, medicineserrors.ErrMedicationNotFound)
}

// UpsertInquiry refreshes the quantity and date of an existing inquiry for
// the same medicine, or appends a new one.
func (r *mongoPatientRepository) UpsertInquiry(ctx context.Context, email string, inquiry model.MedicineInquiry) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"email": email, "medicine_inquiries.name": inquiry.Name},
		bson.M{"$set": bson.M{
			"medicine_inquiries.$.quantity_needed":   inquiry.QuantityNeeded,
			"medicine_inquiries.$.last_inquiry_date": inquiry.LastInquiryDate,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update medicine inquiry: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	result, err = r.collection.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$push": bson.M{"medicine_inquiries": inquiry}})
	if err != nil {
		return fmt.Errorf("failed to add medicine inquiry: %w", err)
	}
	if result.MatchedCount == 0 {
		return medicineserrors.ErrPatientNotFound
	}
	return nil
}

// missing tells an unknown patient apart from a known patient without the
// targeted entry.
func (r *mongoPatientRepository) missing(ctx context.Context, email string, entryErr error) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return fmt.Errorf("failed to check patient existence: %w", err)
	}
	if n == 0 {
		return medicineserrors.ErrPatientNotFound
	}
	return entryErr
}
