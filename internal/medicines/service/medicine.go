package service

import (
	"context"
	"errors"
	"sort"

	medicineserrors "medbook/internal/medicines/errors"
	"medbook/internal/medicines/repository"
	"medbook/internal/medicines/validator"
	"medbook/pkg/config"
	apperrors "medbook/pkg/errors"
	"medbook/pkg/model"
	"medbook/pkg/sanitizer"
	"medbook/pkg/slot"

	"go.mongodb.org/mongo-driver/mongo"
)

const recentInquiryLimit = 3

type MedicineService interface {
	Find(ctx context.Context, category, query string) ([]*model.Medicine, error)
	FindBySymptom(ctx context.Context, symptom string) ([]*model.Medicine, error)
	Quantity(ctx context.Context, name string) (int, error)
	Prescribe(ctx context.Context, p *model.Prescription) (*model.Medication, error)
	PatientMedications(ctx context.Context, email string) ([]model.Medication, error)
	SetMedicationActive(ctx context.Context, email, medicineName string, active bool) error
	Purchase(ctx context.Context, order *model.MedicineOrder) (*model.MedicinePurchase, error)
	PatientPurchases(ctx context.Context, email string) ([]model.MedicinePurchase, error)
	RecordInquiry(ctx context.Context, order *model.MedicineOrder) (*model.MedicineInquiry, error)
	PatientInquiries(ctx context.Context, email string) ([]model.MedicineInquiry, error)
	Counter(ctx context.Context, email string) (*model.MedicationCounter, error)
}

type medicineService struct {
	medicines repository.MedicineRepository
	patients  repository.PatientRepository
	validator *validator.MedicineValidator
	codec     *slot.Codec
	cfg       *config.Config
}

func NewMedicineService(
	medicines repository.MedicineRepository,
	patients repository.PatientRepository,
	validator *validator.MedicineValidator,
	codec *slot.Codec,
	cfg *config.Config,
) MedicineService {
	return &medicineService{
		medicines: medicines,
		patients:  patients,
		validator: validator,
		codec:     codec,
		cfg:       cfg,
	}
}

// Find filters by category when one is given, else searches by query, else
// lists the whole inventory.
func (s *medicineService) Find(ctx context.Context, category, query string) ([]*model.Medicine, error) {
	category = sanitizer.TrimAndNormalize(category)
	query = sanitizer.TrimAndNormalize(query)

	var (
		medicines []*model.Medicine
		err       error
	)
	switch {
	case category != "":
		medicines, err = s.medicines.FindByCategory(ctx, category)
	case query != "":
		medicines, err = s.medicines.Search(ctx, query)
	default:
		medicines, err = s.medicines.List(ctx)
	}
	if err != nil {
		return nil, s.translate(err, "Failed to load medicines")
	}
	return medicines, nil
}

func (s *medicineService) FindBySymptom(ctx context.Context, symptom string) ([]*model.Medicine, error) {
	symptom = sanitizer.TrimAndNormalize(symptom)
	if symptom == "" {
		return nil, apperrors.InvalidInput("Symptom cannot be empty")
	}
	medicines, err := s.medicines.FindBySymptom(ctx, symptom)
	if err != nil {
		return nil, s.translate(err, "Failed to load medicines")
	}
	return medicines, nil
}

func (s *medicineService) Quantity(ctx context.Context, name string) (int, error) {
	medicine, err := s.resolve(ctx, name)
	if err != nil {
		return 0, err
	}
	return medicine.Quantity, nil
}

func (s *medicineService) Prescribe(ctx context.Context, p *model.Prescription) (*model.Medication, error) {
	p.PatientEmail = sanitizer.SanitizeEmail(p.PatientEmail)
	p.MedicineName = sanitizer.TrimAndNormalize(p.MedicineName)
	p.Details = sanitizer.TrimAndNormalize(p.Details)
	p.DoctorName = sanitizer.SanitizePersonName(p.DoctorName)
	if err := s.validator.ValidatePrescription(p); err != nil {
		return nil, apperrors.Validation("Invalid prescription", map[string]any{"error": err.Error()})
	}

	medicine, err := s.resolve(ctx, p.MedicineName)
	if err != nil {
		return nil, err
	}

	medication := model.Medication{
		Name:                medicine.Name,
		PrescriptionDetails: p.Details,
		PrescribedBy:        p.DoctorName,
		DatePrescribed:      s.codec.Today(),
		Category:            medicine.Category,
		Active:              true,
	}
	if err := s.patients.AddMedication(ctx, p.PatientEmail, medication); err != nil {
		return nil, s.translate(err, "Failed to prescribe medication")
	}

	s.cfg.Log.Info("Medication prescribed",
		"patient_email", p.PatientEmail,
		"medicine", medicine.Name,
		"prescribed_by", p.DoctorName,
	)
	return &medication, nil
}

func (s *medicineService) PatientMedications(ctx context.Context, email string) ([]model.Medication, error) {
	patient, err := s.patient(ctx, email)
	if err != nil {
		return nil, err
	}
	return nonNil(patient.Medications), nil
}

func (s *medicineService) SetMedicationActive(ctx context.Context, email, medicineName string, active bool) error {
	email = sanitizer.SanitizeEmail(email)
	if err := s.validator.ValidateEmail(email); err != nil {
		return apperrors.Validation("Invalid patient email", map[string]any{"error": err.Error()})
	}
	medicineName = sanitizer.TrimAndNormalize(medicineName)
	if medicineName == "" {
		return apperrors.InvalidInput("Medication name cannot be empty")
	}

	if err := s.patients.SetMedicationActive(ctx, email, medicineName, active); err != nil {
		return s.translate(err, "Failed to update medication status")
	}
	s.cfg.Log.Info("Medication status updated", "patient_email", email, "medicine", medicineName, "active", active)
	return nil
}

// Purchase takes stock and records the purchase in one transaction; if the
// patient record cannot be written the stock is not taken.
func (s *medicineService) Purchase(ctx context.Context, order *model.MedicineOrder) (*model.MedicinePurchase, error) {
	if err := s.normalizeOrder(order); err != nil {
		return nil, err
	}

	medicine, err := s.resolve(ctx, order.MedicineName)
	if err != nil {
		return nil, err
	}
	if medicine.Quantity < order.Quantity {
		return nil, s.translate(medicineserrors.ErrInsufficientStock, "")
	}

	purchase := model.MedicinePurchase{
		Name:         medicine.Name,
		Quantity:     order.Quantity,
		PricePerUnit: medicine.Price,
		TotalCost:    float64(order.Quantity) * medicine.Price,
		PurchaseDate: s.codec.Today(),
		Category:     medicine.Category,
	}

	err = s.medicines.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.medicines.AdjustQuantity(sessCtx, medicine.ID, -order.Quantity); err != nil {
			return err
		}
		return s.patients.AddPurchase(sessCtx, order.PatientEmail, purchase)
	})
	if err != nil {
		s.cfg.Log.Warn("Medicine purchase failed",
			"patient_email", order.PatientEmail,
			"medicine", medicine.Name,
			"quantity", order.Quantity,
			"error", err,
		)
		return nil, s.translate(err, "Failed to purchase medicine")
	}

	s.cfg.Log.Info("Medicine purchased",
		"patient_email", order.PatientEmail,
		"medicine", medicine.Name,
		"quantity", order.Quantity,
	)
	return &purchase, nil
}

func (s *medicineService) PatientPurchases(ctx context.Context, email string) ([]model.MedicinePurchase, error) {
	patient, err := s.patient(ctx, email)
	if err != nil {
		return nil, err
	}
	return nonNil(patient.PurchasedMedicines), nil
}

func (s *medicineService) RecordInquiry(ctx context.Context, order *model.MedicineOrder) (*model.MedicineInquiry, error) {
	if err := s.normalizeOrder(order); err != nil {
		return nil, err
	}

	medicine, err := s.resolve(ctx, order.MedicineName)
	if err != nil {
		return nil, err
	}

	today := s.codec.Today()
	inquiry := model.MedicineInquiry{
		Name:            medicine.Name,
		QuantityNeeded:  order.Quantity,
		InquiryDate:     today,
		LastInquiryDate: today,
		Category:        medicine.Category,
	}
	if err := s.patients.UpsertInquiry(ctx, order.PatientEmail, inquiry); err != nil {
		return nil, s.translate(err, "Failed to record medicine inquiry")
	}
	return &inquiry, nil
}

func (s *medicineService) PatientInquiries(ctx context.Context, email string) ([]model.MedicineInquiry, error) {
	patient, err := s.patient(ctx, email)
	if err != nil {
		return nil, err
	}
	return nonNil(patient.MedicineInquiries), nil
}

// Counter summarizes inquiries and purchases. Recent inquiries are the
// latest three by last inquiry date.
func (s *medicineService) Counter(ctx context.Context, email string) (*model.MedicationCounter, error) {
	patient, err := s.patient(ctx, email)
	if err != nil {
		return nil, err
	}

	counter := &model.MedicationCounter{
		InquiriesCount:  len(patient.MedicineInquiries),
		PurchasedCount:  len(patient.PurchasedMedicines),
		TotalItems:      len(patient.MedicineInquiries) + len(patient.PurchasedMedicines),
		RecentInquiries: []model.RecentInquiry{},
	}
	for _, inq := range patient.MedicineInquiries {
		counter.InquiriesTotalQuantity += inq.QuantityNeeded
	}
	for _, p := range patient.PurchasedMedicines {
		counter.PurchasedTotalQuantity += p.Quantity
	}

	recent := append([]model.MedicineInquiry(nil), patient.MedicineInquiries...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].LastInquiryDate > recent[j].LastInquiryDate
	})
	for _, inq := range recent[:min(len(recent), recentInquiryLimit)] {
		counter.RecentInquiries = append(counter.RecentInquiries, model.RecentInquiry{
			Name:     inq.Name,
			Quantity: inq.QuantityNeeded,
			Date:     inq.LastInquiryDate,
		})
	}
	return counter, nil
}

func (s *medicineService) normalizeOrder(order *model.MedicineOrder) error {
	order.PatientEmail = sanitizer.SanitizeEmail(order.PatientEmail)
	order.MedicineName = sanitizer.TrimAndNormalize(order.MedicineName)
	if err := s.validator.ValidateOrder(order); err != nil {
		return apperrors.Validation("Invalid medicine order", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *medicineService) resolve(ctx context.Context, name string) (*model.Medicine, error) {
	name = sanitizer.TrimAndNormalize(name)
	if name == "" {
		return nil, apperrors.InvalidInput("Medicine name cannot be empty")
	}
	medicine, err := s.medicines.FindByName(ctx, name)
	if err != nil {
		return nil, s.translate(err, "Failed to find medicine")
	}
	return medicine, nil
}

func (s *medicineService) patient(ctx context.Context, email string) (*model.Patient, error) {
	email = sanitizer.SanitizeEmail(email)
	if err := s.validator.ValidateEmail(email); err != nil {
		return nil, apperrors.Validation("Invalid patient email", map[string]any{"error": err.Error()})
	}
	patient, err := s.patients.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.translate(err, "Failed to find patient")
	}
	return patient, nil
}

func (s *medicineService) translate(err error, message string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, medicineserrors.ErrMedicineNotFound):
		return apperrors.NotFound("Medicine")
	case errors.Is(err, medicineserrors.ErrPatientNotFound):
		return apperrors.NotFound("Patient")
	case errors.Is(err, medicineserrors.ErrMedicationNotFound):
		return apperrors.NotFound("Medication")
	case errors.Is(err, medicineserrors.ErrInsufficientStock):
		return apperrors.Conflict("Not enough stock available")
	default:
		s.cfg.Log.Error(message, "error", err)
		return apperrors.Internal(message, err)
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
