package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	medicineserrors "medbook/internal/medicines/errors"
	"medbook/internal/medicines/validator"
	"medbook/pkg/config"
	mongotx "medbook/pkg/db/mongo"
	apperrors "medbook/pkg/errors"
	"medbook/pkg/logger"
	"medbook/pkg/model"
	"medbook/pkg/slot"

	"go.mongodb.org/mongo-driver/mongo"
)

var fixedNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type memMedicineRepo struct {
	medicines []*model.Medicine
	adjustErr error
	calls     []string
}

func (m *memMedicineRepo) List(ctx context.Context) ([]*model.Medicine, error) {
	m.calls = append(m.calls, "list")
	return m.medicines, nil
}

func (m *memMedicineRepo) FindByName(ctx context.Context, name string) (*model.Medicine, error) {
	for _, med := range m.medicines {
		if strings.EqualFold(med.Name, name) {
			c := *med
			return &c, nil
		}
	}
	return nil, medicineserrors.ErrMedicineNotFound
}

func (m *memMedicineRepo) Search(ctx context.Context, query string) ([]*model.Medicine, error) {
	m.calls = append(m.calls, "search:"+query)
	return m.medicines, nil
}

func (m *memMedicineRepo) FindByCategory(ctx context.Context, category string) ([]*model.Medicine, error) {
	m.calls = append(m.calls, "category:"+category)
	return m.medicines, nil
}

func (m *memMedicineRepo) FindBySymptom(ctx context.Context, symptom string) ([]*model.Medicine, error) {
	m.calls = append(m.calls, "symptom:"+symptom)
	return m.medicines, nil
}

func (m *memMedicineRepo) AdjustQuantity(ctx context.Context, id string, delta int) error {
	if m.adjustErr != nil {
		return m.adjustErr
	}
	for _, med := range m.medicines {
		if med.ID == id {
			if med.Quantity+delta < 0 {
				return medicineserrors.ErrInsufficientStock
			}
			med.Quantity += delta
			return nil
		}
	}
	return medicineserrors.ErrMedicineNotFound
}

func (m *memMedicineRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type memPatientRepo struct {
	patients map[string]*model.Patient

	addPurchaseFunc func(email string, p model.MedicinePurchase) error
}

func newMemPatientRepo(patients ...*model.Patient) *memPatientRepo {
	m := &memPatientRepo{patients: map[string]*model.Patient{}}
	for _, p := range patients {
		m.patients[p.Email] = p
	}
	return m
}

func (m *memPatientRepo) FindByEmail(ctx context.Context, email string) (*model.Patient, error) {
	p, ok := m.patients[email]
	if !ok {
		return nil, medicineserrors.ErrPatientNotFound
	}
	return p, nil
}

func (m *memPatientRepo) AddMedication(ctx context.Context, email string, medication model.Medication) error {
	p, ok := m.patients[email]
	if !ok {
		return medicineserrors.ErrPatientNotFound
	}
	p.Medications = append(p.Medications, medication)
	return nil
}

func (m *memPatientRepo) SetMedicationActive(ctx context.Context, email, medicineName string, active bool) error {
	p, ok := m.patients[email]
	if !ok {
		return medicineserrors.ErrPatientNotFound
	}
	for i := range p.Medications {
		if p.Medications[i].Name == medicineName {
			p.Medications[i].Active = active
			return nil
		}
	}
	return medicineserrors.ErrMedicationNotFound
}

func (m *memPatientRepo) AddPurchase(ctx context.Context, email string, purchase model.MedicinePurchase) error {
	if m.addPurchaseFunc != nil {
		return m.addPurchaseFunc(email, purchase)
	}
	p, ok := m.patients[email]
	if !ok {
		return medicineserrors.ErrPatientNotFound
	}
	p.PurchasedMedicines = append(p.PurchasedMedicines, purchase)
	return nil
}

func (m *memPatientRepo) UpsertInquiry(ctx context.Context, email string, inquiry model.MedicineInquiry) error {
	p, ok := m.patients[email]
	if !ok {
		return medicineserrors.ErrPatientNotFound
	}
	for i := range p.MedicineInquiries {
		if p.MedicineInquiries[i].Name == inquiry.Name {
			p.MedicineInquiries[i].QuantityNeeded = inquiry.QuantityNeeded
			p.MedicineInquiries[i].LastInquiryDate = inquiry.LastInquiryDate
			return nil
		}
	}
	p.MedicineInquiries = append(p.MedicineInquiries, inquiry)
	return nil
}

func paracetamol() *model.Medicine {
	return &model.Medicine{ID: "m1", Name: "Paracetamol", Category: "Analgesic", Quantity: 10, Price: 2.5}
}

func newTestService(meds *memMedicineRepo, patients *memPatientRepo) MedicineService {
	log := logger.New(logger.Config{Level: "error", Service: "test"})
	codec := slot.NewCodec(time.UTC, func() time.Time { return fixedNow })
	return NewMedicineService(meds, patients, validator.NewMedicineValidator(log), codec, &config.Config{Log: log})
}

func errorCode(err error) string {
	return apperrors.AsAppError(err).Code
}

func TestFind_Dispatch(t *testing.T) {
	tests := []struct {
		name     string
		category string
		query    string
		want     string
	}{
		{"category wins", " Analgesic ", "para", "category:Analgesic"},
		{"query", "", "para", "search:para"},
		{"everything", "", "  ", "list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meds := &memMedicineRepo{medicines: []*model.Medicine{paracetamol()}}
			svc := newTestService(meds, newMemPatientRepo())
			if _, err := svc.Find(context.Background(), tt.category, tt.query); err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if len(meds.calls) != 1 || meds.calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", meds.calls, tt.want)
			}
		})
	}
}

func TestFindBySymptom_Empty(t *testing.T) {
	svc := newTestService(&memMedicineRepo{}, newMemPatientRepo())
	_, err := svc.FindBySymptom(context.Background(), "   ")
	if errorCode(err) != apperrors.CodeInvalidInput {
		t.Errorf("FindBySymptom() code = %s, want %s", errorCode(err), apperrors.CodeInvalidInput)
	}
}

func TestQuantity(t *testing.T) {
	svc := newTestService(&memMedicineRepo{medicines: []*model.Medicine{paracetamol()}}, newMemPatientRepo())

	n, err := svc.Quantity(context.Background(), "paracetamol")
	if err != nil || n != 10 {
		t.Errorf("Quantity() = %d, %v, want 10", n, err)
	}

	_, err = svc.Quantity(context.Background(), "Aspirin")
	if errorCode(err) != apperrors.CodeNotFound {
		t.Errorf("unknown medicine code = %s, want %s", errorCode(err), apperrors.CodeNotFound)
	}
}

func TestPrescribe(t *testing.T) {
	patients := newMemPatientRepo(&model.Patient{ID: "p1", Email: "ravi@example.com"})
	svc := newTestService(&memMedicineRepo{medicines: []*model.Medicine{paracetamol()}}, patients)

	med, err := svc.Prescribe(context.Background(), &model.Prescription{
		PatientEmail: " Ravi@Example.com ",
		MedicineName: "paracetamol",
		Details:      "500mg twice daily",
		DoctorName:   "Dr. Asha Rao",
	})
	if err != nil {
		t.Fatalf("Prescribe() error = %v", err)
	}
	if med.Name != "Paracetamol" || med.DatePrescribed != "2025-06-01" || !med.Active || med.Category != "Analgesic" {
		t.Errorf("Prescribe() = %+v", med)
	}
	if got := patients.patients["ravi@example.com"].Medications; len(got) != 1 {
		t.Errorf("stored medications = %v", got)
	}
}

func TestPrescribe_Errors(t *testing.T) {
	tests := []struct {
		name     string
		p        model.Prescription
		wantCode string
	}{
		{
			"invalid",
			model.Prescription{PatientEmail: "ravi", MedicineName: "Paracetamol", Details: "d", DoctorName: "Dr. A"},
			apperrors.CodeValidation,
		},
		{
			"unknown medicine",
			model.Prescription{PatientEmail: "ravi@example.com", MedicineName: "Aspirin", Details: "d", DoctorName: "Dr. A"},
			apperrors.CodeNotFound,
		},
		{
			"unknown patient",
			model.Prescription{PatientEmail: "nobody@example.com", MedicineName: "Paracetamol", Details: "d", DoctorName: "Dr. A"},
			apperrors.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patients := newMemPatientRepo(&model.Patient{Email: "ravi@example.com"})
			svc := newTestService(&memMedicineRepo{medicines: []*model.Medicine{paracetamol()}}, patients)
			_, err := svc.Prescribe(context.Background(), &tt.p)
			if errorCode(err) != tt.wantCode {
				t.Errorf("Prescribe() code = %s, want %s (%v)", errorCode(err), tt.wantCode, err)
			}
		})
	}
}

func TestSetMedicationActive(t *testing.T) {
	patients := newMemPatientRepo(&model.Patient{
		Email:       "ravi@example.com",
		Medications: []model.Medication{{Name: "Paracetamol", Active: true}},
	})
	svc := newTestService(&memMedicineRepo{}, patients)

	if err := svc.SetMedicationActive(context.Background(), "ravi@example.com", "Paracetamol", false); err != nil {
		t.Fatalf("SetMedicationActive() error = %v", err)
	}
	if patients.patients["ravi@example.com"].Medications[0].Active {
		t.Error("medication should be inactive")
	}

	err := svc.SetMedicationActive(context.Background(), "ravi@example.com", "Ibuprofen", true)
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeNotFound || !strings.Contains(appErr.Message, "Medication") {
		t.Errorf("missing medication error = %v", err)
	}
}

func TestPurchase(t *testing.T) {
	meds := &memMedicineRepo{medicines: []*model.Medicine{paracetamol()}}
	patients := newMemPatientRepo(&model.Patient{Email: "ravi@example.com"})
	svc := newTestService(meds, patients)

	purchase, err := svc.Purchase(context.Background(), &model.MedicineOrder{
		PatientEmail: "ravi@example.com",
		MedicineName: "PARACETAMOL",
		Quantity:     4,
	})
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if purchase.Name != "Paracetamol" || purchase.TotalCost != 10 || purchase.PricePerUnit != 2.5 || purchase.PurchaseDate != "2025-06-01" {
		t.Errorf("Purchase() = %+v", purchase)
	}
	if meds.medicines[0].Quantity != 6 {
		t.Errorf("stock = %d, want 6", meds.medicines[0].Quantity)
	}
	if got := patients.patients["ravi@example.com"].PurchasedMedicines; len(got) != 1 || got[0].Quantity != 4 {
		t.Errorf("stored purchases = %+v", got)
	}
}

func TestPurchase_Errors(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int
		adjustErr error
		purchase  func(string, model.MedicinePurchase) error
		wantCode  string
	}{
		{"over stock", 11, nil, nil, apperrors.CodeConflict},
		{"stock taken concurrently", 3, medicineserrors.ErrInsufficientStock, nil, apperrors.CodeConflict},
		{"zero quantity", 0, nil, nil, apperrors.CodeValidation},
		{
			"patient write fails", 3, nil,
			func(string, model.MedicinePurchase) error { return errors.New("write failed") },
			apperrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meds := &memMedicineRepo{medicines: []*model.Medicine{paracetamol()}, adjustErr: tt.adjustErr}
			patients := newMemPatientRepo(&model.Patient{Email: "ravi@example.com"})
			patients.addPurchaseFunc = tt.purchase
			svc := newTestService(meds, patients)

			_, err := svc.Purchase(context.Background(), &model.MedicineOrder{
				PatientEmail: "ravi@example.com",
				MedicineName: "Paracetamol",
				Quantity:     tt.quantity,
			})
			if errorCode(err) != tt.wantCode {
				t.Errorf("Purchase() code = %s, want %s (%v)", errorCode(err), tt.wantCode, err)
			}
			if len(patients.patients["ravi@example.com"].PurchasedMedicines) != 0 {
				t.Error("failed purchase should not be recorded")
			}
		})
	}
}

func TestRecordInquiry_UpdatesExisting(t *testing.T) {
	patients := newMemPatientRepo(&model.Patient{
		Email: "ravi@example.com",
		MedicineInquiries: []model.MedicineInquiry{
			{Name: "Paracetamol", QuantityNeeded: 1, InquiryDate: "2025-05-01", LastInquiryDate: "2025-05-01"},
		},
	})
	svc := newTestService(&memMedicineRepo{medicines: []*model.Medicine{paracetamol()}}, patients)

	if _, err := svc.RecordInquiry(context.Background(), &model.MedicineOrder{
		PatientEmail: "ravi@example.com",
		MedicineName: "paracetamol",
		Quantity:     5,
	}); err != nil {
		t.Fatalf("RecordInquiry() error = %v", err)
	}

	got := patients.patients["ravi@example.com"].MedicineInquiries
	if len(got) != 1 {
		t.Fatalf("inquiries = %+v, want one", got)
	}
	if got[0].QuantityNeeded != 5 || got[0].InquiryDate != "2025-05-01" || got[0].LastInquiryDate != "2025-06-01" {
		t.Errorf("inquiry = %+v", got[0])
	}
}

func TestCounter(t *testing.T) {
	patients := newMemPatientRepo(&model.Patient{
		Email: "ravi@example.com",
		MedicineInquiries: []model.MedicineInquiry{
			{Name: "A", QuantityNeeded: 1, LastInquiryDate: "2025-05-01"},
			{Name: "B", QuantityNeeded: 2, LastInquiryDate: "2025-05-20"},
			{Name: "C", QuantityNeeded: 3, LastInquiryDate: "2025-04-11"},
			{Name: "D", QuantityNeeded: 4, LastInquiryDate: "2025-05-30"},
		},
		PurchasedMedicines: []model.MedicinePurchase{{Name: "A", Quantity: 7}},
	})
	svc := newTestService(&memMedicineRepo{}, patients)

	c, err := svc.Counter(context.Background(), "ravi@example.com")
	if err != nil {
		t.Fatalf("Counter() error = %v", err)
	}
	if c.InquiriesCount != 4 || c.InquiriesTotalQuantity != 10 || c.PurchasedCount != 1 || c.PurchasedTotalQuantity != 7 || c.TotalItems != 5 {
		t.Errorf("Counter() = %+v", c)
	}
	var names []string
	for _, r := range c.RecentInquiries {
		names = append(names, r.Name)
	}
	if strings.Join(names, ",") != "D,B,A" {
		t.Errorf("recent inquiries = %v, want D,B,A", names)
	}
}

func TestPatientLists_EmptyNotNil(t *testing.T) {
	svc := newTestService(&memMedicineRepo{}, newMemPatientRepo(&model.Patient{Email: "ravi@example.com"}))
	ctx := context.Background()

	meds, err := svc.PatientMedications(ctx, "ravi@example.com")
	if err != nil || meds == nil {
		t.Errorf("PatientMedications() = %v, %v", meds, err)
	}
	purchases, err := svc.PatientPurchases(ctx, "ravi@example.com")
	if err != nil || purchases == nil {
		t.Errorf("PatientPurchases() = %v, %v", purchases, err)
	}
	inquiries, err := svc.PatientInquiries(ctx, "ravi@example.com")
	if err != nil || inquiries == nil {
		t.Errorf("PatientInquiries() = %v, %v", inquiries, err)
	}

	if _, err := svc.PatientMedications(ctx, "not-an-email"); errorCode(err) != apperrors.CodeValidation {
		t.Errorf("bad email code = %s, want %s", errorCode(err), apperrors.CodeValidation)
	}
}
