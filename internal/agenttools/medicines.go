package agenttools

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "medbook/pkg/errors"
	"medbook/pkg/model"

	"github.com/lexlapax/go-llms/pkg/agent/domain"
	"github.com/lexlapax/go-llms/pkg/agent/tools"
	sdomain "github.com/lexlapax/go-llms/pkg/schema/domain"
)

const (
	GetMedicines           = "get_medicines"
	PrescribeMedication    = "prescribe_medication"
	GetPatientMedications  = "get_patient_medications"
	UpdateMedicationStatus = "update_medication_status"
	PurchaseMedicine       = "purchase_medicine"
	GetPatientPurchases    = "get_patient_purchased_medicines"
	GetMedicineQuantity    = "get_medicine_quantity"
	GetMedicinesBySymptom  = "get_medicines_by_symptom"
	RecordMedicineInquiry  = "record_medicine_inquiry"
	GetPatientInquiries    = "get_patient_medicine_inquiries"
	GetMedicationsCounter  = "get_medications_counter"
)

const medicineUnavailableReply = "Error: The medicine system is currently unavailable. Please try again later or contact support."

// Medicines is the slice of the medicines service the tools call.
type Medicines interface {
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

type MedicineSearchParams struct {
	Category    string `json:"category"`
	SearchQuery string `json:"search_query"`
}

type PrescribeParams struct {
	PatientEmail        string `json:"patient_email"`
	MedicationName      string `json:"medication_name"`
	PrescriptionDetails string `json:"prescription_details"`
	DoctorName          string `json:"doctor_name"`
}

type PatientParams struct {
	PatientEmail string `json:"patient_email"`
}

type MedicationStatusParams struct {
	PatientEmail   string `json:"patient_email"`
	MedicationName string `json:"medication_name"`
	Active         bool   `json:"active"`
}

type PurchaseParams struct {
	PatientEmail string `json:"patient_email"`
	MedicineName string `json:"medicine_name"`
	Quantity     int    `json:"quantity"`
}

type MedicineNameParams struct {
	MedicineName string `json:"medicine_name"`
}

type SymptomParams struct {
	Symptom string `json:"symptom"`
}

type InquiryParams struct {
	PatientEmail   string `json:"patient_email"`
	MedicineName   string `json:"medicine_name"`
	QuantityNeeded int    `json:"quantity_needed"`
}

// WithMedicines registers the medicine inventory and patient medication
// tools after the appointment tools.
func (r *Registry) WithMedicines(m Medicines) *Registry {
	r.medicines = m
	r.register(r.getMedicinesTool())
	r.register(r.prescribeTool())
	r.register(r.patientTool(GetPatientMedications, "Lists the medications prescribed to a patient.", r.patientMedications))
	r.register(r.medicationStatusTool())
	r.register(r.purchaseTool())
	r.register(r.patientTool(GetPatientPurchases, "Lists the medicines a patient has purchased.", r.patientPurchases))
	r.register(r.quantityTool())
	r.register(r.symptomTool())
	r.register(r.inquiryTool())
	r.register(r.patientTool(GetPatientInquiries, "Lists the medicine inquiries a patient has made.", r.patientInquiries))
	r.register(r.patientTool(GetMedicationsCounter, "Summarizes a patient's medicine inquiries and purchases.", r.medicationsCounter))
	return r
}

func intProp(description string) sdomain.Property {
	return sdomain.Property{Type: "integer", Description: description}
}

func objectSchema(required []string, props map[string]sdomain.Property) *sdomain.Schema {
	return &sdomain.Schema{Type: "object", Properties: props, Required: required}
}

// medicineReply turns a service failure into the message the agent relays.
func (r *Registry) medicineReply(tool string, err error, subject string) string {
	appErr := apperrors.AsAppError(err)
	switch appErr.Code {
	case apperrors.CodeNotFound:
		return fmt.Sprintf("❌ Error: %s. Please check %s and try again.", appErr.Message, subject)
	case apperrors.CodeValidation, apperrors.CodeInvalidInput:
		return fmt.Sprintf("❌ Error: Invalid input. Please check %s and try again.", subject)
	case apperrors.CodeConflict:
		return fmt.Sprintf("❌ Error: %s.", appErr.Message)
	default:
		r.log.Error("Agent tool failed", "tool", tool, "error", err)
		return medicineUnavailableReply
	}
}

func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(data), nil
}

func (r *Registry) getMedicinesTool() domain.Tool {
	return tools.NewToolBuilder(GetMedicines, "Lists medicines in the inventory, optionally by category or a search query.").
		WithFunction(r.getMedicines).
		WithParameterSchema(objectSchema(nil, map[string]sdomain.Property{
			"category":     stringProp("Optional category, matched exactly"),
			"search_query": stringProp("Optional text matched against name, generic name, category and description"),
		})).
		WithConstraints([]string{"The category filter wins when both are given."}).
		WithCategory("medicines").
		WithTags([]string{"medicine", "inventory"}).
		WithBehavior(true, false, false, "fast").
		Build()
}

func (r *Registry) getMedicines(ctx context.Context, p MedicineSearchParams) (string, error) {
	medicines, err := r.medicines.Find(ctx, p.Category, p.SearchQuery)
	if err != nil {
		return r.medicineReply(GetMedicines, err, "the category or search text"), nil
	}
	if len(medicines) == 0 {
		return "No medicines matched.", nil
	}
	return toJSON(medicines)
}

func (r *Registry) prescribeTool() domain.Tool {
	return tools.NewToolBuilder(PrescribeMedication, "Prescribes a medicine from the inventory to a patient.").
		WithFunction(r.prescribe).
		WithParameterSchema(objectSchema(
			[]string{"patient_email", "medication_name", "prescription_details", "doctor_name"},
			map[string]sdomain.Property{
				"patient_email":        stringProp("Email of the patient"),
				"medication_name":      stringProp("Name of the medicine"),
				"prescription_details": stringProp("Dosage and instructions"),
				"doctor_name":          stringProp("Name of the prescribing doctor"),
			},
		)).
		WithCategory("medicines").
		WithTags([]string{"medicine", "patient"}).
		WithBehavior(false, false, false, "medium").
		Build()
}

func (r *Registry) prescribe(ctx context.Context, p PrescribeParams) (string, error) {
	r.log.Info("Agent tool call", "tool", PrescribeMedication, "patient_email", p.PatientEmail, "medication_name", p.MedicationName)

	medication, err := r.medicines.Prescribe(ctx, &model.Prescription{
		PatientEmail: p.PatientEmail,
		MedicineName: p.MedicationName,
		Details:      p.PrescriptionDetails,
		DoctorName:   p.DoctorName,
	})
	if err != nil {
		return r.medicineReply(PrescribeMedication, err, "the patient email and medication name"), nil
	}
	return fmt.Sprintf("✅ Successfully prescribed %s to patient with email %s.", medication.Name, p.PatientEmail), nil
}

func (r *Registry) patientTool(name, description string, fn func(context.Context, PatientParams) (string, error)) domain.Tool {
	return tools.NewToolBuilder(name, description).
		WithFunction(fn).
		WithParameterSchema(objectSchema([]string{"patient_email"}, map[string]sdomain.Property{
			"patient_email": stringProp("Email of the patient"),
		})).
		WithCategory("medicines").
		WithTags([]string{"medicine", "patient"}).
		WithBehavior(true, false, false, "fast").
		Build()
}

func (r *Registry) patientMedications(ctx context.Context, p PatientParams) (string, error) {
	list, err := r.medicines.PatientMedications(ctx, p.PatientEmail)
	if err != nil {
		return r.medicineReply(GetPatientMedications, err, "the patient email"), nil
	}
	return toJSON(list)
}

func (r *Registry) patientPurchases(ctx context.Context, p PatientParams) (string, error) {
	list, err := r.medicines.PatientPurchases(ctx, p.PatientEmail)
	if err != nil {
		return r.medicineReply(GetPatientPurchases, err, "the patient email"), nil
	}
	return toJSON(list)
}

func (r *Registry) patientInquiries(ctx context.Context, p PatientParams) (string, error) {
	list, err := r.medicines.PatientInquiries(ctx, p.PatientEmail)
	if err != nil {
		return r.medicineReply(GetPatientInquiries, err, "the patient email"), nil
	}
	return toJSON(list)
}

func (r *Registry) medicationsCounter(ctx context.Context, p PatientParams) (string, error) {
	counter, err := r.medicines.Counter(ctx, p.PatientEmail)
	if err != nil {
		return r.medicineReply(GetMedicationsCounter, err, "the patient email"), nil
	}
	return toJSON(counter)
}

func (r *Registry) medicationStatusTool() domain.Tool {
	return tools.NewToolBuilder(UpdateMedicationStatus, "Marks one of a patient's medications active or inactive.").
		WithFunction(r.medicationStatus).
		WithParameterSchema(objectSchema(
			[]string{"patient_email", "medication_name", "active"},
			map[string]sdomain.Property{
				"patient_email":   stringProp("Email of the patient"),
				"medication_name": stringProp("Name of the prescribed medication"),
				"active":          {Type: "boolean", Description: "Whether the medication is active"},
			},
		)).
		WithCategory("medicines").
		WithTags([]string{"medicine", "patient"}).
		WithBehavior(false, false, false, "medium").
		Build()
}

func (r *Registry) medicationStatus(ctx context.Context, p MedicationStatusParams) (string, error) {
	if err := r.medicines.SetMedicationActive(ctx, p.PatientEmail, p.MedicationName, p.Active); err != nil {
		return r.medicineReply(UpdateMedicationStatus, err, "the patient email and medication name"), nil
	}
	status := "inactive"
	if p.Active {
		status = "active"
	}
	return fmt.Sprintf("✅ Successfully updated medication status to %s.", status), nil
}

func (r *Registry) purchaseTool() domain.Tool {
	return tools.NewToolBuilder(PurchaseMedicine, "Purchases a quantity of a medicine for a patient and takes it from stock.").
		WithFunction(r.purchase).
		WithParameterSchema(objectSchema(
			[]string{"patient_email", "medicine_name", "quantity"},
			map[string]sdomain.Property{
				"patient_email": stringProp("Email of the patient"),
				"medicine_name": stringProp("Name of the medicine"),
				"quantity":      intProp("Number of units, at least 1"),
			},
		)).
		WithUsageInstructions("Check get_medicine_quantity before offering a purchase.").
		WithCategory("medicines").
		WithTags([]string{"medicine", "purchase"}).
		WithBehavior(false, true, true, "medium").
		Build()
}

func (r *Registry) purchase(ctx context.Context, p PurchaseParams) (string, error) {
	r.log.Info("Agent tool call", "tool", PurchaseMedicine, "patient_email", p.PatientEmail, "medicine_name", p.MedicineName, "quantity", p.Quantity)

	purchase, err := r.medicines.Purchase(ctx, &model.MedicineOrder{
		PatientEmail: p.PatientEmail,
		MedicineName: p.MedicineName,
		Quantity:     p.Quantity,
	})
	if err != nil {
		return r.medicineReply(PurchaseMedicine, err, "the patient email, medicine name and quantity"), nil
	}
	return fmt.Sprintf("✅ Purchased %d x %s for %.2f.", purchase.Quantity, purchase.Name, purchase.TotalCost), nil
}

func (r *Registry) quantityTool() domain.Tool {
	return tools.NewToolBuilder(GetMedicineQuantity, "Reports how many units of a medicine are in stock.").
		WithFunction(r.quantity).
		WithParameterSchema(objectSchema([]string{"medicine_name"}, map[string]sdomain.Property{
			"medicine_name": stringProp("Name of the medicine"),
		})).
		WithCategory("medicines").
		WithTags([]string{"medicine", "inventory"}).
		WithBehavior(true, false, false, "fast").
		Build()
}

func (r *Registry) quantity(ctx context.Context, p MedicineNameParams) (string, error) {
	n, err := r.medicines.Quantity(ctx, p.MedicineName)
	if err != nil {
		return r.medicineReply(GetMedicineQuantity, err, "the medicine name"), nil
	}
	return fmt.Sprintf("%d units of %s are in stock.", n, p.MedicineName), nil
}

func (r *Registry) symptomTool() domain.Tool {
	return tools.NewToolBuilder(GetMedicinesBySymptom, "Lists medicines that treat a symptom.").
		WithFunction(r.bySymptom).
		WithParameterSchema(objectSchema([]string{"symptom"}, map[string]sdomain.Property{
			"symptom": stringProp("Symptom text, matched anywhere in a medicine's symptom list"),
		})).
		WithCategory("medicines").
		WithTags([]string{"medicine", "inventory"}).
		WithBehavior(true, false, false, "fast").
		Build()
}

func (r *Registry) bySymptom(ctx context.Context, p SymptomParams) (string, error) {
	medicines, err := r.medicines.FindBySymptom(ctx, p.Symptom)
	if err != nil {
		return r.medicineReply(GetMedicinesBySymptom, err, "the symptom"), nil
	}
	if len(medicines) == 0 {
		return fmt.Sprintf("No medicines found for symptom '%s'.", p.Symptom), nil
	}
	return toJSON(medicines)
}

func (r *Registry) inquiryTool() domain.Tool {
	return tools.NewToolBuilder(RecordMedicineInquiry, "Records that a patient asked about a medicine and how much they need.").
		WithFunction(r.recordInquiry).
		WithParameterSchema(objectSchema(
			[]string{"patient_email", "medicine_name", "quantity_needed"},
			map[string]sdomain.Property{
				"patient_email":   stringProp("Email of the patient"),
				"medicine_name":   stringProp("Name of the medicine"),
				"quantity_needed": intProp("Number of units the patient needs"),
			},
		)).
		WithConstraints([]string{"A repeated inquiry for the same medicine updates the earlier one."}).
		WithCategory("medicines").
		WithTags([]string{"medicine", "patient"}).
		WithBehavior(false, false, false, "medium").
		Build()
}

func (r *Registry) recordInquiry(ctx context.Context, p InquiryParams) (string, error) {
	inquiry, err := r.medicines.RecordInquiry(ctx, &model.MedicineOrder{
		PatientEmail: p.PatientEmail,
		MedicineName: p.MedicineName,
		Quantity:     p.QuantityNeeded,
	})
	if err != nil {
		return r.medicineReply(RecordMedicineInquiry, err, "the patient email, medicine name and quantity"), nil
	}
	return fmt.Sprintf("✅ Recorded inquiry for %d x %s.", inquiry.QuantityNeeded, inquiry.Name), nil
}
