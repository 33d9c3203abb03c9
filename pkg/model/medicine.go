package model

// Medicine is one inventory entry. Quantity is the units in stock.
type Medicine struct {
	ID          string   `json:"id" bson:"_id"`
	Name        string   `json:"name" bson:"name"`
	GenericName string   `json:"generic_name,omitempty" bson:"generic_name,omitempty"`
	Category    string   `json:"category" bson:"category"`
	Description string   `json:"description,omitempty" bson:"description,omitempty"`
	Symptoms    []string `json:"symptoms,omitempty" bson:"symptoms,omitempty"`
	Quantity    int      `json:"quantity" bson:"quantity"`
	Price       float64  `json:"price" bson:"price"`
}

// Patient holds the medicine history of a patient account, keyed by email.
type Patient struct {
	ID                 string             `json:"id" bson:"_id"`
	Name               string             `json:"name" bson:"name"`
	Email              string             `json:"email" bson:"email"`
	Medications        []Medication       `json:"medications" bson:"medications,omitempty"`
	PurchasedMedicines []MedicinePurchase `json:"purchased_medicines" bson:"purchased_medicines,omitempty"`
	MedicineInquiries  []MedicineInquiry  `json:"medicine_inquiries" bson:"medicine_inquiries,omitempty"`
}

type Medication struct {
	Name                string `json:"name" bson:"name"`
	PrescriptionDetails string `json:"prescription_details" bson:"prescription_details"`
	PrescribedBy        string `json:"prescribed_by" bson:"prescribed_by"`
	DatePrescribed      string `json:"date_prescribed" bson:"date_prescribed"`
	Category            string `json:"category" bson:"category"`
	Active              bool   `json:"active" bson:"active"`
}

type MedicinePurchase struct {
	Name         string  `json:"name" bson:"name"`
	Quantity     int     `json:"quantity" bson:"quantity"`
	PricePerUnit float64 `json:"price_per_unit" bson:"price_per_unit"`
	TotalCost    float64 `json:"total_cost" bson:"total_cost"`
	PurchaseDate string  `json:"purchase_date" bson:"purchase_date"`
	Category     string  `json:"category" bson:"category"`
}

// MedicineInquiry records interest in a medicine without buying it. A
// patient has at most one inquiry per medicine; asking again updates it.
type MedicineInquiry struct {
	Name            string `json:"name" bson:"name"`
	QuantityNeeded  int    `json:"quantity_needed" bson:"quantity_needed"`
	InquiryDate     string `json:"inquiry_date" bson:"inquiry_date"`
	LastInquiryDate string `json:"last_inquiry_date" bson:"last_inquiry_date"`
	Category        string `json:"category" bson:"category"`
}

type MedicationCounter struct {
	InquiriesCount         int             `json:"inquiries_count"`
	InquiriesTotalQuantity int             `json:"inquiries_total_quantity"`
	PurchasedCount         int             `json:"purchased_count"`
	PurchasedTotalQuantity int             `json:"purchased_total_quantity"`
	TotalItems             int             `json:"total_items"`
	RecentInquiries        []RecentInquiry `json:"recent_inquiries"`
}

type RecentInquiry struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Date     string `json:"date"`
}

type Prescription struct {
	PatientEmail string `json:"patient_email" validate:"required,email"`
	MedicineName string `json:"medicine_name" validate:"required,max=100"`
	Details      string `json:"prescription_details" validate:"required,max=500"`
	DoctorName   string `json:"doctor_name" validate:"required,max=100"`
}

// MedicineOrder is a purchase or an inquiry for a quantity of one medicine.
type MedicineOrder struct {
	PatientEmail string `json:"patient_email" validate:"required,email"`
	MedicineName string `json:"medicine_name" validate:"required,max=100"`
	Quantity     int    `json:"quantity" validate:"min=1,max=1000"`
}
