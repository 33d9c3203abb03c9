package errors

import "errors"

var (
	ErrMedicineNotFound = errors.New("medicine not found")

	ErrPatientNotFound = errors.New("patient not found")

	// ErrMedicationNotFound means the patient exists but was never
	// prescribed the named medication.
	ErrMedicationNotFound = errors.New("medication not found for patient")

	ErrInsufficientStock = errors.New("not enough stock")
)
