package model

import (
	"time"

	"medbook/pkg/config"
)

// Appointment is the append-only record written for every committed booking.
type Appointment struct {
	ID            string                   `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	PatientName   string                   `json:"patient_name" bson:"patient_name" validate:"required,min=1,max=100"`
	PatientID     string                   `json:"patient_id" bson:"patient_id"`
	DoctorID      string                   `json:"doctor_id" bson:"doctor_id" validate:"required"`
	DoctorName    string                   `json:"doctor_name" bson:"doctor_name" validate:"required"`
	DoctorEmail   string                   `json:"doctor_email,omitempty" bson:"doctor_email,omitempty"`
	LinkedUserID  string                   `json:"linked_user_id,omitempty" bson:"linked_user_id,omitempty"`
	Time          string                   `json:"time" bson:"time" validate:"required"`
	Date          string                   `json:"date,omitempty" bson:"date,omitempty"`
	FormattedDate *FormattedDate           `json:"formatted_date,omitempty" bson:"formatted_date,omitempty"`
	Status        config.AppointmentStatus `json:"status" bson:"status" validate:"required,oneof=upcoming completed cancelled"`
	CreatedAt     time.Time                `json:"created_at" bson:"created_at"`
	LastUpdated   time.Time                `json:"last_updated" bson:"last_updated"`
}

type FormattedDate struct {
	Year  int    `json:"year" bson:"year"`
	Month int    `json:"month" bson:"month"`
	Day   int    `json:"day" bson:"day"`
	ISO   string `json:"iso" bson:"iso"`
}

type AppointmentStatusUpdate struct {
	Status config.AppointmentStatus `json:"status" validate:"required,oneof=upcoming completed cancelled"`
}

type AppointmentFilter struct {
	DoctorID    string
	PatientName string
	Status      config.AppointmentStatus
}
