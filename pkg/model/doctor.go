package model

import (
	"time"

	"medbook/pkg/slot"
)

type Doctor struct {
	ID             string      `json:"id" bson:"_id"`
	Name           string      `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Email          string      `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	Specialization string      `json:"specialization" bson:"specialization" validate:"required,min=2,max=100"`
	AvailableSlots []slot.Slot `json:"available_slots" bson:"available_slots"`
	Bookings       []Booking   `json:"bookings" bson:"bookings"`
	LinkedUserID   string      `json:"linked_user_id,omitempty" bson:"linked_user_id,omitempty"`
	Version        int64       `json:"version" bson:"version"`
	LastUpdated    time.Time   `json:"last_updated" bson:"last_updated"`
}

// Booking pairs a patient with a time taken out of a doctor's availability.
// Date is empty for bookings made against a bare "HH:MM" request.
type Booking struct {
	PatientName string `json:"patient_name" bson:"patient_name"`
	Time        string `json:"time" bson:"time"`
	Date        string `json:"date,omitempty" bson:"date,omitempty"`
}

func (b Booking) Same(o Booking) bool {
	return b.PatientName == o.PatientName && b.Time == o.Time && b.Date == o.Date
}

// DoctorAvailability is the read-only projection handed to end users.
type DoctorAvailability struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Specialization string   `json:"specialization"`
	Email          string   `json:"email"`
	AvailableSlots []string `json:"available_slots"`
}

type AvailabilityAdd struct {
	Date      string   `json:"date" validate:"required,slot_date"`
	TimeSlots []string `json:"time_slots" validate:"required,min=1,max=96,dive,slot_clock"`
}

type BookingRemoval struct {
	PatientName string `json:"patient_name" validate:"required,min=1,max=100"`
	Time        string `json:"time" validate:"required"`
}
