package model

import (
	"time"

	"medbook/pkg/slot"
)

const UserTypeDoctor = "doctor"

// User is an account record. Doctor accounts may be linked from a doctors
// document and then mirror its slots and bookings.
type User struct {
	ID             string      `json:"id" bson:"_id"`
	Name           string      `json:"name" bson:"name"`
	FullName       string      `json:"full_name,omitempty" bson:"full_name,omitempty"`
	Email          string      `json:"email,omitempty" bson:"email,omitempty"`
	UserType       string      `json:"user_type" bson:"user_type"`
	Specialization string      `json:"specialization,omitempty" bson:"specialization,omitempty"`
	AvailableSlots []slot.Slot `json:"available_slots,omitempty" bson:"available_slots,omitempty"`
	Bookings       []Booking   `json:"bookings,omitempty" bson:"bookings,omitempty"`
	LastUpdated    time.Time   `json:"last_updated" bson:"last_updated"`
}

// DisplayName prefers the full name the way registration stores it.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Name
}
