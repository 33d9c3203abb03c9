package engine

import (
	"medbook/pkg/model"
	"medbook/pkg/slot"
)

type State int

const (
	Start State = iota
	DoctorResolved
	SlotResolved
	Committed
	Failed
)

func (s State) String() string {
	switch s {
	case Start:
		return "start"
	case DoctorResolved:
		return "doctor_resolved"
	case SlotResolved:
		return "slot_resolved"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request is one booking attempt as supplied by the caller. Specialization
// is optional.
type Request struct {
	PatientName    string `json:"patient_name"`
	TimeText       string `json:"time"`
	DoctorName     string `json:"doctor_name"`
	Specialization string `json:"specialization,omitempty"`
}

// Attempt is the state carried between steps. It lives for one call.
type Attempt struct {
	Request    Request
	State      State
	FailedStep string

	doctor    *model.Doctor
	slotReq   slot.Request
	matched   slot.Slot
	skipped   int
	booking   model.Booking
	appointed *model.Appointment
}

// Result describes a committed booking.
type Result struct {
	Doctor       *model.Doctor
	Slot         slot.Slot
	Booking      model.Booking
	Appointment  *model.Appointment
	SkippedSlots int
}
