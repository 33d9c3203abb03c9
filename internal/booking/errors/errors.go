package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest = errors.New("invalid booking request")

	ErrDoctorNotFound = errors.New("doctor not found")

	ErrSpecializationMismatch = errors.New("doctor specialization does not match")

	ErrSlotNotAvailable = errors.New("slot not available")

	// ErrConflict means another writer changed the doctor first. Retrying
	// the whole booking is safe.
	ErrConflict = errors.New("doctor record changed concurrently")

	ErrStoreUnavailable = errors.New("availability store unavailable")

	// ErrPartialCommit means the slot moved to bookings but the appointment
	// entry could not be written.
	ErrPartialCommit = errors.New("booking saved but appointment entry failed")
)

// SlotNotAvailableError carries the doctor's current availability so the
// caller can offer alternatives.
type SlotNotAvailableError struct {
	DoctorName string
	TimeText   string
	Available  []string
}

func (e *SlotNotAvailableError) Error() string {
	return fmt.Sprintf("slot %q not available for %s (available: %s)",
		e.TimeText, e.DoctorName, strings.Join(e.Available, ", "))
}

func (e *SlotNotAvailableError) Is(target error) bool {
	return target == ErrSlotNotAvailable
}
