package errors

import "errors"

var (
	ErrNotFound = errors.New("doctor not found")

	ErrAlreadyExists = errors.New("doctor already exists")

	ErrVersionConflict = errors.New("doctor record was modified concurrently")

	ErrLinkedUserNotFound = errors.New("linked user not found")

	ErrSlotNotFound = errors.New("slot not found in doctor availability")

	ErrBookingNotFound = errors.New("booking not found")

	ErrLocked = errors.New("doctor record is locked by another operation")

	ErrStoreUnavailable = errors.New("doctor store unavailable")
)
