package service

import (
	"context"
	"errors"

	"medbook/internal/doctors/cache"
	doctorserrors "medbook/internal/doctors/errors"
	"medbook/internal/doctors/repository"
	"medbook/internal/doctors/validator"
	"medbook/internal/events"
	"medbook/pkg/config"
	apperrors "medbook/pkg/errors"
	"medbook/pkg/model"
	"medbook/pkg/sanitizer"
	"medbook/pkg/slot"
)

type AvailabilityService interface {
	GetAvailability(ctx context.Context) ([]model.DoctorAvailability, error)
	GetByID(ctx context.Context, id string) (*model.Doctor, error)
	AddAvailability(ctx context.Context, doctorID string, add *model.AvailabilityAdd) (int, error)
	RemoveAvailability(ctx context.Context, doctorID string, slotText string) error
	DeleteBooking(ctx context.Context, doctorID string, removal *model.BookingRemoval) error
	SyncDoctor(ctx context.Context, doctorID string) (bool, error)
	SyncLinkedUsers(ctx context.Context) (*SyncReport, error)
	MigrateDoctorUsers(ctx context.Context) (*MigrationReport, error)
	SeedSampleDoctors(ctx context.Context) (int, error)
}

// Locker serializes read-modify-write cycles on one doctor.
type Locker interface {
	WithLock(ctx context.Context, doctorID string, fn func() error) error
}

type availabilityService struct {
	repo      repository.DoctorRepository
	users     repository.UserRepository
	locker    Locker
	cache     cache.AvailabilityCache
	publisher events.Publisher
	validator *validator.DoctorValidator
	codec     *slot.Codec
	cfg       *config.Config
}

func NewAvailabilityService(
	repo repository.DoctorRepository,
	users repository.UserRepository,
	locker Locker,
	availabilityCache cache.AvailabilityCache,
	publisher events.Publisher,
	validator *validator.DoctorValidator,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{
		repo:      repo,
		users:     users,
		locker:    locker,
		cache:     availabilityCache,
		publisher: publisher,
		validator: validator,
		codec:     cfg.SlotCodec(),
		cfg:       cfg,
	}
}

// GetAvailability returns every doctor with slots rendered for display.
// Legacy slots render against today's date, so the cached projection is
// scoped to the current day.
func (s *availabilityService) GetAvailability(ctx context.Context) ([]model.DoctorAvailability, error) {
	day := s.codec.Today()

	cached, hit, err := s.cache.Get(ctx, day)
	if err != nil {
		s.cfg.Log.Warn("Availability cache read failed", "day", day, "error", err)
	}
	if hit {
		return cached, nil
	}

	doctors := s.repo.Load(ctx)
	if len(doctors) == 0 {
		// Load reports a failed read as empty; tell it apart from no doctors
		if n, err := s.repo.Count(ctx); err != nil || n > 0 {
			s.cfg.Log.Error("Doctor availability could not be read", "day", day, "count_error", err)
			return nil, apperrors.Unavailable("Doctor store", doctorserrors.ErrStoreUnavailable)
		}
	}
	list := make([]model.DoctorAvailability, 0, len(doctors))
	for _, doctor := range doctors {
		list = append(list, s.project(doctor))
	}

	if len(list) > 0 {
		if err := s.cache.Set(ctx, day, list); err != nil {
			s.cfg.Log.Warn("Availability cache write failed", "day", day, "error", err)
		}
	}
	return list, nil
}

func (s *availabilityService) project(doctor *model.Doctor) model.DoctorAvailability {
	slots := make([]string, 0, len(doctor.AvailableSlots))
	for _, sl := range doctor.AvailableSlots {
		slots = append(slots, s.codec.Display(sl))
	}
	return model.DoctorAvailability{
		ID:             doctor.ID,
		Name:           doctor.Name,
		Specialization: doctor.Specialization,
		Email:          doctor.Email,
		AvailableSlots: slots,
	}
}

func (s *availabilityService) GetByID(ctx context.Context, id string) (*model.Doctor, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	doctor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id, "Failed to retrieve doctor")
	}
	return doctor, nil
}

// AddAvailability appends system-format slots for one date. Slots already
// present in any stored format, and repeats within the request, are
// skipped. Returns how many slots were actually added; zero is not an error.
func (s *availabilityService) AddAvailability(ctx context.Context, doctorID string, add *model.AvailabilityAdd) (int, error) {
	if doctorID == "" {
		return 0, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	add.Date = sanitizer.SanitizeSlotText(add.Date)
	add.TimeSlots = sanitizer.NormalizeClocks(add.TimeSlots)
	if err := s.validator.ValidateAvailabilityAdd(add); err != nil {
		s.cfg.Log.Warn("Availability validation failed", "doctor_id", doctorID, "error", err)
		return 0, apperrors.Validation("Invalid availability input", map[string]any{"error": err.Error()})
	}

	added := 0
	var saved *model.Doctor
	err := s.locker.WithLock(ctx, doctorID, func() error {
		doctor, err := s.repo.FindByID(ctx, doctorID)
		if err != nil {
			return err
		}

		seen := make(map[string]struct{}, len(doctor.AvailableSlots)+len(add.TimeSlots))
		for _, existing := range doctor.AvailableSlots {
			seen[s.codec.Key(existing)] = struct{}{}
		}

		for _, clock := range add.TimeSlots {
			candidate, err := slot.NewSystem(add.Date, clock)
			if err != nil {
				return err
			}
			key := s.codec.Key(candidate)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			doctor.AvailableSlots = append(doctor.AvailableSlots, candidate)
			added++
		}

		if added == 0 {
			return nil
		}
		if err := s.repo.Save(ctx, doctor); err != nil {
			return err
		}
		saved = doctor
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to add availability", "doctor_id", doctorID, "error", err)
		return 0, s.translate(err, doctorID, "Failed to add availability")
	}

	if saved != nil {
		s.afterChange(ctx, saved, events.ReasonSlotsAdded)
	}
	s.cfg.Log.Info("Availability added",
		"doctor_id", doctorID,
		"date", add.Date,
		"requested", len(add.TimeSlots),
		"added", added,
	)
	return added, nil
}

// RemoveAvailability deletes the stored slot equal to slotText. Only the
// system form is accepted and the comparison is exact.
func (s *availabilityService) RemoveAvailability(ctx context.Context, doctorID string, slotText string) error {
	if doctorID == "" {
		return apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	slotText = sanitizer.SanitizeSlotText(slotText)
	if err := s.validator.ValidateSystemSlot(slotText); err != nil {
		return apperrors.Validation("Invalid slot", map[string]any{"error": err.Error()})
	}

	var saved *model.Doctor
	err := s.locker.WithLock(ctx, doctorID, func() error {
		doctor, err := s.repo.FindByID(ctx, doctorID)
		if err != nil {
			return err
		}

		idx := -1
		for i, sl := range doctor.AvailableSlots {
			if sl.String() == slotText {
				idx = i
				break
			}
		}
		if idx < 0 {
			return doctorserrors.ErrSlotNotFound
		}

		doctor.AvailableSlots = append(doctor.AvailableSlots[:idx:idx], doctor.AvailableSlots[idx+1:]...)
		if err := s.repo.Save(ctx, doctor); err != nil {
			return err
		}
		saved = doctor
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to remove availability", "doctor_id", doctorID, "slot", slotText, "error", err)
		return s.translate(err, doctorID, "Failed to remove availability")
	}

	s.afterChange(ctx, saved, events.ReasonSlotRemoved)
	s.cfg.Log.Info("Availability removed", "doctor_id", doctorID, "slot", slotText)
	return nil
}

// DeleteBooking drops the first booking for the patient at the given time.
// The freed time is not returned to availability.
func (s *availabilityService) DeleteBooking(ctx context.Context, doctorID string, removal *model.BookingRemoval) error {
	if doctorID == "" {
		return apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	removal.PatientName = sanitizer.SanitizePersonName(removal.PatientName)
	removal.Time = sanitizer.SanitizeSlotText(removal.Time)
	if err := s.validator.ValidateBookingRemoval(removal); err != nil {
		return apperrors.Validation("Invalid booking removal", map[string]any{"error": err.Error()})
	}

	var saved *model.Doctor
	err := s.locker.WithLock(ctx, doctorID, func() error {
		doctor, err := s.repo.FindByID(ctx, doctorID)
		if err != nil {
			return err
		}

		idx := -1
		for i, b := range doctor.Bookings {
			if b.PatientName == removal.PatientName && b.Time == removal.Time {
				idx = i
				break
			}
		}
		if idx < 0 {
			return doctorserrors.ErrBookingNotFound
		}

		doctor.Bookings = append(doctor.Bookings[:idx:idx], doctor.Bookings[idx+1:]...)
		if err := s.repo.Save(ctx, doctor); err != nil {
			return err
		}
		saved = doctor
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to delete booking",
			"doctor_id", doctorID,
			"patient_name", removal.PatientName,
			"time", removal.Time,
			"error", err,
		)
		return s.translate(err, doctorID, "Failed to delete booking")
	}

	s.afterChange(ctx, saved, events.ReasonBookingDeleted)
	s.cfg.Log.Info("Booking deleted", "doctor_id", doctorID, "patient_name", removal.PatientName, "time", removal.Time)
	return nil
}

// afterChange drops the cached projection and announces the change. Both
// are best effort; the write has already succeeded.
func (s *availabilityService) afterChange(ctx context.Context, doctor *model.Doctor, reason string) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.cfg.Log.Warn("Failed to invalidate availability cache", "doctor_id", doctor.ID, "error", err)
	}
	if err := s.publisher.AvailabilityChanged(ctx, doctor, reason); err != nil {
		s.cfg.Log.Warn("Failed to publish availability change",
			"doctor_id", doctor.ID,
			"reason", reason,
			"error", err,
		)
	}
}

func (s *availabilityService) translate(err error, doctorID string, message string) error {
	if apperrors.IsAppError(err) {
		return err
	}
	switch {
	case errors.Is(err, doctorserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Doctor", doctorID)
	case errors.Is(err, doctorserrors.ErrSlotNotFound):
		return apperrors.NotFound("Slot")
	case errors.Is(err, doctorserrors.ErrBookingNotFound):
		return apperrors.NotFound("Booking")
	case errors.Is(err, doctorserrors.ErrVersionConflict), errors.Is(err, doctorserrors.ErrLocked):
		return apperrors.ConcurrentModification("Doctor", err)
	case errors.Is(err, doctorserrors.ErrAlreadyExists):
		return apperrors.Conflict("Doctor already exists")
	case errors.Is(err, slot.ErrMalformed):
		return apperrors.InvalidInput(err.Error())
	default:
		return apperrors.Internal(message, err)
	}
}
