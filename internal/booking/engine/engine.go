package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	bookingerrors "medbook/internal/booking/errors"
	doctorserrors "medbook/internal/doctors/errors"
	"medbook/internal/events"
	"medbook/pkg/config"
	"medbook/pkg/logger"
	"medbook/pkg/model"
	"medbook/pkg/sanitizer"
	"medbook/pkg/slot"
)

// DoctorStore is the part of the availability store the engine needs.
type DoctorStore interface {
	Load(ctx context.Context) []*model.Doctor
	FindByID(ctx context.Context, id string) (*model.Doctor, error)
	Save(ctx context.Context, doctors ...*model.Doctor) error
}

type AppointmentStore interface {
	Create(ctx context.Context, appointment *model.Appointment) error
}

type Locker interface {
	WithLock(ctx context.Context, doctorID string, fn func() error) error
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type Engine struct {
	doctors      DoctorStore
	appointments AppointmentStore
	locker       Locker
	cache        CacheInvalidator
	publisher    events.Publisher
	codec        *slot.Codec
	log          *logger.Logger
	now          func() time.Time
	steps        []Step
	stats        counters
}

func New(
	doctors DoctorStore,
	appointments AppointmentStore,
	locker Locker,
	cache CacheInvalidator,
	publisher events.Publisher,
	codec *slot.Codec,
	log *logger.Logger,
) *Engine {
	e := &Engine{
		doctors:      doctors,
		appointments: appointments,
		locker:       locker,
		cache:        cache,
		publisher:    publisher,
		codec:        codec,
		log:          log,
		now:          time.Now,
	}
	e.steps = []Step{
		NewStep("resolve_doctor", DoctorResolved, e.resolveDoctor),
		NewStep("resolve_slot", SlotResolved, e.resolveSlot),
		NewStep("commit", Committed, e.commit),
	}
	return e
}

// Book moves the requested slot from the doctor's availability into a
// booking and records a durable appointment entry.
func (e *Engine) Book(ctx context.Context, req Request) (*Result, error) {
	e.stats.attempts.Add(1)

	req.PatientName = sanitizer.SanitizePersonName(req.PatientName)
	req.TimeText = sanitizer.SanitizeSlotText(req.TimeText)
	req.DoctorName = sanitizer.SanitizePersonName(req.DoctorName)
	req.Specialization = sanitizer.NormalizeSpecialization(req.Specialization)

	a := &Attempt{Request: req, State: Start}
	if err := validateRequest(req); err != nil {
		a.State, a.FailedStep = Failed, "validate"
		e.fail(a, err)
		return nil, err
	}

	if err := run(ctx, a, e.steps); err != nil {
		e.fail(a, err)
		return nil, err
	}

	e.stats.committed.Add(1)
	e.log.Info("Appointment booked",
		"doctor_id", a.doctor.ID,
		"doctor_name", a.doctor.Name,
		"patient_name", req.PatientName,
		"time", req.TimeText,
		"appointment_id", a.appointed.ID,
	)
	return &Result{
		Doctor:       a.doctor,
		Slot:         a.matched,
		Booking:      a.booking,
		Appointment:  a.appointed,
		SkippedSlots: a.skipped,
	}, nil
}

func validateRequest(req Request) error {
	var missing []string
	if req.PatientName == "" {
		missing = append(missing, "patient_name")
	}
	if req.TimeText == "" {
		missing = append(missing, "time")
	}
	if req.DoctorName == "" {
		missing = append(missing, "doctor_name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", bookingerrors.ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

func (e *Engine) fail(a *Attempt, err error) {
	e.stats.failed.Add(1)
	if errors.Is(err, bookingerrors.ErrConflict) {
		e.stats.conflicts.Add(1)
	}

	attrs := []any{
		"patient_name", a.Request.PatientName,
		"doctor_name", a.Request.DoctorName,
		"time", a.Request.TimeText,
		"failed_step", a.FailedStep,
		"error", err,
	}
	switch {
	case errors.Is(err, bookingerrors.ErrStoreUnavailable), errors.Is(err, bookingerrors.ErrPartialCommit):
		e.log.Error("Booking failed", attrs...)
	default:
		e.log.Warn("Booking failed", attrs...)
	}
}

// resolveDoctor picks the first loaded doctor, in load order, whose name
// equals the request once a leading "Dr. " is ignored on either side.
func (e *Engine) resolveDoctor(ctx context.Context, a *Attempt) error {
	doctors := e.doctors.Load(ctx)
	if len(doctors) == 0 {
		return bookingerrors.ErrStoreUnavailable
	}

	want := a.Request.DoctorName
	for _, doctor := range doctors {
		if nameMatches(doctor.Name, want) {
			a.doctor = doctor
			return nil
		}
	}
	return fmt.Errorf("%w: %q", bookingerrors.ErrDoctorNotFound, want)
}

func nameMatches(stored, requested string) bool {
	if stored == requested ||
		stored == config.DoctorTitlePrefix+requested ||
		strings.TrimPrefix(stored, config.DoctorTitlePrefix) == requested {
		return true
	}
	// "Dr. X" requested against a stored bare "X"
	bare, titled := strings.CutPrefix(requested, config.DoctorTitlePrefix)
	return titled && stored == bare
}

func (e *Engine) resolveSlot(ctx context.Context, a *Attempt) error {
	doctor := a.doctor
	if spec := a.Request.Specialization; spec != "" && !strings.EqualFold(spec, doctor.Specialization) {
		return fmt.Errorf("%w: %s is %q, not %q",
			bookingerrors.ErrSpecializationMismatch, doctor.Name, doctor.Specialization, spec)
	}

	req, err := e.codec.ParseRequest(a.Request.TimeText)
	if err != nil {
		e.log.Info("Unparseable requested time", "time", a.Request.TimeText, "error", err)
		return e.slotNotAvailable(a, doctor)
	}

	idx, skipped := e.codec.Find(doctor.AvailableSlots, req)
	e.recordSkipped(a, doctor, skipped)
	if idx < 0 {
		return e.slotNotAvailable(a, doctor)
	}

	clock, date := req.BookingFields()
	a.slotReq = req
	a.matched = doctor.AvailableSlots[idx]
	a.booking = model.Booking{PatientName: a.Request.PatientName, Time: clock, Date: date}
	return nil
}

func (e *Engine) recordSkipped(a *Attempt, doctor *model.Doctor, skipped int) {
	if skipped == 0 {
		return
	}
	a.skipped += skipped
	e.stats.skippedSlots.Add(int64(skipped))
	e.log.Warn("Skipped malformed stored slots",
		"doctor_id", doctor.ID,
		"skipped_slots", skipped,
	)
}

func (e *Engine) slotNotAvailable(a *Attempt, doctor *model.Doctor) error {
	available := make([]string, 0, len(doctor.AvailableSlots))
	for _, s := range doctor.AvailableSlots {
		available = append(available, e.codec.Display(s))
	}
	return &bookingerrors.SlotNotAvailableError{
		DoctorName: doctor.Name,
		TimeText:   a.Request.TimeText,
		Available:  available,
	}
}

// commit re-reads the doctor under its lock so the slot is matched against
// current state, then saves with the version it read. The appointment entry
// is written only after that save succeeds.
func (e *Engine) commit(ctx context.Context, a *Attempt) error {
	err := e.locker.WithLock(ctx, a.doctor.ID, func() error {
		fresh, err := e.doctors.FindByID(ctx, a.doctor.ID)
		if err != nil {
			return err
		}

		idx, _ := e.codec.Find(fresh.AvailableSlots, a.slotReq)
		if idx < 0 {
			return e.slotNotAvailable(a, fresh)
		}

		a.matched = fresh.AvailableSlots[idx]
		fresh.AvailableSlots = append(fresh.AvailableSlots[:idx:idx], fresh.AvailableSlots[idx+1:]...)
		fresh.Bookings = append(fresh.Bookings, a.booking)
		if err := e.doctors.Save(ctx, fresh); err != nil {
			return err
		}
		a.doctor = fresh
		return nil
	})
	if err != nil {
		return classifyStoreError(err)
	}

	a.appointed = e.newAppointment(a)
	if err := e.appointments.Create(ctx, a.appointed); err != nil {
		return fmt.Errorf("%w: %w", bookingerrors.ErrPartialCommit, err)
	}

	e.afterCommit(ctx, a)
	return nil
}

func classifyStoreError(err error) error {
	switch {
	case errors.Is(err, bookingerrors.ErrSlotNotAvailable):
		return err
	case errors.Is(err, doctorserrors.ErrNotFound):
		return fmt.Errorf("%w: %w", bookingerrors.ErrDoctorNotFound, err)
	case errors.Is(err, doctorserrors.ErrVersionConflict), errors.Is(err, doctorserrors.ErrLocked):
		return fmt.Errorf("%w: %w", bookingerrors.ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", bookingerrors.ErrStoreUnavailable, err)
	}
}

func (e *Engine) newAppointment(a *Attempt) *model.Appointment {
	stamp := e.now().UTC().Truncate(time.Millisecond)
	return &model.Appointment{
		PatientName:   a.Request.PatientName,
		PatientID:     config.UnknownPatientID,
		DoctorID:      a.doctor.ID,
		DoctorName:    a.doctor.Name,
		DoctorEmail:   a.doctor.Email,
		LinkedUserID:  a.doctor.LinkedUserID,
		Time:          a.booking.Time,
		Date:          a.booking.Date,
		FormattedDate: formattedDate(a.booking.Date),
		Status:        config.Upcoming,
		CreatedAt:     stamp,
		LastUpdated:   stamp,
	}
}

func formattedDate(date string) *model.FormattedDate {
	if date == "" {
		return nil
	}
	t, err := time.Parse(slot.DateLayout, date)
	if err != nil {
		return nil
	}
	return &model.FormattedDate{
		Year:  t.Year(),
		Month: int(t.Month()),
		Day:   t.Day(),
		ISO:   t.Format(slot.DateLayout),
	}
}

// afterCommit is best effort; the booking is already durable.
func (e *Engine) afterCommit(ctx context.Context, a *Attempt) {
	if err := e.cache.Invalidate(ctx); err != nil {
		e.log.Warn("Failed to invalidate availability cache", "doctor_id", a.doctor.ID, "error", err)
	}
	if err := e.publisher.AppointmentBooked(ctx, a.appointed); err != nil {
		e.log.Warn("Failed to publish appointment booked", "doctor_id", a.doctor.ID, "error", err)
	}
	if err := e.publisher.AvailabilityChanged(ctx, a.doctor, events.ReasonBooked); err != nil {
		e.log.Warn("Failed to publish availability change", "doctor_id", a.doctor.ID, "error", err)
	}
}

type counters struct {
	attempts     atomic.Int64
	committed    atomic.Int64
	failed       atomic.Int64
	skippedSlots atomic.Int64
	conflicts    atomic.Int64
}

type Stats struct {
	Attempts     int64 `json:"attempts"`
	Committed    int64 `json:"committed"`
	Failed       int64 `json:"failed"`
	SkippedSlots int64 `json:"skipped_slots"`
	Conflicts    int64 `json:"conflicts"`
}

func (e *Engine) Stats() Stats {
	return Stats{
		Attempts:     e.stats.attempts.Load(),
		Committed:    e.stats.committed.Load(),
		Failed:       e.stats.failed.Load(),
		SkippedSlots: e.stats.skippedSlots.Load(),
		Conflicts:    e.stats.conflicts.Load(),
	}
}
