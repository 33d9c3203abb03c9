package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	bookingerrors "medbook/internal/booking/errors"
	doctorserrors "medbook/internal/doctors/errors"
	"medbook/pkg/config"
	"medbook/pkg/logger"
	"medbook/pkg/model"
	"medbook/pkg/slot"
)

var fixedNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type memDoctors struct {
	doctors []*model.Doctor
	saves   int
	saveErr error
}

func clone(d *model.Doctor) *model.Doctor {
	c := *d
	c.AvailableSlots = append([]slot.Slot(nil), d.AvailableSlots...)
	c.Bookings = append([]model.Booking(nil), d.Bookings...)
	return &c
}

func (m *memDoctors) Load(ctx context.Context) []*model.Doctor {
	out := make([]*model.Doctor, 0, len(m.doctors))
	for _, d := range m.doctors {
		out = append(out, clone(d))
	}
	return out
}

func (m *memDoctors) FindByID(ctx context.Context, id string) (*model.Doctor, error) {
	for _, d := range m.doctors {
		if d.ID == id {
			return clone(d), nil
		}
	}
	return nil, doctorserrors.ErrNotFound
}

func (m *memDoctors) Save(ctx context.Context, doctors ...*model.Doctor) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, d := range doctors {
		for i, stored := range m.doctors {
			if stored.ID != d.ID {
				continue
			}
			if stored.Version != d.Version {
				return doctorserrors.ErrVersionConflict
			}
			d.Version++
			m.doctors[i] = clone(d)
			m.saves++
		}
	}
	return nil
}

func (m *memDoctors) get(id string) *model.Doctor {
	d, _ := m.FindByID(context.Background(), id)
	return d
}

type memAppointments struct {
	created []*model.Appointment
	err     error
}

func (m *memAppointments) Create(ctx context.Context, a *model.Appointment) error {
	if m.err != nil {
		return m.err
	}
	a.ID = "665f1f77bcf86cd799439011"
	m.created = append(m.created, a)
	return nil
}

type mockLocker struct{ err error }

func (m *mockLocker) WithLock(ctx context.Context, doctorID string, fn func() error) error {
	if m.err != nil {
		return m.err
	}
	return fn()
}

type mockCache struct{ invalidations int }

func (m *mockCache) Invalidate(ctx context.Context) error {
	m.invalidations++
	return nil
}

type mockPublisher struct {
	booked  int
	reasons []string
}

func (m *mockPublisher) AppointmentBooked(context.Context, *model.Appointment) error {
	m.booked++
	return nil
}

func (m *mockPublisher) AppointmentStatusChanged(context.Context, *model.Appointment) error {
	return nil
}

func (m *mockPublisher) AvailabilityChanged(ctx context.Context, d *model.Doctor, reason string) error {
	m.reasons = append(m.reasons, reason)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type fixture struct {
	engine       *Engine
	doctors      *memDoctors
	appointments *memAppointments
	locker       *mockLocker
	cache        *mockCache
	publisher    *mockPublisher
}

func newFixture(doctors ...*model.Doctor) *fixture {
	f := &fixture{
		doctors:      &memDoctors{doctors: doctors},
		appointments: &memAppointments{},
		locker:       &mockLocker{},
		cache:        &mockCache{},
		publisher:    &mockPublisher{},
	}
	f.engine = New(
		f.doctors,
		f.appointments,
		f.locker,
		f.cache,
		f.publisher,
		slot.NewCodec(time.UTC, func() time.Time { return fixedNow }),
		logger.New(logger.Config{Level: "error", Service: "test"}),
	)
	f.engine.now = func() time.Time { return fixedNow }
	return f
}

func ashaRao(slots ...string) *model.Doctor {
	d := &model.Doctor{ID: "doc-asha", Name: "Dr. Asha Rao", Specialization: "Cardiologist"}
	for _, s := range slots {
		d.AvailableSlots = append(d.AvailableSlots, slot.Parse(s))
	}
	return d
}

func TestBook_DisplayRequestAgainstSystemSlot(t *testing.T) {
	f := newFixture(ashaRao("2025-06-01-09:00"))

	res, err := f.engine.Book(context.Background(), Request{
		PatientName: "John",
		TimeText:    "2025-06-01 at 09:00",
		DoctorName:  "Asha Rao",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.doctors.get("doc-asha")
	if len(stored.AvailableSlots) != 0 {
		t.Errorf("available_slots = %v, want empty", stored.AvailableSlots)
	}
	want := []model.Booking{{PatientName: "John", Time: "09:00", Date: "2025-06-01"}}
	if !reflect.DeepEqual(stored.Bookings, want) {
		t.Errorf("bookings = %+v, want %+v", stored.Bookings, want)
	}
	if stored.Version != 1 {
		t.Errorf("version = %d, want 1", stored.Version)
	}

	if len(f.appointments.created) != 1 {
		t.Fatalf("expected one appointment entry, got %d", len(f.appointments.created))
	}
	appt := f.appointments.created[0]
	if appt.Status != config.Upcoming || appt.PatientID != config.UnknownPatientID {
		t.Errorf("appointment status/patient id = %q/%q", appt.Status, appt.PatientID)
	}
	if appt.DoctorName != "Dr. Asha Rao" || appt.Time != "09:00" || appt.Date != "2025-06-01" {
		t.Errorf("appointment snapshot = %+v", appt)
	}
	if appt.FormattedDate == nil || appt.FormattedDate.Day != 1 || appt.FormattedDate.Month != 6 || appt.FormattedDate.ISO != "2025-06-01" {
		t.Errorf("formatted date = %+v", appt.FormattedDate)
	}
	if !appt.CreatedAt.Equal(fixedNow) {
		t.Errorf("created_at = %v, want %v", appt.CreatedAt, fixedNow)
	}

	if res.Appointment.ID == "" || res.Slot.String() != "2025-06-01-09:00" {
		t.Errorf("result = %+v", res)
	}
	if f.cache.invalidations != 1 || f.publisher.booked != 1 {
		t.Errorf("after-commit hooks: invalidations=%d booked=%d", f.cache.invalidations, f.publisher.booked)
	}
	if !reflect.DeepEqual(f.publisher.reasons, []string{"booked"}) {
		t.Errorf("availability reasons = %v", f.publisher.reasons)
	}
}

func TestBook_SlotNotAvailableLeavesDoctorUnchanged(t *testing.T) {
	f := newFixture(ashaRao("2025-06-01-09:00"))

	_, err := f.engine.Book(context.Background(), Request{
		PatientName: "John",
		TimeText:    "2025-06-01 at 10:00",
		DoctorName:  "Asha Rao",
	})

	var slotErr *bookingerrors.SlotNotAvailableError
	if !errors.As(err, &slotErr) {
		t.Fatalf("expected SlotNotAvailableError, got %v", err)
	}
	if !errors.Is(err, bookingerrors.ErrSlotNotAvailable) {
		t.Errorf("error should match ErrSlotNotAvailable")
	}
	if !reflect.DeepEqual(slotErr.Available, []string{"2025-06-01 at 09:00"}) {
		t.Errorf("available = %v", slotErr.Available)
	}
	if slotErr.TimeText != "2025-06-01 at 10:00" {
		t.Errorf("time text = %q", slotErr.TimeText)
	}

	stored := f.doctors.get("doc-asha")
	if len(stored.AvailableSlots) != 1 || len(stored.Bookings) != 0 || f.doctors.saves != 0 {
		t.Errorf("doctor modified: %+v (saves=%d)", stored, f.doctors.saves)
	}
	if len(f.appointments.created) != 0 {
		t.Errorf("no appointment entry expected")
	}
}

func TestBook_DoctorNamePrefixIsIgnored(t *testing.T) {
	tests := []struct {
		name      string
		stored    string
		requested string
	}{
		{"exact", "Dr. Asha Rao", "Dr. Asha Rao"},
		{"prefix added to request", "Dr. Asha Rao", "Asha Rao"},
		{"bare stored, bare request", "Asha Rao", "Asha Rao"},
		{"bare stored, titled request", "Asha Rao", "Dr. Asha Rao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ashaRao("2025-06-01-09:00")
			d.Name = tt.stored
			f := newFixture(d)

			_, err := f.engine.Book(context.Background(), Request{
				PatientName: "John",
				TimeText:    "2025-06-01-09:00",
				DoctorName:  tt.requested,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			stored := f.doctors.get("doc-asha")
			if len(stored.AvailableSlots) != 0 || len(stored.Bookings) != 1 {
				t.Errorf("slot not moved to bookings: %+v", stored)
			}
		})
	}
}

func TestBook_FirstDoctorInLoadOrderWins(t *testing.T) {
	first := ashaRao("2025-06-01-09:00")
	second := ashaRao("2025-06-01-09:00")
	second.ID = "doc-asha-2"
	f := newFixture(first, second)

	res, err := f.engine.Book(context.Background(), Request{PatientName: "John", TimeText: "2025-06-01-09:00", DoctorName: "Asha Rao"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Doctor.ID != "doc-asha" {
		t.Errorf("booked %s, want doc-asha", res.Doctor.ID)
	}
	if len(f.doctors.get("doc-asha-2").AvailableSlots) != 1 {
		t.Errorf("second doctor must be untouched")
	}
}

func TestBook_LegacyRequestKeepsLiteralTime(t *testing.T) {
	f := newFixture(ashaRao("09:00", "10:00"))

	res, err := f.engine.Book(context.Background(), Request{PatientName: "Mary", TimeText: "10:00", DoctorName: "Asha Rao"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Booking != (model.Booking{PatientName: "Mary", Time: "10:00"}) {
		t.Errorf("booking = %+v", res.Booking)
	}
	if res.Appointment.FormattedDate != nil || res.Appointment.Date != "" {
		t.Errorf("legacy appointment must carry no date: %+v", res.Appointment)
	}
	if got := f.doctors.get("doc-asha").AvailableSlots; len(got) != 1 || got[0].String() != "09:00" {
		t.Errorf("remaining slots = %v", got)
	}
}

func TestBook_FormatInvariance(t *testing.T) {
	stored := []string{"2025-06-01-09:00", "2025-06-01 at 09:00", "09:00"}
	requests := []string{"2025-06-01-09:00", "2025-06-01 at 09:00", "09:00"}
	for _, s := range stored {
		for _, r := range requests {
			t.Run(s+" vs "+r, func(t *testing.T) {
				f := newFixture(ashaRao(s))
				if _, err := f.engine.Book(context.Background(), Request{PatientName: "John", TimeText: r, DoctorName: "Asha Rao"}); err != nil {
					t.Errorf("stored %q should match request %q: %v", s, r, err)
				}
			})
		}
	}

	t.Run("timestamp slot", func(t *testing.T) {
		d := ashaRao()
		d.AvailableSlots = []slot.Slot{slot.FromTime(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))}
		f := newFixture(d)
		if _, err := f.engine.Book(context.Background(), Request{PatientName: "John", TimeText: "2025-06-01 at 09:00", DoctorName: "Asha Rao"}); err != nil {
			t.Errorf("timestamp slot should match: %v", err)
		}
	})
}

func TestBook_MalformedSlotsAreSkippedAndCounted(t *testing.T) {
	f := newFixture(ashaRao("garbage", "2025-13-45-99:99", "2025-06-01-09:00"))

	res, err := f.engine.Book(context.Background(), Request{PatientName: "John", TimeText: "2025-06-01 at 09:00", DoctorName: "Asha Rao"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SkippedSlots != 2 {
		t.Errorf("skipped = %d, want 2", res.SkippedSlots)
	}
	if got := f.engine.Stats().SkippedSlots; got != 2 {
		t.Errorf("stats skipped = %d, want 2", got)
	}
	if left := f.doctors.get("doc-asha").AvailableSlots; len(left) != 2 {
		t.Errorf("malformed entries must stay in place: %v", left)
	}
}

func TestBook_CountConservation(t *testing.T) {
	slots := []string{"2025-06-01-09:00", "2025-06-01-10:00", "2025-06-02 at 11:00", "14:00"}
	for _, s := range slots {
		t.Run(s, func(t *testing.T) {
			f := newFixture(ashaRao(slots...))
			before := f.doctors.get("doc-asha")
			total := len(before.AvailableSlots) + len(before.Bookings)

			if _, err := f.engine.Book(context.Background(), Request{PatientName: "P", TimeText: s, DoctorName: "Asha Rao"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			after := f.doctors.get("doc-asha")
			if got := len(after.AvailableSlots) + len(after.Bookings); got != total {
				t.Errorf("available+booked = %d, want %d", got, total)
			}
			for _, left := range after.AvailableSlots {
				if left.String() == s {
					t.Errorf("booked slot %q still available", s)
				}
			}
		})
	}
}

func TestBook_Failures(t *testing.T) {
	tests := []struct {
		name    string
		doctors []*model.Doctor
		req     Request
		setup   func(f *fixture)
		wantErr error
	}{
		{
			name:    "missing patient",
			doctors: []*model.Doctor{ashaRao("2025-06-01-09:00")},
			req:     Request{TimeText: "2025-06-01-09:00", DoctorName: "Asha Rao"},
			wantErr: bookingerrors.ErrInvalidRequest,
		},
		{
			name:    "unknown doctor",
			doctors: []*model.Doctor{ashaRao("2025-06-01-09:00")},
			req:     Request{PatientName: "John", TimeText: "2025-06-01-09:00", DoctorName: "Rajesh Kumar"},
			wantErr: bookingerrors.ErrDoctorNotFound,
		},
		{
			name:    "empty store",
			req:     Request{PatientName: "John", TimeText: "2025-06-01-09:00", DoctorName: "Asha Rao"},
			wantErr: bookingerrors.ErrStoreUnavailable,
		},
		{
			name:    "specialization mismatch",
			doctors: []*model.Doctor{ashaRao("2025-06-01-09:00")},
			req:     Request{PatientName: "John", TimeText: "2025-06-01-09:00", DoctorName: "Asha Rao", Specialization: "Dermatologist"},
			wantErr: bookingerrors.ErrSpecializationMismatch,
		},
		{
			name:    "unparseable time",
			doctors: []*model.Doctor{ashaRao("2025-06-01-09:00")},
			req:     Request{PatientName: "John", TimeText: "tomorrow-ish", DoctorName: "Asha Rao"},
			wantErr: bookingerrors.ErrSlotNotAvailable,
		},
		{
			name:    "lock held elsewhere",
			doctors: []*model.Doctor{ashaRao("2025-06-01-09:00")},
			req:     Request{PatientName: "John", TimeText: "2025-06-01-09:00", DoctorName: "Asha Rao"},
			setup:   func(f *fixture) { f.locker.err = doctorserrors.ErrLocked },
			wantErr: bookingerrors.ErrConflict,
		},
		{
			name:    "store write fails",
			doctors: []*model.Doctor{ashaRao("2025-06-01-09:00")},
			req:     Request{PatientName: "John", TimeText: "2025-06-01-09:00", DoctorName: "Asha Rao"},
			setup:   func(f *fixture) { f.doctors.saveErr = errors.New("connection reset") },
			wantErr: bookingerrors.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.doctors...)
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.engine.Book(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if len(f.appointments.created) != 0 {
				t.Errorf("no appointment entry expected on failure")
			}
			stats := f.engine.Stats()
			if stats.Attempts != 1 || stats.Failed != 1 || stats.Committed != 0 {
				t.Errorf("stats = %+v", stats)
			}
		})
	}
}

func TestBook_SpecializationMatchIsCaseInsensitive(t *testing.T) {
	f := newFixture(ashaRao("2025-06-01-09:00"))
	_, err := f.engine.Book(context.Background(), Request{
		PatientName:    "John",
		TimeText:       "2025-06-01-09:00",
		DoctorName:     "Asha Rao",
		Specialization: "cardiologist",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBook_PartialCommit(t *testing.T) {
	f := newFixture(ashaRao("2025-06-01-09:00"))
	f.appointments.err = errors.New("insert failed")

	_, err := f.engine.Book(context.Background(), Request{PatientName: "John", TimeText: "2025-06-01-09:00", DoctorName: "Asha Rao"})
	if !errors.Is(err, bookingerrors.ErrPartialCommit) {
		t.Fatalf("expected ErrPartialCommit, got %v", err)
	}
	stored := f.doctors.get("doc-asha")
	if len(stored.AvailableSlots) != 0 || len(stored.Bookings) != 1 {
		t.Errorf("primary save should already have happened: %+v", stored)
	}
	if f.publisher.booked != 0 {
		t.Errorf("no booked event on partial commit")
	}
}

func TestBook_ConflictIsCounted(t *testing.T) {
	f := newFixture(ashaRao("2025-06-01-09:00"))
	f.doctors.saveErr = doctorserrors.ErrVersionConflict

	_, err := f.engine.Book(context.Background(), Request{PatientName: "John", TimeText: "2025-06-01-09:00", DoctorName: "Asha Rao"})
	if !errors.Is(err, bookingerrors.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if got := f.engine.Stats().Conflicts; got != 1 {
		t.Errorf("conflicts = %d, want 1", got)
	}
}

func TestBook_SecondBookingOfSameSlotFails(t *testing.T) {
	f := newFixture(ashaRao("2025-06-01-09:00"))
	req := Request{PatientName: "John", TimeText: "2025-06-01-09:00", DoctorName: "Asha Rao"}

	if _, err := f.engine.Book(context.Background(), req); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	req.PatientName = "Jane"
	if _, err := f.engine.Book(context.Background(), req); !errors.Is(err, bookingerrors.ErrSlotNotAvailable) {
		t.Fatalf("second booking error = %v, want slot not available", err)
	}
	if got := len(f.doctors.get("doc-asha").Bookings); got != 1 {
		t.Errorf("bookings = %d, want 1", got)
	}
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	var ran []string
	steps := []Step{
		NewStep("one", DoctorResolved, func(ctx context.Context, a *Attempt) error { ran = append(ran, "one"); return nil }),
		NewStep("two", SlotResolved, func(ctx context.Context, a *Attempt) error { ran = append(ran, "two"); return boom }),
		NewStep("three", Committed, func(ctx context.Context, a *Attempt) error { ran = append(ran, "three"); return nil }),
	}

	a := &Attempt{}
	err := run(context.Background(), a, steps)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v", err)
	}
	if a.State != Failed || a.FailedStep != "two" {
		t.Errorf("state = %s, failed step = %q", a.State, a.FailedStep)
	}
	if !reflect.DeepEqual(ran, []string{"one", "two"}) {
		t.Errorf("ran = %v", ran)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &Attempt{}
	err := run(ctx, a, []Step{NewStep("one", DoctorResolved, func(context.Context, *Attempt) error { return nil })})
	if !errors.Is(err, context.Canceled) || a.State != Failed {
		t.Errorf("err = %v, state = %s", err, a.State)
	}
}
