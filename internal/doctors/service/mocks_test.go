package service

import (
	"context"
	"fmt"
	"time"

	doctorserrors "medbook/internal/doctors/errors"
	"medbook/internal/doctors/validator"
	"medbook/pkg/config"
	mongotx "medbook/pkg/db/mongo"
	"medbook/pkg/logger"
	"medbook/pkg/model"
	"medbook/pkg/slot"

	"go.mongodb.org/mongo-driver/mongo"
)

var fixedNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// memDoctorRepo keeps doctors in memory and enforces the same version
// check as the Mongo adapter.
type memDoctorRepo struct {
	doctors map[string]*model.Doctor
	order   []string
	users   *memUserRepo

	saveErr    error
	countErr   error
	loadFails  bool
	saves      int
	txCalls    int
	loads      int
	upsertFunc func(ctx context.Context, user *model.User) (bool, error)
}

func newMemDoctorRepo(doctors ...*model.Doctor) *memDoctorRepo {
	m := &memDoctorRepo{doctors: map[string]*model.Doctor{}}
	for _, d := range doctors {
		m.doctors[d.ID] = cloneDoctor(d)
		m.order = append(m.order, d.ID)
	}
	return m
}

func cloneDoctor(d *model.Doctor) *model.Doctor {
	c := *d
	c.AvailableSlots = append([]slot.Slot(nil), d.AvailableSlots...)
	c.Bookings = append([]model.Booking(nil), d.Bookings...)
	return &c
}

func (m *memDoctorRepo) Load(ctx context.Context) []*model.Doctor {
	m.loads++
	if m.loadFails {
		return []*model.Doctor{}
	}
	out := make([]*model.Doctor, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneDoctor(m.doctors[id]))
	}
	return out
}

func (m *memDoctorRepo) FindByID(ctx context.Context, id string) (*model.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, doctorserrors.ErrNotFound
	}
	return cloneDoctor(d), nil
}

func (m *memDoctorRepo) FindByLinkedUser(ctx context.Context, userID string) (*model.Doctor, error) {
	for _, id := range m.order {
		if m.doctors[id].LinkedUserID == userID {
			return cloneDoctor(m.doctors[id]), nil
		}
	}
	return nil, doctorserrors.ErrNotFound
}

func (m *memDoctorRepo) Save(ctx context.Context, doctors ...*model.Doctor) error {
	for _, d := range doctors {
		if m.saveErr != nil {
			return m.saveErr
		}
		stored, ok := m.doctors[d.ID]
		if !ok {
			return doctorserrors.ErrNotFound
		}
		if stored.Version != d.Version {
			return doctorserrors.ErrVersionConflict
		}
		d.Version++
		d.LastUpdated = fixedNow
		m.doctors[d.ID] = cloneDoctor(d)
		m.saves++
		if m.users != nil && d.LinkedUserID != "" {
			_ = m.users.Mirror(ctx, d.LinkedUserID, d.AvailableSlots, d.Bookings, fixedNow)
		}
	}
	return nil
}

func (m *memDoctorRepo) Create(ctx context.Context, doctor *model.Doctor) error {
	if doctor.ID == "" {
		doctor.ID = fmt.Sprintf("doc-%d", len(m.order)+1)
	}
	m.doctors[doctor.ID] = cloneDoctor(doctor)
	m.order = append(m.order, doctor.ID)
	return nil
}

func (m *memDoctorRepo) UpsertFromUser(ctx context.Context, user *model.User) (bool, error) {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, user)
	}
	return false, nil
}

func (m *memDoctorRepo) Count(ctx context.Context) (int64, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return int64(len(m.order)), nil
}

func (m *memDoctorRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	m.txCalls++
	return fn(mongo.NewSessionContext(ctx, nil))
}

type memUserRepo struct {
	users    map[string]*model.User
	mirrors  int
	findErr  error
	listFunc func(ctx context.Context) ([]*model.User, error)
}

func newMemUserRepo(users ...*model.User) *memUserRepo {
	m := &memUserRepo{users: map[string]*model.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, doctorserrors.ErrLinkedUserNotFound
	}
	c := *u
	c.AvailableSlots = append([]slot.Slot(nil), u.AvailableSlots...)
	c.Bookings = append([]model.Booking(nil), u.Bookings...)
	return &c, nil
}

func (m *memUserRepo) FindDoctorUsers(ctx context.Context) ([]*model.User, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *memUserRepo) Mirror(ctx context.Context, id string, slots []slot.Slot, bookings []model.Booking, at time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return doctorserrors.ErrLinkedUserNotFound
	}
	u.AvailableSlots = append([]slot.Slot(nil), slots...)
	u.Bookings = append([]model.Booking(nil), bookings...)
	u.LastUpdated = at
	m.mirrors++
	return nil
}

type mockLocker struct {
	err    error
	locked []string
}

func (m *mockLocker) WithLock(ctx context.Context, doctorID string, fn func() error) error {
	if m.err != nil {
		return m.err
	}
	m.locked = append(m.locked, doctorID)
	return fn()
}

type mockCache struct {
	getFunc       func(ctx context.Context, day string) ([]model.DoctorAvailability, bool, error)
	set           map[string][]model.DoctorAvailability
	invalidations int
}

func (m *mockCache) Get(ctx context.Context, day string) ([]model.DoctorAvailability, bool, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, day)
	}
	return nil, false, nil
}

func (m *mockCache) Set(ctx context.Context, day string, list []model.DoctorAvailability) error {
	if m.set == nil {
		m.set = map[string][]model.DoctorAvailability{}
	}
	m.set[day] = list
	return nil
}

func (m *mockCache) Invalidate(ctx context.Context) error {
	m.invalidations++
	return nil
}

type mockPublisher struct {
	reasons []string
	err     error
}

func (m *mockPublisher) AppointmentBooked(ctx context.Context, a *model.Appointment) error {
	return m.err
}

func (m *mockPublisher) AppointmentStatusChanged(ctx context.Context, a *model.Appointment) error {
	return m.err
}

func (m *mockPublisher) AvailabilityChanged(ctx context.Context, d *model.Doctor, reason string) error {
	m.reasons = append(m.reasons, reason)
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

type fixture struct {
	svc       *availabilityService
	repo      *memDoctorRepo
	users     *memUserRepo
	locker    *mockLocker
	cache     *mockCache
	publisher *mockPublisher
}

func newFixture(doctors ...*model.Doctor) *fixture {
	log := logger.New(logger.Config{Level: "error", Service: "test"})
	f := &fixture{
		repo:      newMemDoctorRepo(doctors...),
		users:     newMemUserRepo(),
		locker:    &mockLocker{},
		cache:     &mockCache{},
		publisher: &mockPublisher{},
	}
	f.repo.users = f.users
	f.svc = &availabilityService{
		repo:      f.repo,
		users:     f.users,
		locker:    f.locker,
		cache:     f.cache,
		publisher: f.publisher,
		validator: validator.NewDoctorValidator(log),
		codec:     slot.NewCodec(time.UTC, func() time.Time { return fixedNow }),
		cfg:       &config.Config{Log: log},
	}
	return f
}

func slotStrings(slots []slot.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.String())
	}
	return out
}

func parseAll(raw ...string) []slot.Slot {
	out := make([]slot.Slot, 0, len(raw))
	for _, r := range raw {
		out = append(out, slot.Parse(r))
	}
	return out
}
