package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"medbook/internal/events"
	"medbook/pkg/model"
)

func TestSyncDoctor_SupersetMerge(t *testing.T) {
	doctor := &model.Doctor{
		ID:             "doc-1",
		Name:           "Dr. Asha Rao",
		LinkedUserID:   "user-1",
		AvailableSlots: parseAll("2025-06-02-09:00", "2025-06-02-10:00"),
		Bookings:       []model.Booking{{PatientName: "John", Time: "11:00", Date: "2025-06-02"}},
	}
	f := newFixture(doctor)
	f.users.users["user-1"] = &model.User{
		ID:       "user-1",
		UserType: model.UserTypeDoctor,
		// 10:00 repeats in display form, 11:00 is already booked, 12:00 is new
		AvailableSlots: parseAll("2025-06-02 at 10:00", "2025-06-02-11:00", "2025-06-02-12:00"),
		Bookings: []model.Booking{
			{PatientName: "John", Time: "11:00", Date: "2025-06-02"},
			{PatientName: "Mary", Time: "08:00", Date: "2025-06-02"},
		},
	}

	updated, err := f.svc.SyncDoctor(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Fatal("expected an update")
	}

	stored := f.repo.doctors["doc-1"]
	wantSlots := []string{"2025-06-02-09:00", "2025-06-02-10:00", "2025-06-02-12:00"}
	if got := slotStrings(stored.AvailableSlots); !reflect.DeepEqual(got, wantSlots) {
		t.Errorf("doctor slots = %v, want %v", got, wantSlots)
	}
	wantBookings := []model.Booking{
		{PatientName: "John", Time: "11:00", Date: "2025-06-02"},
		{PatientName: "Mary", Time: "08:00", Date: "2025-06-02"},
	}
	if !reflect.DeepEqual(stored.Bookings, wantBookings) {
		t.Errorf("doctor bookings = %+v", stored.Bookings)
	}

	user := f.users.users["user-1"]
	if got := slotStrings(user.AvailableSlots); !reflect.DeepEqual(got, wantSlots) {
		t.Errorf("user slots = %v, want %v", got, wantSlots)
	}
	if f.repo.txCalls != 1 {
		t.Errorf("transactions = %d, want 1", f.repo.txCalls)
	}
	if !reflect.DeepEqual(f.publisher.reasons, []string{events.ReasonSynced}) {
		t.Errorf("published = %v", f.publisher.reasons)
	}
}

func TestSyncDoctor_UndatedBookingKeepsDatedSlot(t *testing.T) {
	// fixedNow is 2025-06-01, so an undated "09:00" would anchor to the dated slot
	doctor := &model.Doctor{
		ID:             "doc-1",
		Name:           "Dr. Asha Rao",
		LinkedUserID:   "user-1",
		AvailableSlots: parseAll("2025-06-01-09:00"),
		Bookings: []model.Booking{
			{PatientName: "John", Time: "09:00"},
			{PatientName: "Mary", Time: "10:00"},
		},
	}
	f := newFixture(doctor)
	f.users.users["user-1"] = &model.User{
		ID:             "user-1",
		UserType:       model.UserTypeDoctor,
		AvailableSlots: parseAll("2025-06-01-09:00", "10:00", "11:00"),
	}

	if _, err := f.svc.SyncDoctor(context.Background(), "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// the legacy 10:00 is claimed by Mary's clock; 11:00 is free
	wantSlots := []string{"2025-06-01-09:00", "11:00"}
	if got := slotStrings(f.repo.doctors["doc-1"].AvailableSlots); !reflect.DeepEqual(got, wantSlots) {
		t.Errorf("doctor slots = %v, want %v", got, wantSlots)
	}
	if got := slotStrings(f.users.users["user-1"].AvailableSlots); !reflect.DeepEqual(got, wantSlots) {
		t.Errorf("user slots = %v, want %v", got, wantSlots)
	}
}

func TestSyncDoctor_AlreadyInSync(t *testing.T) {
	slots := parseAll("2025-06-02-09:00")
	f := newFixture(&model.Doctor{ID: "doc-1", Name: "Dr. Asha Rao", LinkedUserID: "user-1", AvailableSlots: slots})
	f.users.users["user-1"] = &model.User{ID: "user-1", AvailableSlots: parseAll("2025-06-02-09:00")}

	updated, err := f.svc.SyncDoctor(context.Background(), "doc-1")
	if err != nil || updated {
		t.Fatalf("SyncDoctor() = %v, %v; want false, nil", updated, err)
	}
	if f.repo.saves != 0 {
		t.Error("no write expected")
	}
}

func TestSyncDoctor_NoLinkOrMissingUser(t *testing.T) {
	f := newFixture(
		&model.Doctor{ID: "doc-1", Name: "Dr. Asha Rao"},
		&model.Doctor{ID: "doc-2", Name: "Dr. Ben Ito", LinkedUserID: "gone"},
	)

	for _, id := range []string{"doc-1", "doc-2"} {
		updated, err := f.svc.SyncDoctor(context.Background(), id)
		if err != nil || updated {
			t.Errorf("SyncDoctor(%s) = %v, %v; want false, nil", id, updated, err)
		}
	}
}

func TestSyncLinkedUsers_Report(t *testing.T) {
	f := newFixture(
		&model.Doctor{ID: "doc-1", Name: "Dr. Asha Rao", LinkedUserID: "user-1"},
		&model.Doctor{ID: "doc-2", Name: "Dr. Ben Ito"},
		&model.Doctor{ID: "doc-3", Name: "Dr. Cara Diaz", LinkedUserID: "user-3"},
	)
	f.users.users["user-1"] = &model.User{ID: "user-1", AvailableSlots: parseAll("2025-06-02-09:00")}
	f.users.users["user-3"] = &model.User{ID: "user-3"}

	report, err := f.svc.SyncLinkedUsers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := SyncReport{Checked: 2, Updated: 1, Failed: 0}
	if *report != want {
		t.Errorf("report = %+v, want %+v", *report, want)
	}
}

func TestMigrateDoctorUsers(t *testing.T) {
	f := newFixture()
	f.users.listFunc = func(ctx context.Context) ([]*model.User, error) {
		return []*model.User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}, nil
	}
	f.repo.upsertFunc = func(ctx context.Context, user *model.User) (bool, error) {
		switch user.ID {
		case "u1":
			return true, nil
		case "u2":
			return false, nil
		default:
			return false, errors.New("write failed")
		}
	}

	report, err := f.svc.MigrateDoctorUsers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := MigrationReport{Users: 3, Inserted: 1, Updated: 1, Failed: 1}
	if *report != want {
		t.Errorf("report = %+v, want %+v", *report, want)
	}
	if f.cache.invalidations != 1 {
		t.Errorf("cache invalidations = %d", f.cache.invalidations)
	}
}

func TestMigrateDoctorUsers_Sanitizes(t *testing.T) {
	f := newFixture()
	f.users.listFunc = func(ctx context.Context) ([]*model.User, error) {
		return []*model.User{{ID: "u1", FullName: "  Dr.  Meera   Iyer ", Email: " Meera@Example.COM ", Specialization: " Dermatology "}}, nil
	}
	var got *model.User
	f.repo.upsertFunc = func(ctx context.Context, user *model.User) (bool, error) {
		got = user
		return true, nil
	}

	if _, err := f.svc.MigrateDoctorUsers(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("upsert not called")
	}
	if got.FullName != "Dr. Meera Iyer" || got.Email != "meera@example.com" || got.Specialization != "Dermatology" {
		t.Errorf("user not sanitized: %+v", got)
	}
}

func TestSeedSampleDoctors(t *testing.T) {
	f := newFixture()

	created, err := f.svc.SeedSampleDoctors(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != len(sampleDoctors) {
		t.Fatalf("created = %d, want %d", created, len(sampleDoctors))
	}

	first := f.repo.doctors[f.repo.order[0]]
	if first.Name != "Dr. Rajesh Kumar" || first.AvailableSlots[0].String() != "09:00" {
		t.Errorf("first seeded doctor = %+v", first)
	}

	again, err := f.svc.SeedSampleDoctors(context.Background())
	if err != nil || again != 0 {
		t.Errorf("second seed = %d, %v; want 0, nil", again, err)
	}
}
