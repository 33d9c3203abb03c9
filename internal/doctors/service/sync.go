package service

import (
	"context"
	"errors"

	doctorserrors "medbook/internal/doctors/errors"
	"medbook/internal/events"
	apperrors "medbook/pkg/errors"
	"medbook/pkg/model"
	"medbook/pkg/sanitizer"
	"medbook/pkg/slot"

	"go.mongodb.org/mongo-driver/mongo"
)

type SyncReport struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

type MigrationReport struct {
	Users    int `json:"users"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// SyncDoctor reconciles a doctor with its linked user. The doctor keeps its
// own slots and bookings in order and gains whatever only the user record
// has; a slot already taken by a booking is never put back. The merged
// lists are written to both records in one transaction. Reports whether
// anything was written.
func (s *availabilityService) SyncDoctor(ctx context.Context, doctorID string) (bool, error) {
	if doctorID == "" {
		return false, apperrors.InvalidInput("Doctor ID cannot be empty")
	}

	var saved *model.Doctor
	err := s.locker.WithLock(ctx, doctorID, func() error {
		doctor, err := s.repo.FindByID(ctx, doctorID)
		if err != nil {
			return err
		}
		if doctor.LinkedUserID == "" {
			return nil
		}

		user, err := s.users.FindByID(ctx, doctor.LinkedUserID)
		if err != nil {
			if errors.Is(err, doctorserrors.ErrLinkedUserNotFound) {
				s.cfg.Log.Info("Linked user missing, nothing to sync",
					"doctor_id", doctorID,
					"user_id", doctor.LinkedUserID,
				)
				return nil
			}
			return err
		}

		bookings := mergeBookings(doctor.Bookings, user.Bookings)
		slots := s.mergeSlots(doctor.AvailableSlots, user.AvailableSlots, bookings)

		if sameSlots(slots, doctor.AvailableSlots) && sameSlots(slots, user.AvailableSlots) &&
			sameBookings(bookings, doctor.Bookings) && sameBookings(bookings, user.Bookings) {
			return nil
		}

		doctor.AvailableSlots = slots
		doctor.Bookings = bookings
		readVersion := doctor.Version
		err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			// the driver may rerun this on a transient error
			doctor.Version = readVersion
			return s.repo.Save(sessCtx, doctor)
		})
		if err != nil {
			return err
		}
		saved = doctor
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to sync doctor with linked user", "doctor_id", doctorID, "error", err)
		return false, s.translate(err, doctorID, "Failed to sync doctor")
	}
	if saved == nil {
		return false, nil
	}

	s.afterChange(ctx, saved, events.ReasonSynced)
	s.cfg.Log.Info("Doctor synced with linked user",
		"doctor_id", doctorID,
		"user_id", saved.LinkedUserID,
		"slots", len(saved.AvailableSlots),
		"bookings", len(saved.Bookings),
	)
	return true, nil
}

// SyncLinkedUsers runs SyncDoctor for every doctor with a linked user. One
// failing doctor does not stop the pass.
func (s *availabilityService) SyncLinkedUsers(ctx context.Context) (*SyncReport, error) {
	doctors := s.repo.Load(ctx)
	if len(doctors) == 0 {
		if n, err := s.repo.Count(ctx); err != nil || n > 0 {
			return nil, apperrors.Unavailable("Doctor store", doctorserrors.ErrStoreUnavailable)
		}
	}

	report := &SyncReport{}
	for _, doctor := range doctors {
		if doctor.LinkedUserID == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.Checked++
		updated, err := s.SyncDoctor(ctx, doctor.ID)
		if err != nil {
			report.Failed++
			continue
		}
		if updated {
			report.Updated++
		}
	}

	s.cfg.Log.Info("Linked user sync finished",
		"checked", report.Checked,
		"updated", report.Updated,
		"failed", report.Failed,
	)
	return report, nil
}

// MigrateDoctorUsers makes sure every doctor account has a doctors record.
func (s *availabilityService) MigrateDoctorUsers(ctx context.Context) (*MigrationReport, error) {
	users, err := s.users.FindDoctorUsers(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to list doctor users", err)
	}

	report := &MigrationReport{Users: len(users)}
	for _, user := range users {
		user.Name = sanitizer.SanitizePersonName(user.Name)
		user.FullName = sanitizer.SanitizePersonName(user.FullName)
		user.Email = sanitizer.SanitizeEmail(user.Email)
		user.Specialization = sanitizer.NormalizeSpecialization(user.Specialization)

		inserted, err := s.repo.UpsertFromUser(ctx, user)
		if err != nil {
			report.Failed++
			s.cfg.Log.Warn("Failed to migrate doctor user", "user_id", user.ID, "error", err)
			continue
		}
		if inserted {
			report.Inserted++
		} else {
			report.Updated++
		}
	}

	if report.Inserted > 0 || report.Updated > 0 {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.cfg.Log.Warn("Failed to invalidate availability cache", "error", err)
		}
	}

	s.cfg.Log.Info("Doctor user migration finished",
		"users", report.Users,
		"inserted", report.Inserted,
		"updated", report.Updated,
		"failed", report.Failed,
	)
	return report, nil
}

// mergeSlots drops slots a booking already holds. A booking stored without
// a date was made against a bare clock time, so it can only claim a legacy
// slot with that literal clock; it never claims a dated slot.
func (s *availabilityService) mergeSlots(primary, secondary []slot.Slot, bookings []model.Booking) []slot.Slot {
	takenDated := make(map[string]struct{}, len(bookings))
	takenClock := make(map[string]struct{})
	for _, b := range bookings {
		if b.Date == "" {
			takenClock[b.Time] = struct{}{}
			continue
		}
		takenDated[b.Date+"-"+b.Time] = struct{}{}
	}

	merged := make([]slot.Slot, 0, len(primary)+len(secondary))
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	for _, list := range [][]slot.Slot{primary, secondary} {
		for _, sl := range list {
			key := s.codec.Key(sl)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if _, booked := takenDated[key]; booked {
				continue
			}
			if sl.Kind() == slot.Legacy {
				if _, booked := takenClock[sl.Clock()]; booked {
					continue
				}
			}
			merged = append(merged, sl)
		}
	}
	return merged
}

func sameSlots(a, b []slot.Slot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func mergeBookings(primary, secondary []model.Booking) []model.Booking {
	merged := make([]model.Booking, 0, len(primary)+len(secondary))
	merged = append(merged, primary...)
	for _, candidate := range secondary {
		present := false
		for _, b := range merged {
			if b.Same(candidate) {
				present = true
				break
			}
		}
		if !present {
			merged = append(merged, candidate)
		}
	}
	return merged
}

func sameBookings(a, b []model.Booking) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Same(b[i]) {
			return false
		}
	}
	return true
}
