package service

import (
	"context"

	"medbook/pkg/model"
	"medbook/pkg/slot"
)

type sampleDoctor struct {
	name           string
	email          string
	specialization string
	clocks         []string
}

var sampleDoctors = []sampleDoctor{
	{"Dr. Rajesh Kumar", "rajeshkumar@example.com", "Dermatologist", []string{"09:00", "10:00", "11:00", "14:00", "15:00"}},
	{"Dr. Priya Sharma", "priyasharma@example.com", "Cardiologist", []string{"08:30", "09:30", "13:00", "16:00"}},
	{"Dr. Anil Patel", "anilpatel@example.com", "Pediatrician", []string{"10:00", "11:00", "12:00", "15:00", "16:00"}},
}

// SeedSampleDoctors inserts demo doctors with bare "HH:MM" slots into an
// empty store. A store that already holds doctors is left alone.
func (s *availabilityService) SeedSampleDoctors(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, s.translate(err, "", "Failed to count doctors")
	}
	if count > 0 {
		s.cfg.Log.Info("Doctors already present, skipping sample seed", "count", count)
		return 0, nil
	}

	created := 0
	for _, sample := range sampleDoctors {
		doctor := &model.Doctor{
			Name:           sample.name,
			Email:          sample.email,
			Specialization: sample.specialization,
		}
		for _, clock := range sample.clocks {
			doctor.AvailableSlots = append(doctor.AvailableSlots, slot.Parse(clock))
		}
		if err := s.validator.ValidateDoctor(doctor); err != nil {
			return created, s.translate(err, "", "Invalid sample doctor")
		}
		if err := s.repo.Create(ctx, doctor); err != nil {
			return created, s.translate(err, doctor.ID, "Failed to seed doctor")
		}
		created++
		s.cfg.Log.Info("Seeded sample doctor", "doctor_id", doctor.ID, "name", doctor.Name)
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		s.cfg.Log.Warn("Failed to invalidate availability cache", "error", err)
	}
	return created, nil
}
