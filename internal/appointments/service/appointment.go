package service

import (
	"context"
	"errors"
	"sync"
	"time"

	appointmentserrors "medbook/internal/appointments/errors"
	"medbook/internal/appointments/repository"
	"medbook/internal/appointments/validator"
	"medbook/internal/events"
	"medbook/pkg/config"
	apperrors "medbook/pkg/errors"
	"medbook/pkg/model"
	"medbook/pkg/sanitizer"
)

type AppointmentService interface {
	GetByID(ctx context.Context, id string) (*model.Appointment, error)
	List(ctx context.Context, filter model.AppointmentFilter, limit int, offset int64) ([]*model.Appointment, int64, error)
	UpdateStatus(ctx context.Context, id string, update *model.AppointmentStatusUpdate) (*model.Appointment, error)
}

type appointmentService struct {
	repo      repository.AppointmentRepository
	publisher events.Publisher
	validator *validator.AppointmentValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewAppointmentService(
	repo repository.AppointmentRepository,
	publisher events.Publisher,
	validator *validator.AppointmentValidator,
	cfg *config.Config,
) AppointmentService {
	return &appointmentService{
		repo:      repo,
		publisher: publisher,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *appointmentService) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}
	appointment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id, "Failed to retrieve appointment")
	}
	return appointment, nil
}

func (s *appointmentService) List(ctx context.Context, filter model.AppointmentFilter, limit int, offset int64) ([]*model.Appointment, int64, error) {
	filter.DoctorID = sanitizer.TrimAndNormalize(filter.DoctorID)
	filter.PatientName = sanitizer.SanitizePersonName(filter.PatientName)
	if filter.Status != "" {
		if err := s.validator.ValidateStatusUpdate(&model.AppointmentStatusUpdate{Status: filter.Status}); err != nil {
			return nil, 0, apperrors.Validation("Invalid status filter", map[string]any{"error": err.Error()})
		}
	}

	var count int64
	var appointments []*model.Appointment
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count appointments", "error", errCount)
			errCount = apperrors.Internal("Failed to count appointments", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		appointments, errFind = s.repo.Find(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list appointments", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve appointments", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return appointments, count, nil
}

// UpdateStatus moves an appointment between upcoming, completed and
// cancelled. The doctor's bookings are left untouched.
func (s *appointmentService) UpdateStatus(ctx context.Context, id string, update *model.AppointmentStatusUpdate) (*model.Appointment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}
	if err := s.validator.ValidateStatusUpdate(update); err != nil {
		s.cfg.Log.Warn("Appointment status validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid status update", map[string]any{"error": err.Error()})
	}

	appointment, err := s.repo.UpdateStatus(ctx, id, update.Status, s.now().UTC().Truncate(time.Millisecond))
	if err != nil {
		s.cfg.Log.Error("Failed to update appointment status", "id", id, "error", err)
		return nil, s.translate(err, id, "Failed to update appointment status")
	}

	if err := s.publisher.AppointmentStatusChanged(ctx, appointment); err != nil {
		s.cfg.Log.Warn("Failed to publish appointment status change", "id", id, "error", err)
	}
	s.cfg.Log.Info("Appointment status updated", "id", id, "status", update.Status)
	return appointment, nil
}

func (s *appointmentService) translate(err error, id string, message string) error {
	switch {
	case errors.Is(err, appointmentserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Appointment", id)
	case errors.Is(err, appointmentserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid appointment ID format")
	default:
		return apperrors.Internal(message, err)
	}
}
