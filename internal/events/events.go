package events

import (
	"context"
	"fmt"
	"time"

	"medbook/pkg/kafka"
	"medbook/pkg/model"
)

const (
	TypeAppointmentBooked        = "appointment.booked"
	TypeAppointmentStatusChanged = "appointment.status_changed"
	TypeAvailabilityChanged      = "availability.changed"

	SchemaVersion = "1"
)

// Reasons carried by AvailabilityChanged.
const (
	ReasonBooked         = "booked"
	ReasonSlotsAdded     = "slots_added"
	ReasonSlotRemoved    = "slot_removed"
	ReasonBookingDeleted = "booking_deleted"
	ReasonSynced         = "synced"
)

type AppointmentBooked struct {
	AppointmentID string    `json:"appointment_id"`
	DoctorID      string    `json:"doctor_id"`
	DoctorName    string    `json:"doctor_name"`
	PatientName   string    `json:"patient_name"`
	Time          string    `json:"time"`
	Date          string    `json:"date,omitempty"`
	BookedAt      time.Time `json:"booked_at"`
}

type AppointmentStatusChanged struct {
	AppointmentID string    `json:"appointment_id"`
	DoctorID      string    `json:"doctor_id"`
	Status        string    `json:"status"`
	ChangedAt     time.Time `json:"changed_at"`
}

// AvailabilityChanged tells the sync worker that a doctor's slots or
// bookings moved and its linked user may need reconciling.
type AvailabilityChanged struct {
	DoctorID     string    `json:"doctor_id"`
	LinkedUserID string    `json:"linked_user_id,omitempty"`
	Reason       string    `json:"reason"`
	Version      int64     `json:"version"`
	ChangedAt    time.Time `json:"changed_at"`
}

type Publisher interface {
	AppointmentBooked(ctx context.Context, appointment *model.Appointment) error
	AppointmentStatusChanged(ctx context.Context, appointment *model.Appointment) error
	AvailabilityChanged(ctx context.Context, doctor *model.Doctor, reason string) error
	Close() error
}

// MessagePublisher is the part of *kafka.Producer the publisher needs.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	appointments MessagePublisher
	availability MessagePublisher
	source       string
	now          func() time.Time
}

func NewKafkaPublisher(appointments, availability MessagePublisher, source string) *KafkaPublisher {
	return &KafkaPublisher{
		appointments: appointments,
		availability: availability,
		source:       source,
		now:          time.Now,
	}
}

func (p *KafkaPublisher) AppointmentBooked(ctx context.Context, appointment *model.Appointment) error {
	return p.publish(ctx, p.appointments, appointment.DoctorID, TypeAppointmentBooked, AppointmentBooked{
		AppointmentID: appointment.ID,
		DoctorID:      appointment.DoctorID,
		DoctorName:    appointment.DoctorName,
		PatientName:   appointment.PatientName,
		Time:          appointment.Time,
		Date:          appointment.Date,
		BookedAt:      appointment.CreatedAt,
	})
}

func (p *KafkaPublisher) AppointmentStatusChanged(ctx context.Context, appointment *model.Appointment) error {
	return p.publish(ctx, p.appointments, appointment.DoctorID, TypeAppointmentStatusChanged, AppointmentStatusChanged{
		AppointmentID: appointment.ID,
		DoctorID:      appointment.DoctorID,
		Status:        string(appointment.Status),
		ChangedAt:     p.now().UTC(),
	})
}

func (p *KafkaPublisher) AvailabilityChanged(ctx context.Context, doctor *model.Doctor, reason string) error {
	return p.publish(ctx, p.availability, doctor.ID, TypeAvailabilityChanged, AvailabilityChanged{
		DoctorID:     doctor.ID,
		LinkedUserID: doctor.LinkedUserID,
		Reason:       reason,
		Version:      doctor.Version,
		ChangedAt:    p.now().UTC(),
	})
}

func (p *KafkaPublisher) publish(ctx context.Context, producer MessagePublisher, key, eventType string, payload any) error {
	msg, err := kafka.NewMessage().
		WithKey(key).
		WithEventType(eventType).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		WithCorrelationID(CorrelationID(ctx)).
		WithValue(payload).
		Build()
	if err != nil {
		return err
	}
	if err := producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	err := p.appointments.Close()
	if availErr := p.availability.Close(); err == nil {
		err = availErr
	}
	return err
}

type NoopPublisher struct{}

func (NoopPublisher) AppointmentBooked(context.Context, *model.Appointment) error        { return nil }
func (NoopPublisher) AppointmentStatusChanged(context.Context, *model.Appointment) error { return nil }
func (NoopPublisher) AvailabilityChanged(context.Context, *model.Doctor, string) error   { return nil }
func (NoopPublisher) Close() error                                                       { return nil }

type correlationKey struct{}

// WithCorrelationID tags ctx so events published under it can be traced
// back to the request that caused them.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
