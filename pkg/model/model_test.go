package model

import (
	"testing"

	"medbook/pkg/config"

	"github.com/go-playground/validator/v10"
)

func TestDoctor_RequiredFields(t *testing.T) {
	v := validator.New()

	tests := []struct {
		name        string
		doctor      Doctor
		expectValid bool
	}{
		{"valid", Doctor{Name: "Dr. Asha Rao", Specialization: "Cardiology"}, true},
		{"valid with email", Doctor{Name: "Dr. Asha Rao", Specialization: "Cardiology", Email: "asha@example.com"}, true},
		{"missing name", Doctor{Specialization: "Cardiology"}, false},
		{"short name", Doctor{Name: "A", Specialization: "Cardiology"}, false},
		{"missing specialization", Doctor{Name: "Dr. Asha Rao"}, false},
		{"bad email", Doctor{Name: "Dr. Asha Rao", Specialization: "Cardiology", Email: "nope"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.doctor)
			if tt.expectValid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.expectValid && err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestAppointment_Status(t *testing.T) {
	v := validator.New()
	base := Appointment{
		PatientName: "Ravi Kumar",
		DoctorID:    "doc-1",
		DoctorName:  "Dr. Asha Rao",
		Time:        "2030-06-02 09:00",
	}

	for _, status := range []config.AppointmentStatus{config.Upcoming, config.Completed, config.Cancelled} {
		t.Run("status_"+string(status), func(t *testing.T) {
			a := base
			a.Status = status
			if err := v.Struct(a); err != nil {
				t.Errorf("status %q should be valid: %v", status, err)
			}
		})
	}

	t.Run("invalid_status", func(t *testing.T) {
		a := base
		a.Status = "lost"
		if err := v.Struct(a); err == nil {
			t.Errorf("status %q should be rejected", a.Status)
		}
	})
}

func TestBooking_Same(t *testing.T) {
	b := Booking{PatientName: "Ravi", Time: "09:00", Date: "2030-06-02"}

	tests := []struct {
		name  string
		other Booking
		want  bool
	}{
		{"identical", Booking{PatientName: "Ravi", Time: "09:00", Date: "2030-06-02"}, true},
		{"other patient", Booking{PatientName: "Mira", Time: "09:00", Date: "2030-06-02"}, false},
		{"other time", Booking{PatientName: "Ravi", Time: "10:00", Date: "2030-06-02"}, false},
		{"dateless", Booking{PatientName: "Ravi", Time: "09:00"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Same(tt.other); got != tt.want {
				t.Errorf("Same() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUser_DisplayName(t *testing.T) {
	if got := (&User{Name: "asha", FullName: "Asha Rao"}).DisplayName(); got != "Asha Rao" {
		t.Errorf("DisplayName() = %q, want full name", got)
	}
	if got := (&User{Name: "asha"}).DisplayName(); got != "asha" {
		t.Errorf("DisplayName() = %q, want name fallback", got)
	}
}
