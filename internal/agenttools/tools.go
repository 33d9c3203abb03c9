// Package agenttools exposes booking and availability operations as tools
// an LLM agent can call. Every tool answers with a short user-facing
// message; business failures are messages, not errors.
package agenttools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"medbook/internal/booking/engine"
	bookingerrors "medbook/internal/booking/errors"
	"medbook/pkg/config"
	"medbook/pkg/logger"
	"medbook/pkg/model"
	"medbook/pkg/slot"

	"github.com/lexlapax/go-llms/pkg/agent/domain"
	"github.com/lexlapax/go-llms/pkg/agent/tools"
	sdomain "github.com/lexlapax/go-llms/pkg/schema/domain"
)

const (
	BookAppointment    = "book_doctor_appointment"
	GetDoctorDetails   = "get_doctor_details"
	AddAvailability    = "add_doctor_availability"
	RemoveAvailability = "remove_doctor_availability"
)

type Booker interface {
	Book(ctx context.Context, req engine.Request) (*engine.Result, error)
}

// Availability is the slice of the doctors service the tools call.
type Availability interface {
	GetAvailability(ctx context.Context) ([]model.DoctorAvailability, error)
	AddAvailability(ctx context.Context, doctorID string, add *model.AvailabilityAdd) (int, error)
	RemoveAvailability(ctx context.Context, doctorID string, slotText string) error
}

type BookParams struct {
	PatientName    string `json:"patient_name"`
	Time           string `json:"time"`
	DoctorName     string `json:"doctor_name"`
	Specialization string `json:"specialization"`
}

type AddAvailabilityParams struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
	Times    string `json:"times"`
}

type RemoveAvailabilityParams struct {
	DoctorID string `json:"doctor_id"`
	Slot     string `json:"slot"`
}

type Registry struct {
	booker       Booker
	availability Availability
	medicines    Medicines
	log          *logger.Logger
	tools        map[string]domain.Tool
	order        []string
}

func NewRegistry(booker Booker, availability Availability, log *logger.Logger) *Registry {
	r := &Registry{
		booker:       booker,
		availability: availability,
		log:          log,
		tools:        map[string]domain.Tool{},
	}
	r.register(r.bookTool())
	r.register(r.detailsTool())
	r.register(r.addAvailabilityTool())
	r.register(r.removeAvailabilityTool())
	return r
}

func (r *Registry) register(tool domain.Tool) {
	r.tools[tool.Name()] = tool
	r.order = append(r.order, tool.Name())
}

func (r *Registry) Get(name string) (domain.Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []domain.Tool {
	out := make([]domain.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

func stringProp(description string) sdomain.Property {
	return sdomain.Property{Type: "string", Description: description}
}

func (r *Registry) bookTool() domain.Tool {
	return tools.NewToolBuilder(BookAppointment, "Books an appointment with a doctor for a patient at one of the doctor's available time slots.").
		WithFunction(r.book).
		WithParameterSchema(&sdomain.Schema{
			Type: "object",
			Properties: map[string]sdomain.Property{
				"patient_name":   stringProp("Full name of the patient"),
				"time":           stringProp("Requested time as 'YYYY-MM-DD at HH:MM', 'YYYY-MM-DD-HH:MM' or 'HH:MM'"),
				"doctor_name":    stringProp("Name of the doctor, with or without the 'Dr.' title"),
				"specialization": stringProp("Optional specialization the doctor must have"),
			},
			Required: []string{"patient_name", "time", "doctor_name"},
		}).
		WithUsageInstructions("Call get_doctor_details first and only offer times listed there. Pass the time exactly as shown.").
		WithCategory("appointments").
		WithTags([]string{"booking", "doctor"}).
		WithBehavior(false, true, false, "medium").
		Build()
}

func (r *Registry) book(ctx context.Context, p BookParams) (string, error) {
	r.log.Info("Agent tool call", "tool", BookAppointment, "patient_name", p.PatientName, "time", p.Time, "doctor_name", p.DoctorName)

	_, err := r.booker.Book(ctx, engine.Request{
		PatientName:    p.PatientName,
		TimeText:       p.Time,
		DoctorName:     p.DoctorName,
		Specialization: p.Specialization,
	})
	doctor := titled(p.DoctorName)
	if err == nil {
		return fmt.Sprintf("✅ Booking successful for %s with %s at %s.", p.PatientName, doctor, p.Time), nil
	}

	var slotErr *bookingerrors.SlotNotAvailableError
	switch {
	case errors.As(err, &slotErr):
		msg := fmt.Sprintf("❌ Error booking appointment. The requested time slot '%s' is not available for %s. Please select one of the available time slots shown.", p.Time, doctor)
		if len(slotErr.Available) == 0 {
			return msg + "\n" + doctor + " has no available time slots.", nil
		}
		return msg + "\nAvailable time slots:\n- " + strings.Join(slotErr.Available, "\n- "), nil
	case errors.Is(err, bookingerrors.ErrInvalidRequest):
		return fmt.Sprintf("❌ Error booking appointment with %s at '%s'. Patient name, time and doctor name are all required.", doctor, p.Time), nil
	case errors.Is(err, bookingerrors.ErrDoctorNotFound):
		return fmt.Sprintf("❌ Error booking appointment at '%s'. %s was not found.", p.Time, doctor), nil
	case errors.Is(err, bookingerrors.ErrSpecializationMismatch):
		return fmt.Sprintf("❌ Error booking appointment at '%s'. %s with specialization '%s' was not found.", p.Time, doctor, p.Specialization), nil
	case errors.Is(err, bookingerrors.ErrConflict):
		return fmt.Sprintf("❌ Error booking appointment at '%s'. %s's schedule changed while booking. Please try again.", p.Time, doctor), nil
	case errors.Is(err, bookingerrors.ErrPartialCommit):
		return fmt.Sprintf("❌ Error booking appointment. The slot '%s' with %s was reserved but the appointment record could not be saved. Please contact support.", p.Time, doctor), nil
	default:
		return fmt.Sprintf("Error: The appointment system is currently unavailable, so %s at '%s' could not be booked. Please try again later or contact support.", doctor, p.Time), nil
	}
}

// titled renders a doctor name with exactly one "Dr. " prefix.
func titled(name string) string {
	name = strings.TrimSpace(name)
	return config.DoctorTitlePrefix + strings.TrimPrefix(name, config.DoctorTitlePrefix)
}

func (r *Registry) detailsTool() domain.Tool {
	return tools.NewToolBuilder(GetDoctorDetails, "Lists every doctor with specialization, email, id and available time slots.").
		WithFunction(r.details).
		WithUsageInstructions("Use before booking to show the patient which doctors and times are available.").
		WithCategory("appointments").
		WithTags([]string{"doctor", "availability"}).
		WithBehavior(true, false, false, "fast").
		Build()
}

func (r *Registry) details(ctx context.Context) (string, error) {
	list, err := r.availability.GetAvailability(ctx)
	if err != nil {
		r.log.Error("Failed to load doctor details", "tool", GetDoctorDetails, "error", err)
		return "Error: The doctor information system is currently unavailable. Please try again later or contact support.", nil
	}
	if len(list) == 0 {
		return "No doctors are currently available.", nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode doctor details: %w", err)
	}
	return string(data), nil
}

func (r *Registry) addAvailabilityTool() domain.Tool {
	return tools.NewToolBuilder(AddAvailability, "Adds availability time slots for a doctor on one date.").
		WithFunction(r.addAvailability).
		WithParameterSchema(&sdomain.Schema{
			Type: "object",
			Properties: map[string]sdomain.Property{
				"doctor_id": stringProp("Id of the doctor"),
				"date":      stringProp("Date in YYYY-MM-DD format"),
				"times":     stringProp("Comma-separated list of times in HH:MM format"),
			},
			Required: []string{"doctor_id", "date", "times"},
		}).
		WithConstraints([]string{"Times already available for the doctor are skipped."}).
		WithCategory("availability").
		WithTags([]string{"doctor", "availability"}).
		WithBehavior(false, false, false, "medium").
		Build()
}

func (r *Registry) addAvailability(ctx context.Context, p AddAvailabilityParams) (string, error) {
	var times []string
	for _, t := range strings.Split(p.Times, ",") {
		if t = strings.TrimSpace(t); t != "" {
			times = append(times, t)
		}
	}
	if len(times) == 0 {
		return "❌ Error: No time slots provided.", nil
	}
	if len(strings.Split(p.Date, "-")) != 3 {
		return "❌ Error: Invalid date format. Please use YYYY-MM-DD.", nil
	}

	added, err := r.availability.AddAvailability(ctx, p.DoctorID, &model.AvailabilityAdd{Date: p.Date, TimeSlots: times})
	if err != nil {
		r.log.Warn("Agent tool failed", "tool", AddAvailability, "doctor_id", p.DoctorID, "error", err)
		return fmt.Sprintf("❌ Error adding availability for doctor %s. Please check the doctor ID and try again.", p.DoctorID), nil
	}
	return fmt.Sprintf("✅ Successfully added %d availability slots for doctor %s on %s.", added, p.DoctorID, p.Date), nil
}

func (r *Registry) removeAvailabilityTool() domain.Tool {
	return tools.NewToolBuilder(RemoveAvailability, "Removes one availability slot from a doctor.").
		WithFunction(r.removeAvailability).
		WithParameterSchema(&sdomain.Schema{
			Type: "object",
			Properties: map[string]sdomain.Property{
				"doctor_id": stringProp("Id of the doctor"),
				"slot":      stringProp("Slot in YYYY-MM-DD-HH:MM format"),
			},
			Required: []string{"doctor_id", "slot"},
		}).
		WithCategory("availability").
		WithTags([]string{"doctor", "availability"}).
		WithBehavior(false, true, false, "medium").
		Build()
}

func (r *Registry) removeAvailability(ctx context.Context, p RemoveAvailabilityParams) (string, error) {
	if slot.Parse(p.Slot).Kind() != slot.System {
		return "❌ Error: Invalid slot format. Please use YYYY-MM-DD-HH:MM.", nil
	}
	if err := r.availability.RemoveAvailability(ctx, p.DoctorID, p.Slot); err != nil {
		r.log.Warn("Agent tool failed", "tool", RemoveAvailability, "doctor_id", p.DoctorID, "slot", p.Slot, "error", err)
		return fmt.Sprintf("❌ Error removing availability for doctor %s. Please check the doctor ID and slot and try again.", p.DoctorID), nil
	}
	return fmt.Sprintf("✅ Successfully removed availability slot %s for doctor %s.", p.Slot, p.DoctorID), nil
}
