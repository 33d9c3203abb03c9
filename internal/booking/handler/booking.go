package handler

import (
	"context"
	"errors"
	"net/http"

	bookingerrors "medbook/internal/booking/errors"
	"medbook/internal/booking/engine"
	apperrors "medbook/pkg/errors"
	httputil "medbook/pkg/http"
	"medbook/pkg/logger"
	"medbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type Booker interface {
	Book(ctx context.Context, req engine.Request) (*engine.Result, error)
	Stats() engine.Stats
}

type BookingHandler struct {
	engine Booker
	log    *logger.Logger
}

func NewBookingHandler(engine Booker, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		engine: engine,
		log:    log,
	}
}

type BookResponse struct {
	Appointment  *model.Appointment `json:"appointment"`
	Booking      model.Booking      `json:"booking"`
	DoctorID     string             `json:"doctor_id"`
	SkippedSlots int                `json:"skipped_slots,omitempty"`
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req engine.Request
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Book", err)
		return
	}

	res, err := h.engine.Book(r.Context(), req)
	if err != nil {
		h.writeError(w, "Book", ToAppError(err))
		return
	}

	if err := httputil.WriteCreated(w, BookResponse{
		Appointment:  res.Appointment,
		Booking:      res.Booking,
		DoctorID:     res.Doctor.ID,
		SkippedSlots: res.SkippedSlots,
	}); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteSuccess(w, h.engine.Stats()); err != nil {
		h.log.Error("failed to write success response", "handler", "Stats", "operation", "WriteSuccess", "error", err)
	}
}

// ToAppError maps booking failures onto API errors.
func ToAppError(err error) error {
	var slotErr *bookingerrors.SlotNotAvailableError
	switch {
	case errors.As(err, &slotErr):
		return apperrors.SlotUnavailable(slotErr.DoctorName, slotErr.TimeText, slotErr.Available)
	case errors.Is(err, bookingerrors.ErrInvalidRequest):
		return apperrors.Validation("Invalid booking request", map[string]any{"error": err.Error()})
	case errors.Is(err, bookingerrors.ErrDoctorNotFound):
		return apperrors.NotFound("Doctor")
	case errors.Is(err, bookingerrors.ErrSpecializationMismatch):
		return apperrors.NotFound("Doctor with the requested specialization")
	case errors.Is(err, bookingerrors.ErrConflict):
		return apperrors.ConcurrentModification("Doctor", err)
	case errors.Is(err, bookingerrors.ErrStoreUnavailable):
		return apperrors.Unavailable("Availability store", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Booking timed out")
	default:
		return apperrors.Internal("Failed to book appointment", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/appointments/book", h.Book)
	router.GET("/api/v1/appointments/stats", h.Stats)
}
