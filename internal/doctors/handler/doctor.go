package handler

import (
	"net/http"

	"medbook/internal/doctors/service"
	httputil "medbook/pkg/http"
	"medbook/pkg/logger"
	"medbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type DoctorHandler struct {
	service service.AvailabilityService
	log     *logger.Logger
}

func NewDoctorHandler(service service.AvailabilityService, log *logger.Logger) *DoctorHandler {
	return &DoctorHandler{
		service: service,
		log:     log,
	}
}

type AddAvailabilityResponse struct {
	Success bool `json:"success"`
	Added   int  `json:"added"`
}

type SyncResponse struct {
	Updated bool `json:"updated"`
}

func (h *DoctorHandler) GetAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.service.GetAvailability(r.Context())
	if err != nil {
		h.writeError(w, "GetAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, list); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *DoctorHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	doctor, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, doctor); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *DoctorHandler) AddAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var add model.AvailabilityAdd
	if err := httputil.DecodeJSON(r, &add); err != nil {
		h.writeError(w, "AddAvailability", err)
		return
	}

	added, err := h.service.AddAvailability(r.Context(), ps.ByName("id"), &add)
	if err != nil {
		h.writeError(w, "AddAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, AddAvailabilityResponse{Success: true, Added: added}); err != nil {
		h.log.Error("failed to write success response", "handler", "AddAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *DoctorHandler) RemoveAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.RemoveAvailability(r.Context(), ps.ByName("id"), ps.ByName("slot")); err != nil {
		h.writeError(w, "RemoveAvailability", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *DoctorHandler) DeleteBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var removal model.BookingRemoval
	if err := httputil.DecodeJSON(r, &removal); err != nil {
		h.writeError(w, "DeleteBooking", err)
		return
	}

	if err := h.service.DeleteBooking(r.Context(), ps.ByName("id"), &removal); err != nil {
		h.writeError(w, "DeleteBooking", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *DoctorHandler) Sync(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	updated, err := h.service.SyncDoctor(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Sync", err)
		return
	}

	if err := httputil.WriteSuccess(w, SyncResponse{Updated: updated}); err != nil {
		h.log.Error("failed to write success response", "handler", "Sync", "operation", "WriteSuccess", "error", err)
	}
}

func (h *DoctorHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *DoctorHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/doctors/availability", h.GetAvailability)
	router.GET("/api/v1/doctors/id/:id", h.GetByID)
	router.POST("/api/v1/doctors/id/:id/availability", h.AddAvailability)
	router.DELETE("/api/v1/doctors/id/:id/availability/:slot", h.RemoveAvailability)
	router.DELETE("/api/v1/doctors/id/:id/bookings", h.DeleteBooking)
	router.POST("/api/v1/doctors/id/:id/sync", h.Sync)
}
