package handler

import (
	"net/http"

	"medbook/internal/medicines/service"
	httputil "medbook/pkg/http"
	"medbook/pkg/logger"
	"medbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type MedicineHandler struct {
	service service.MedicineService
	log     *logger.Logger
}

func NewMedicineHandler(service service.MedicineService, log *logger.Logger) *MedicineHandler {
	return &MedicineHandler{
		service: service,
		log:     log,
	}
}

// List reads the optional "category" and "q" query parameters.
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	medicines, err := h.service.Find(r.Context(), query.Get("category"), query.Get("q"))
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteSuccess(w, medicines); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MedicineHandler) Purchase(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var order model.MedicineOrder
	if err := httputil.DecodeJSON(r, &order); err != nil {
		h.writeError(w, "Purchase", err)
		return
	}

	purchase, err := h.service.Purchase(r.Context(), &order)
	if err != nil {
		h.writeError(w, "Purchase", err)
		return
	}

	if err := httputil.WriteCreated(w, purchase); err != nil {
		h.log.Error("failed to write created response", "handler", "Purchase", "operation", "WriteCreated", "error", err)
	}
}

func (h *MedicineHandler) Counter(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	counter, err := h.service.Counter(r.Context(), ps.ByName("email"))
	if err != nil {
		h.writeError(w, "Counter", err)
		return
	}

	if err := httputil.WriteSuccess(w, counter); err != nil {
		h.log.Error("failed to write success response", "handler", "Counter", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MedicineHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *MedicineHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/medicines", h.List)
	router.POST("/api/v1/medicines/purchases", h.Purchase)
	router.GET("/api/v1/patients/:email/medicines/counter", h.Counter)
}
