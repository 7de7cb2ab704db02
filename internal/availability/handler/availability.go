package handler

import (
	"encoding/json"
	"net/http"

	"parkd/internal/availability/service"
	"parkd/pkg/calendar"
	apperrors "parkd/pkg/errors"
	httputil "parkd/pkg/http"
	"parkd/pkg/logger"
	"parkd/pkg/middleware"
	"parkd/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AvailabilityHandler struct {
	service service.AvailabilityService
	log     *logger.Logger
}

func NewAvailabilityHandler(service service.AvailabilityService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		log:     log,
	}
}

func (h *AvailabilityHandler) Set(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, "Set", apperrors.Unauthorized("Missing caller identity"))
		return
	}

	var req model.AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Set", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.SetAvailability(r.Context(), principal, ps.ByName("id"), &req); err != nil {
		h.writeError(w, "Set", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from := calendar.Today()
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		parsed, err := calendar.ParseDayKey(fromStr)
		if err != nil {
			h.writeError(w, "Get", apperrors.InvalidInput("Invalid 'from' date"))
			return
		}
		from = parsed
	}

	marks, err := h.service.GetAvailability(r.Context(), ps.ByName("id"), from)
	if err != nil {
		h.writeError(w, "Get", err)
		return
	}

	if err := httputil.WriteSuccess(w, marks); err != nil {
		h.log.Error("failed to write success response", "handler", "Get", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.PUT("/api/v1/spots/:id/availability", h.Set)
	router.GET("/api/v1/spots/:id/availability", h.Get)
}
