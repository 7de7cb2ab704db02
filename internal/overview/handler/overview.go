package handler

import (
	"net/http"

	"parkd/internal/overview/service"
	"parkd/pkg/calendar"
	apperrors "parkd/pkg/errors"
	httputil "parkd/pkg/http"
	"parkd/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type OverviewHandler struct {
	service service.OverviewService
	log     *logger.Logger
}

func NewOverviewHandler(service service.OverviewService, log *logger.Logger) *OverviewHandler {
	return &OverviewHandler{
		service: service,
		log:     log,
	}
}

func (h *OverviewHandler) AvailableSpots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	date, err := calendar.ParseDayKey(r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, "AvailableSpots", apperrors.InvalidInput("Invalid or missing 'date' parameter"))
		return
	}

	spots, err := h.service.AvailableSpotsOnDate(r.Context(), date)
	if err != nil {
		h.writeError(w, "AvailableSpots", err)
		return
	}

	if err := httputil.WriteSuccess(w, spots); err != nil {
		h.log.Error("failed to write success response", "handler", "AvailableSpots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *OverviewHandler) AvailableDays(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	start, err := calendar.ParseDayKey(r.URL.Query().Get("start"))
	if err != nil {
		h.writeError(w, "AvailableDays", apperrors.InvalidInput("Invalid or missing 'start' parameter"))
		return
	}
	end, err := calendar.ParseDayKey(r.URL.Query().Get("end"))
	if err != nil {
		h.writeError(w, "AvailableDays", apperrors.InvalidInput("Invalid or missing 'end' parameter"))
		return
	}

	days, err := h.service.DaysWithAvailabilityInRange(r.Context(), start, end)
	if err != nil {
		h.writeError(w, "AvailableDays", err)
		return
	}

	if err := httputil.WriteSuccess(w, days); err != nil {
		h.log.Error("failed to write success response", "handler", "AvailableDays", "operation", "WriteSuccess", "error", err)
	}
}

func (h *OverviewHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}

func (h *OverviewHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/overview/spots", h.AvailableSpots)
	router.GET("/api/v1/overview/days", h.AvailableDays)
}
