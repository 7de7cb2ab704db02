package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"parkd/internal/reservations/service"
	apperrors "parkd/pkg/errors"
	httputil "parkd/pkg/http"
	"parkd/pkg/logger"
	"parkd/pkg/middleware"
	"parkd/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, "Create", apperrors.Unauthorized("Missing caller identity"))
		return
	}

	var req model.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	detail, err := h.service.Reserve(r.Context(), principal, &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, detail); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, "Cancel", apperrors.Unauthorized("Missing caller identity"))
		return
	}

	if err := h.service.Cancel(r.Context(), principal, ps.ByName("id")); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

// ListMine returns the caller's reservations. Without include_past it lists
// upcoming active bookings; with it, the listing switches to history mode
// (include_past=true spans everything, false keeps future days only).
func (h *ReservationHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, "ListMine", apperrors.Unauthorized("Missing caller identity"))
		return
	}

	var (
		reservations []*model.Reservation
		err          error
	)

	if rawIncludePast := r.URL.Query().Get("include_past"); rawIncludePast != "" {
		includePast, parseErr := strconv.ParseBool(rawIncludePast)
		if parseErr != nil {
			h.writeError(w, "ListMine", apperrors.InvalidInput("Invalid include_past parameter"))
			return
		}
		reservations, err = h.service.ListHistory(r.Context(), principal, principal.EmployeeID, includePast)
	} else {
		reservations, err = h.service.ListUpcoming(r.Context(), principal, principal.EmployeeID)
	}
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservations); err != nil {
		h.log.Error("failed to write success response", "handler", "ListMine", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Create)
	router.DELETE("/api/v1/reservations/:id", h.Cancel)
	router.GET("/api/v1/reservations/my", h.ListMine)
}
