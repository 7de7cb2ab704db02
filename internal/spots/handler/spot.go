package handler

import (
	"encoding/json"
	"net/http"

	"parkd/internal/spots/service"
	apperrors "parkd/pkg/errors"
	httputil "parkd/pkg/http"
	"parkd/pkg/logger"
	"parkd/pkg/middleware"
	"parkd/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SpotHandler struct {
	service service.SpotService
	log     *logger.Logger
}

func NewSpotHandler(service service.SpotService, log *logger.Logger) *SpotHandler {
	return &SpotHandler{
		service: service,
		log:     log,
	}
}

type assignmentRequest struct {
	EmployeeID string `json:"employee_id"`
}

func (h *SpotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, "Create", apperrors.Unauthorized("Missing caller identity"))
		return
	}

	var spot model.Spot
	if err := json.NewDecoder(r.Body).Decode(&spot); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.Create(r.Context(), principal, &spot); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, spot); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SpotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	spot, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, spot); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpotHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	spots, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteSuccess(w, spots); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SpotHandler) Assign(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, "Assign", apperrors.Unauthorized("Missing caller identity"))
		return
	}

	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Assign", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.Assign(r.Context(), principal, ps.ByName("id"), req.EmployeeID); err != nil {
		h.writeError(w, "Assign", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SpotHandler) Unassign(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, "Unassign", apperrors.Unauthorized("Missing caller identity"))
		return
	}

	if err := h.service.Unassign(r.Context(), principal, ps.ByName("id")); err != nil {
		h.writeError(w, "Unassign", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SpotHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SpotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/spots", h.Create)
	router.GET("/api/v1/spots", h.List)
	router.GET("/api/v1/spots/:id", h.GetByID)
	router.PUT("/api/v1/spots/:id/assignment", h.Assign)
	router.DELETE("/api/v1/employees/:id/assignment", h.Unassign)
}
