package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"civildocs_backend/internal/agents/service"
	"civildocs_backend/internal/agents/transport"
	"civildocs_backend/platform/httpkit"
	"civildocs_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid agent ID"
)

// Handler handles HTTP requests for agent directory management.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new agents handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Create provisions an agent account.
// POST /api/v1/admin/agents
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// List retrieves agents, optionally filtered by commune.
// GET /api/v1/admin/agents?communeId=...
func (h *Handler) List(c *gin.Context) {
	var communeID *uuid.UUID
	if raw := c.Query("communeId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid commune ID", nil)
			return
		}
		communeID = &id
	}

	result, err := h.svc.List(c.Request.Context(), communeID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetByID retrieves an agent by ID.
// GET /api/v1/admin/agents/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Update updates an existing agent.
// PUT /api/v1/admin/agents/:id
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Update(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SetActive activates or deactivates an agent.
// PATCH /api/v1/admin/agents/:id/active?value=false
func (h *Handler) SetActive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	value, err := strconv.ParseBool(c.DefaultQuery("value", "true"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid active value", nil)
		return
	}

	result, err := h.svc.SetActive(c.Request.Context(), id, value)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// StatsByCommune aggregates quota load of a commune's agents.
// GET /api/v1/admin/agents/stats/:communeId
func (h *Handler) StatsByCommune(c *gin.Context) {
	communeID, err := uuid.Parse(c.Param("communeId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid commune ID", nil)
		return
	}

	result, err := h.svc.StatsByCommune(c.Request.Context(), communeID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
