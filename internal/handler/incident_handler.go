package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/whisker-watch-go/internal/models"
	"github.com/jengzang/whisker-watch-go/internal/service"
	"github.com/jengzang/whisker-watch-go/pkg/response"
)

// IncidentHandler handles HTTP requests for incidents
type IncidentHandler struct {
	service *service.IncidentService
}

// NewIncidentHandler creates a new incident handler
func NewIncidentHandler(service *service.IncidentService) *IncidentHandler {
	return &IncidentHandler{service: service}
}

// ListIncidents handles GET /api/v1/incidents
func (h *IncidentHandler) ListIncidents(c *gin.Context) {
	var filter models.IncidentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	incidents, err := h.service.List(c.Request.Context(), filter)
	if errors.Is(err, service.ErrInvalidIncident) {
		response.BadRequest(c, "Invalid filter", err)
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to list incidents", err)
		return
	}

	response.Success(c, gin.H{
		"data":  incidents,
		"total": len(incidents),
	})
}

// GetIncident handles GET /api/v1/incidents/:id
func (h *IncidentHandler) GetIncident(c *gin.Context) {
	inc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, "Failed to get incident", err)
		return
	}
	if inc == nil {
		response.NotFound(c, "Incident not found")
		return
	}
	response.Success(c, inc)
}

// CreateIncident handles POST /api/v1/incidents
func (h *IncidentHandler) CreateIncident(c *gin.Context) {
	var req models.CreateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	inc, err := h.service.Create(c.Request.Context(), req)
	if errors.Is(err, service.ErrInvalidIncident) {
		response.BadRequest(c, "Invalid incident", err)
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to create incident", err)
		return
	}
	response.Created(c, inc)
}
