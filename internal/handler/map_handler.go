package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/whisker-watch-go/internal/engine"
	"github.com/jengzang/whisker-watch-go/internal/models"
	"github.com/jengzang/whisker-watch-go/internal/service"
	"github.com/jengzang/whisker-watch-go/pkg/response"
)

// MapHandler exposes map sessions over HTTP
type MapHandler struct {
	service *service.MapService
}

// NewMapHandler creates a new map handler
func NewMapHandler(service *service.MapService) *MapHandler {
	return &MapHandler{service: service}
}

// sessionError maps service errors to HTTP responses
func sessionError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, "Session not found")
	case errors.Is(err, engine.ErrNoSurface):
		response.BadRequest(c, message, err)
	default:
		response.InternalError(c, message, err)
	}
}

// CreateSession handles POST /api/v1/sessions
func (h *MapHandler) CreateSession(c *gin.Context) {
	var opts models.SessionOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	st, err := h.service.Create(c.Request.Context(), opts)
	if err != nil {
		sessionError(c, "Failed to create session", err)
		return
	}
	response.Created(c, st)
}

// DeleteSession handles DELETE /api/v1/sessions/:id
func (h *MapHandler) DeleteSession(c *gin.Context) {
	if err := h.service.Delete(c.Param("id")); err != nil {
		sessionError(c, "Failed to close session", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetFrame handles GET /api/v1/sessions/:id/frame.png
func (h *MapHandler) GetFrame(c *gin.Context) {
	frame, err := h.service.Frame(c.Param("id"))
	if err != nil {
		sessionError(c, "Failed to render frame", err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", frame)
}

// GetViewport handles GET /api/v1/sessions/:id/viewport
func (h *MapHandler) GetViewport(c *gin.Context) {
	st, err := h.service.State(c.Param("id"))
	if err != nil {
		sessionError(c, "Failed to get session", err)
		return
	}
	response.Success(c, st)
}

// PostEvents handles POST /api/v1/sessions/:id/events
func (h *MapHandler) PostEvents(c *gin.Context) {
	var req models.EventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid events", err)
		return
	}

	notes, err := h.service.Dispatch(c.Param("id"), req.Events)
	if err != nil {
		sessionError(c, "Failed to dispatch events", err)
		return
	}
	response.Success(c, gin.H{"notifications": notes})
}

// FlyTo handles POST /api/v1/sessions/:id/fly-to
func (h *MapHandler) FlyTo(c *gin.Context) {
	var req models.FlyToRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	if err := h.service.FlyTo(c.Param("id"), *req.Lat, *req.Lng, *req.Zoom); err != nil {
		sessionError(c, "Failed to start animation", err)
		return
	}
	c.Status(http.StatusAccepted)
}

// FitAll handles POST /api/v1/sessions/:id/fit-all
func (h *MapHandler) FitAll(c *gin.Context) {
	ok, err := h.service.FitAll(c.Param("id"))
	if err != nil {
		sessionError(c, "Failed to fit markers", err)
		return
	}
	response.Success(c, gin.H{"animating": ok})
}

// SetLayers handles PUT /api/v1/sessions/:id/layers
func (h *MapHandler) SetLayers(c *gin.Context) {
	var req models.LayersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	st, err := h.service.SetLayers(c.Param("id"), req)
	if err != nil {
		sessionError(c, "Failed to update layers", err)
		return
	}
	response.Success(c, st)
}
