package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/dto"
	"github.com/hackportal/portal/internal/service"
	"github.com/hackportal/portal/pkg/response"
)

// EventHandler handles event administration HTTP requests
type EventHandler struct {
	eventService service.EventService
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(eventService service.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// Create handles event creation
// POST /api/v1/admin/events
func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	// Validate slug format
	if valid, msg := req.ValidateSlug(); !valid {
		c.JSON(http.StatusBadRequest, response.Error("INVALID_SLUG", msg))
		return
	}

	result, err := h.eventService.Create(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventAlreadyExists):
			c.JSON(http.StatusConflict, response.Error("EVENT_EXISTS", "Event with this slug already exists"))
		case errors.Is(err, domain.ErrInvalidEvent):
			c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeValidationFailed, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		}
		return
	}

	c.JSON(http.StatusCreated, response.Success(result))
}

// GetByID handles retrieving an event by ID
// GET /api/v1/admin/events/:id
func (h *EventHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("Event ID is required"))
		return
	}

	result, err := h.eventService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Event not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// List handles retrieving all events with pagination
// GET /api/v1/admin/events
func (h *EventHandler) List(c *gin.Context) {
	var query dto.ListEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.eventService.List(c.Request.Context(), &query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(result.Events, result.Page, result.Limit, int64(result.TotalCount)))
}

// Activate makes an event the single active one
// POST /api/v1/admin/events/:id/activate
func (h *EventHandler) Activate(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("Event ID is required"))
		return
	}

	result, err := h.eventService.Activate(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Event not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}
