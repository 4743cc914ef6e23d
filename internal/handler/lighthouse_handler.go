package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/dto"
	"github.com/hackportal/portal/internal/scoped"
	"github.com/hackportal/portal/internal/service"
	"github.com/hackportal/portal/internal/tenancy"
	"github.com/hackportal/portal/pkg/logger"
	"github.com/hackportal/portal/pkg/response"
	"github.com/hackportal/portal/pkg/telemetry"
)

// LighthouseHandler handles lighthouse and mentor request HTTP requests
type LighthouseHandler struct {
	statusService service.StatusService
	log           *logger.Logger
}

// NewLighthouseHandler creates a new LighthouseHandler
func NewLighthouseHandler(statusService service.StatusService, log *logger.Logger) *LighthouseHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &LighthouseHandler{statusService: statusService, log: log.Named("lighthouse_handler")}
}

// List handles retrieving every lighthouse in the event
// GET /api/v1/events/:event_id/lighthouses
func (h *LighthouseHandler) List(c *gin.Context) {
	event, ok := tenancy.Event(c)
	if !ok {
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeEventRequired, "Event is required"))
		return
	}

	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.lighthouse.list")
	defer span.End()

	result, err := h.statusService.SnapshotAll(ctx, event.ID)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// Get handles retrieving one table's lighthouse
// GET /api/v1/events/:event_id/lighthouses/:table
func (h *LighthouseHandler) Get(c *gin.Context) {
	event, ok := tenancy.Event(c)
	if !ok {
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeEventRequired, "Event is required"))
		return
	}
	table, err := strconv.Atoi(c.Param("table"))
	if err != nil || table < 0 {
		c.JSON(http.StatusBadRequest, response.BadRequest("Table must be a non-negative number"))
		return
	}

	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.lighthouse.get")
	defer span.End()

	result, err := h.statusService.Snapshot(ctx, event.ID, table)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// Update handles a status mutation, the same one a device sends in its room
// PATCH /api/v1/events/:event_id/lighthouses/:table
func (h *LighthouseHandler) Update(c *gin.Context) {
	event, ok := tenancy.Event(c)
	if !ok {
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeEventRequired, "Event is required"))
		return
	}
	table, err := strconv.Atoi(c.Param("table"))
	if err != nil || table < 0 {
		c.JSON(http.StatusBadRequest, response.BadRequest("Table must be a non-negative number"))
		return
	}

	var req dto.StatusMutation
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.lighthouse.update")
	defer span.End()

	result, err := h.statusService.ApplyMutation(ctx, event.ID, table, &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTableNotFound):
			c.JSON(http.StatusNotFound, response.NotFound("Table not found"))
		case errors.Is(err, service.ErrInvalidIPAddress), errors.Is(err, service.ErrEmptyMutation):
			c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		default:
			h.internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// ListMentorRequests handles listing the event's mentor requests
// GET /api/v1/events/:event_id/mentor-requests
func (h *LighthouseHandler) ListMentorRequests(c *gin.Context) {
	event, ok := tenancy.Event(c)
	if !ok {
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeEventRequired, "Event is required"))
		return
	}

	var query dto.ListMentorRequestsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	var status *domain.MentorStatus
	if query.Status != "" {
		parsed, err := domain.ParseMentorStatus(query.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
			return
		}
		status = &parsed
	}

	result, err := h.statusService.ListMentorRequests(c.Request.Context(), event.ID, status)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

func (h *LighthouseHandler) internalError(c *gin.Context, err error) {
	internalError(c, h.log, err)
}

// internalError answers 500. An unscoped query is a defect and is logged
// at error level.
func internalError(c *gin.Context, log *logger.Logger, err error) {
	ctx := c.Request.Context()
	if errors.Is(err, scoped.ErrEventScoping) {
		log.ErrorContext(ctx, "unscoped query", zap.String("path", c.Request.URL.Path), zap.Error(err))
	} else {
		log.WarnContext(ctx, "request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	telemetry.SetSpanError(c.Request.Context(), err)
	c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
}
