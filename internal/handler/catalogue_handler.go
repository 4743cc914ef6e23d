package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hackportal/portal/internal/service"
	"github.com/hackportal/portal/pkg/logger"
	"github.com/hackportal/portal/pkg/response"
)

// CatalogueHandler lists the current event's venue data. The event comes
// from the request context, so these handlers never name it.
type CatalogueHandler struct {
	catalogueService service.CatalogueService
	log              *logger.Logger
}

// NewCatalogueHandler creates a new CatalogueHandler
func NewCatalogueHandler(catalogueService service.CatalogueService, log *logger.Logger) *CatalogueHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &CatalogueHandler{catalogueService: catalogueService, log: log.Named("catalogue_handler")}
}

// ListTables handles GET /api/v1/events/:event_id/tables
func (h *CatalogueHandler) ListTables(c *gin.Context) {
	result, err := h.catalogueService.ListTables(c.Request.Context())
	if err != nil {
		internalError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// ListTeams handles GET /api/v1/events/:event_id/teams
func (h *CatalogueHandler) ListTeams(c *gin.Context) {
	result, err := h.catalogueService.ListTeams(c.Request.Context())
	if err != nil {
		internalError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// ListHardware handles GET /api/v1/events/:event_id/hardware
func (h *CatalogueHandler) ListHardware(c *gin.Context) {
	result, err := h.catalogueService.ListHardware(c.Request.Context())
	if err != nil {
		internalError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// ListAvailableDevices handles GET /api/v1/events/:event_id/hardware/:id/devices
func (h *CatalogueHandler) ListAvailableDevices(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("Hardware ID is required"))
		return
	}

	result, err := h.catalogueService.ListAvailableDevices(c.Request.Context(), id)
	if err != nil {
		internalError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// ListWorkshops handles GET /api/v1/events/:event_id/workshops
func (h *CatalogueHandler) ListWorkshops(c *gin.Context) {
	result, err := h.catalogueService.ListWorkshops(c.Request.Context())
	if err != nil {
		internalError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}
