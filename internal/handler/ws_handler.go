package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hackportal/portal/internal/realtime"
	"github.com/hackportal/portal/internal/tenancy"
	"github.com/hackportal/portal/pkg/logger"
	"github.com/hackportal/portal/pkg/middleware"
	"github.com/hackportal/portal/pkg/response"
)

// LiveHandler upgrades lighthouse room connections
type LiveHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewLiveHandler creates a new LiveHandler. An empty origin list accepts
// any origin.
func NewLiveHandler(hub *realtime.Hub, allowedOrigins []string, log *logger.Logger) *LiveHandler {
	if log == nil {
		log = logger.NewNop()
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &LiveHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		log: log.Named("live_handler"),
	}
}

// Serve joins the connection to a lighthouse room until it disconnects.
// The event slot stays bound for the life of the connection.
// GET /ws/events/:event_id/lighthouses/:room
func (h *LiveHandler) Serve(c *gin.Context) {
	event, ok := tenancy.Event(c)
	if !ok {
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeEventRequired, "Event is required"))
		return
	}

	room, err := realtime.ParseRoom(event.ID, c.Param("room"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		h.log.WithContext(c.Request.Context()).Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	if err := h.hub.Serve(c.Request.Context(), conn, room); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		h.log.WithContext(c.Request.Context()).Debug("connection ended", zap.String("room", room.Name), zap.Error(err))
	}
}
