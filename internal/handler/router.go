package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackportal/portal/pkg/logger"
	"github.com/hackportal/portal/pkg/middleware"
)

// RouterConfig holds everything the router mounts
type RouterConfig struct {
	Logger *logger.Logger
	// Boundary binds the event for every non-exempt request
	Boundary gin.HandlerFunc
	// Audit records state-changing requests; optional
	Audit gin.HandlerFunc
	// JWT is nil when authentication is disabled; admin routes then refuse
	// every request
	JWT      *middleware.JWTConfig
	CORS     middleware.CORSConfig
	Gatherer prometheus.Gatherer

	Health      *HealthHandler
	Events      *EventHandler
	Lighthouses *LighthouseHandler
	Catalogue   *CatalogueHandler
	Live        *LiveHandler
}

// NewRouter builds the HTTP engine. Recovery sits outside the boundary so
// the boundary's cleanup runs while a handler panic unwinds.
func NewRouter(cfg *RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log, "/health", "/ready", "/metrics"))
	r.Use(middleware.CORSWithConfig(cfg.CORS))
	if cfg.JWT != nil {
		r.Use(middleware.JWTMiddleware(cfg.JWT))
	}
	if cfg.Boundary != nil {
		r.Use(cfg.Boundary)
	}
	if cfg.Audit != nil {
		r.Use(cfg.Audit)
	}

	r.GET("/health", cfg.Health.Health)
	r.GET("/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true})))
	}

	v1 := r.Group("/api/v1")

	// the event is taken from the path here, and from the header, query or
	// the active event on the unprefixed routes
	registerEventRoutes(v1.Group("/events/:event_id"), cfg)
	registerEventRoutes(v1, cfg)

	admin := v1.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.GET("/events", cfg.Events.List)
		admin.POST("/events", cfg.Events.Create)
		admin.GET("/events/:id", cfg.Events.GetByID)
		admin.POST("/events/:id/activate", cfg.Events.Activate)
	}

	ws := r.Group("/ws")
	{
		ws.GET("/events/:event_id/lighthouses/:room", cfg.Live.Serve)
		ws.GET("/lighthouses/:room", cfg.Live.Serve)
	}

	return r
}

func registerEventRoutes(g *gin.RouterGroup, cfg *RouterConfig) {
	g.GET("/lighthouses", cfg.Lighthouses.List)
	g.GET("/lighthouses/:table", cfg.Lighthouses.Get)
	g.PATCH("/lighthouses/:table", cfg.Lighthouses.Update)
	g.GET("/mentor-requests", cfg.Lighthouses.ListMentorRequests)

	g.GET("/tables", cfg.Catalogue.ListTables)
	g.GET("/teams", cfg.Catalogue.ListTeams)
	g.GET("/hardware", cfg.Catalogue.ListHardware)
	g.GET("/hardware/:id/devices", cfg.Catalogue.ListAvailableDevices)
	g.GET("/workshops", cfg.Catalogue.ListWorkshops)
}
