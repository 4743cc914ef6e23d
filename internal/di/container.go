package di

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hackportal/portal/internal/handler"
	"github.com/hackportal/portal/internal/realtime"
	"github.com/hackportal/portal/internal/repository"
	"github.com/hackportal/portal/internal/resolver"
	"github.com/hackportal/portal/internal/service"
	"github.com/hackportal/portal/internal/tenancy"
	"github.com/hackportal/portal/pkg/config"
	"github.com/hackportal/portal/pkg/database"
	"github.com/hackportal/portal/pkg/kafka"
	"github.com/hackportal/portal/pkg/logger"
	"github.com/hackportal/portal/pkg/middleware"
	"github.com/hackportal/portal/pkg/redis"
)

// Container holds all dependencies for the portal
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	// Infrastructure
	DB       *database.PostgresDB
	Redis    *redis.Client
	Producer *kafka.Producer
	Registry *prometheus.Registry
	Audit    *middleware.AuditLogger

	// Repositories
	Stores *repository.Stores

	// Services
	EventService     service.EventService
	StatusService    service.StatusService
	CatalogueService service.CatalogueService

	// Realtime
	Resolver *resolver.Resolver
	Hub      *realtime.Hub

	// Handlers
	HealthHandler     *handler.HealthHandler
	EventHandler      *handler.EventHandler
	LighthouseHandler *handler.LighthouseHandler
	CatalogueHandler  *handler.CatalogueHandler
	LiveHandler       *handler.LiveHandler
}

// ContainerConfig contains configuration for building the container.
// DB, Redis and Producer are optional; Stores is required.
type ContainerConfig struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *database.PostgresDB
	Redis    *redis.Client
	Producer *kafka.Producer
	Stores   *repository.Stores
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	c := &Container{
		Config:   cfg.Config,
		Logger:   log,
		DB:       cfg.DB,
		Redis:    cfg.Redis,
		Producer: cfg.Producer,
		Stores:   cfg.Stores,
		Registry: prometheus.NewRegistry(),
	}
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize services
	var publisher service.StatusPublisher = service.NoopStatusPublisher{}
	if c.Producer != nil {
		publisher = service.NewKafkaStatusPublisher(c.Producer, cfg.Config.Kafka.StatusTopic, log)
	}
	c.EventService = service.NewEventService(c.Stores.Events)
	c.StatusService = service.NewStatusService(c.Stores, &service.StatusServiceConfig{
		FloodScope: service.FloodScope(cfg.Config.Mentor.FloodScope),
		Publisher:  publisher,
		Logger:     log,
	})
	c.CatalogueService = service.NewCatalogueService(c.Stores)

	// Initialize realtime
	c.Resolver = resolver.New(c.Stores.Events, resolver.WithHeader(cfg.Config.Tenancy.EventHeader))

	var bus realtime.Bus = realtime.NewLocalBus()
	if cfg.Config.Realtime.Bus == config.BusRedis && c.Redis != nil {
		bus = realtime.NewRedisBus(c.Redis, cfg.Config.Realtime.Channel, log)
	}
	rt := cfg.Config.Realtime
	c.Hub = realtime.NewHub(c.StatusService, bus, realtime.NewMetrics(c.Registry), log, realtime.Config{
		SendBuffer:      rt.SendBuffer,
		PingInterval:    rt.PingInterval,
		PongWait:        rt.PongWait,
		WriteTimeout:    rt.WriteTimeout,
		MaxMessageBytes: rt.MaxMessageBytes,
		ReadLimit:       rt.ReadLimit,
	})

	auditCfg := middleware.DefaultAuditConfig(nil)
	if c.DB != nil {
		auditCfg.DB = c.DB.Pool()
	}
	auditCfg.Logger = log
	auditCfg.EventID = func(ctx *gin.Context) string {
		if event, ok := tenancy.Event(ctx); ok {
			return event.ID
		}
		return ""
	}
	c.Audit = middleware.NewAuditLogger(auditCfg)

	// Initialize handlers
	checks := map[string]handler.Checker{}
	if c.DB != nil {
		checks["postgres"] = c.DB
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	c.HealthHandler = handler.NewHealthHandler(checks)
	c.EventHandler = handler.NewEventHandler(c.EventService)
	c.LighthouseHandler = handler.NewLighthouseHandler(c.StatusService, log)
	c.CatalogueHandler = handler.NewCatalogueHandler(c.CatalogueService, log)
	c.LiveHandler = handler.NewLiveHandler(c.Hub, rt.AllowedOrigins, log)

	return c
}

// Start connects the hub to its bus
func (c *Container) Start(ctx context.Context) error {
	return c.Hub.Start(ctx)
}

// Router builds the HTTP engine
func (c *Container) Router() *gin.Engine {
	tc := c.Config.Tenancy
	cors := middleware.DefaultCORSConfig()
	if len(c.Config.Realtime.AllowedOrigins) > 0 {
		cors.AllowOrigins = c.Config.Realtime.AllowedOrigins
	}

	var jwt *middleware.JWTConfig
	if c.Config.JWT.Secret != "" {
		jwt = &middleware.JWTConfig{
			Secret:    c.Config.JWT.Secret,
			Issuer:    c.Config.JWT.Issuer,
			SkipPaths: []string{"/health", "/ready", "/metrics"},
			Optional:  true,
		}
	}

	return handler.NewRouter(&handler.RouterConfig{
		Logger: c.Logger,
		Boundary: tenancy.Boundary(tenancy.Config{
			Resolver:    c.Resolver,
			ExemptPaths: tc.ExemptPaths,
			Strict:      tc.Strict,
			Logger:      c.Logger,
		}),
		Audit:       middleware.AuditMiddleware(c.Audit),
		JWT:         jwt,
		CORS:        cors,
		Gatherer:    c.Registry,
		Health:      c.HealthHandler,
		Events:      c.EventHandler,
		Lighthouses: c.LighthouseHandler,
		Catalogue:   c.CatalogueHandler,
		Live:        c.LiveHandler,
	})
}

// Close releases the hub and infrastructure in reverse order of use
func (c *Container) Close() {
	if err := c.Hub.Close(); err != nil {
		c.Logger.Warn("failed to close hub", zap.Error(err))
	}
	_ = c.Audit.Close()
	if c.Producer != nil {
		if err := c.Producer.Flush(context.Background()); err != nil {
			c.Logger.Warn("failed to flush kafka producer", zap.Error(err))
		}
		c.Producer.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
