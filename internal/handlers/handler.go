package handlers

import (
	"rfsentry/internal/logger"
	"rfsentry/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires the HTTP layer to services, logging and the websocket hub.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	hub      *Hub
}

// NewHandler constructs a new HTTP handler with dependencies. hub may be
// nil in tests that don't exercise the websocket stream.
func NewHandler(services *service.Service, log *logger.Logger, hub *Hub) *Handler {
	return &Handler{services: services, log: log, hub: hub}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Live alert/status stream — same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerSentryRoutes(api)
		h.registerDeviceRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerSentryRoutes(api *gin.RouterGroup) {
	sentry := api.Group("/sentry")
	{
		sentry.GET("/status", h.getStatus)
		sentry.POST("/arm", h.armSentry)
		sentry.POST("/disarm", h.disarmSentry)
		// Body example: {"device_id":"AA:BB:CC:DD:EE:FF"} — empty body uses the built-in test device
		sentry.POST("/test", h.triggerTest)
		sentry.GET("/policy", h.getPolicy)
		sentry.PUT("/policy", h.updatePolicy)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	devices := api.Group("/devices")
	{
		devices.GET("/", h.getDevices)
		devices.GET("/alerted", h.getAlertedDevices)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
