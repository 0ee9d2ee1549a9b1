package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tripdesk/tripdesk/internal/api/handlers"
	"github.com/tripdesk/tripdesk/internal/api/middleware"
)

type Router struct {
	engine         *gin.Engine
	jwtSecret      string
	gatewayHandler *handlers.GatewayHandler
}

func NewRouter(jwtSecret string, gatewayHandler *handlers.GatewayHandler) *Router {
	return &Router{
		jwtSecret:      jwtSecret,
		gatewayHandler: gatewayHandler,
	}
}

func (r *Router) Setup(mode string) *gin.Engine {
	gin.SetMode(mode)
	r.engine = gin.New()
	r.engine.Use(gin.Recovery())
	r.engine.Use(gin.Logger())
	r.engine.Use(middleware.ErrorHandler())
	r.engine.Use(middleware.Identity(r.jwtSecret))

	r.setupRoutes()
	return r.engine
}

func (r *Router) setupRoutes() {
	api := r.engine.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	entities := api.Group("/entities")
	{
		entities.GET("/:type", r.gatewayHandler.List)
		entities.GET("/:type/:id", r.gatewayHandler.Get)
		entities.POST("/:type", r.gatewayHandler.Create)
		entities.PUT("/:type", r.gatewayHandler.Update)
		entities.PUT("/:type/:id", r.gatewayHandler.Update)
		entities.DELETE("/:type", r.gatewayHandler.Delete)
		entities.DELETE("/:type/:id", r.gatewayHandler.Delete)
	}
}
