package rest

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter - Snapshot API, health checks and the relay endpoint on one engine.
func NewRouter(logger *slog.Logger, handlers *Handlers, relayEndpoint http.Handler, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	router.Use(cors.New(corsConfig(allowedOrigins)))

	router.GET("/ping", handlers.Ping)
	router.GET("/healthz", handlers.Health)
	router.GET("/ws", gin.WrapH(relayEndpoint))

	api := router.Group("/api")
	api.GET("/codes", handlers.NewRoomCode)

	rooms := api.Group("/rooms")
	rooms.POST("", handlers.CreateRoom)
	rooms.GET("/:code", handlers.GetRoom)
	rooms.PUT("/:code", handlers.UpdateRoom)

	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	config := cors.DefaultConfig()
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
	}

	config.AllowHeaders = []string{"Content-Type", "Origin", "Accept"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}

	return config
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	log := logger.With("component", "http")

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.Debug("request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
