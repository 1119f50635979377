package api

import (
	"idea-research/internal/middleware"
	"time"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(handlers))

	// Add CORS middleware
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		if handlers.devTokens {
			api.POST("/auth/token", handlers.IssueTokenHandler)
		}

		// Authentication applies only when a JWT secret is configured
		research := api.Group("/research")
		research.Use(middleware.AuthenticateUser(handlers.jwtService))
		{
			research.GET("/approaches", handlers.ListApproachesHandler)

			research.POST("/tasks", handlers.EnqueueTaskHandler)
			research.GET("/tasks/:taskId", handlers.GetTaskStatusHandler)
			research.POST("/tasks/:taskId/cancel", handlers.CancelTaskHandler)
			research.GET("/tasks/:taskId/result", handlers.GetTaskResultHandler)

			research.GET("/sessions/:sessionId/tasks", handlers.GetSessionTasksHandler)
			research.GET("/sessions/:sessionId/strategies", handlers.GetSessionStrategiesHandler)

			research.POST("/workflows", handlers.StartWorkflowHandler)

			research.POST("/strategies", handlers.StartStrategyHandler)
			research.POST("/strategies/run-sync", handlers.RunStrategySyncHandler)
			research.GET("/strategies/:strategyId", handlers.GetStrategyHandler)
			research.GET("/strategies/:strategyId/report", handlers.GetStrategyReportHandler)

			research.GET("/ws", handlers.ProgressStreamHandler)
		}
	}

	if handlers.storageDir != "" {
		router.Static("/storage", handlers.storageDir)
	}

	if handlers.metrics != nil {
		router.GET("/metrics", gin.WrapH(handlers.metrics))
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "queueLength": handlers.worker.QueueLength()})
	})

	return router
}

// requestLogger logs each request through the handlers' structured logger
func requestLogger(handlers *Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		handlers.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Millisecond))
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
