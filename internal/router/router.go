package router

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"aimint-backend/internal/app"
	"aimint-backend/internal/config"
	"aimint-backend/internal/handlers"
	"aimint-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// corsMiddleware applies the configured origin whitelist.
// Priority: CORS_ALLOWED_ORIGINS env > yaml config > allow all.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		var allowedOrigins []string
		allowCredentials := true
		maxAge := 3600

		if envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); envOrigins != "" {
			for _, o := range strings.Split(envOrigins, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		} else if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
			if config.AppConfig.CORS.MaxAge > 0 {
				maxAge = config.AppConfig.CORS.MaxAge
			}
		} else {
			allowedOrigins = []string{"*"}
		}

		if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := false
			for _, a := range allowedOrigins {
				if strings.TrimSpace(a) == origin {
					allowed = true
					break
				}
			}
			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
			} else {
				logrus.WithFields(logrus.Fields{
					"request_origin": origin,
					"path":           c.Request.URL.Path,
					"method":         c.Request.Method,
				}).Warn("🚫 CORS: request blocked, origin not in whitelist")
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetupRouter wires the full HTTP surface.
func SetupRouter(container *app.ServiceContainer, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	authMw := middleware.NewAuthMiddleware(logger)
	workerMw := middleware.NewWorkerAuthMiddleware(logger)
	adminMw := middleware.NewAdminAuthMiddleware(logger)

	authHandler := handlers.NewAuthHandler()
	adminAuthHandler := handlers.NewAdminAuthHandler()
	requestHandler := handlers.NewMintRequestHandler(container.Hub)
	workerHandler := handlers.NewWorkerHandler(container.Hub)
	tokenHandler := handlers.NewTokenHandler(container.Minter)
	wsHandler := handlers.NewWebSocketHandler(container.Push)
	adminHandler := handlers.NewAdminHandler(container.Hub)

	r.GET("/health", handlers.HealthHandler)
	r.GET("/ready", handlers.ReadyHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/auth/nonce", authHandler.GenerateNonceHandler)
		api.POST("/auth/login", authHandler.AuthenticateHandler)
		api.POST("/admin/login", adminAuthHandler.LoginHandler)

		api.GET("/ws", wsHandler.SubscribeHandler)

		// Public read surface.
		api.GET("/chains", requestHandler.ListChainsHandler)
		api.GET("/stats", requestHandler.StatsHandler)
		api.GET("/requests/:id", requestHandler.GetHandler)
		api.GET("/chains/:chainId/tokens", tokenHandler.ListByOwnerHandler)
		api.GET("/chains/:chainId/tokens/:tokenId", tokenHandler.GetTokenHandler)
		api.GET("/chains/:chainId/tokens/by-request/:requestId", tokenHandler.GetByRequestHandler)
		api.POST("/chains/:chainId/tokens/batch", tokenHandler.BatchMetadataHandler)
		api.GET("/chains/:chainId/collection", tokenHandler.CollectionHandler)

		// Requester surface.
		user := api.Group("")
		user.Use(authMw.RequireAuth())
		{
			user.POST("/requests", requestHandler.SubmitHandler)
			user.GET("/my/requests", requestHandler.ListMineHandler)
			user.POST("/requests/:id/cancel", requestHandler.CancelHandler)
			user.POST("/requests/:id/retry", requestHandler.RetryHandler)
			user.PUT("/chains/:chainId/tokens/:tokenId/metadata", tokenHandler.UpdateMetadataHandler)
			user.PUT("/chains/:chainId/tokens/:tokenId/royalty", tokenHandler.SetRoyaltyHandler)
			user.POST("/chains/:chainId/tokens/transfer-batch", tokenHandler.TransferBatchHandler)
		}

		// Worker callback surface.
		worker := api.Group("/worker")
		worker.Use(workerMw.RequireWorker())
		{
			worker.GET("/requests", requestHandler.ListByStatusHandler)
			worker.GET("/requests/pending", workerHandler.PendingHandler)
			worker.POST("/requests/:id/processing", workerHandler.MarkProcessingHandler)
			worker.POST("/requests/:id/complete", workerHandler.CompleteGenerationHandler)
			worker.POST("/requests/:id/dispatch", workerHandler.DispatchHandler)
		}

		// Owner surface.
		admin := api.Group("/admin")
		admin.Use(adminMw.RequireAdmin())
		{
			admin.POST("/chains", adminHandler.RegisterChainHandler)
			admin.PUT("/chains/:chainId/enabled", adminHandler.SetChainEnabledHandler)
			admin.PUT("/fee", adminHandler.SetFeeHandler)
			admin.POST("/pause", adminHandler.PauseHandler)
			admin.POST("/unpause", adminHandler.UnpauseHandler)
			admin.POST("/withdraw", adminHandler.WithdrawFeesHandler)
			admin.GET("/requests", requestHandler.ListByStatusHandler)
		}
	}

	return r
}
