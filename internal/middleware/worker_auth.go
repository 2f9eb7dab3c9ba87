package middleware

import (
	"crypto/subtle"
	"net/http"

	"aimint-backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WorkerAuthMiddleware authenticates the off-chain AI worker by its
// configured bearer token. The raw token doubles as the explicit caller
// identity the hub's guarded transitions check.
type WorkerAuthMiddleware struct {
	logger *logrus.Logger
}

// NewWorkerAuthMiddleware creates the worker identity middleware.
func NewWorkerAuthMiddleware(logger *logrus.Logger) *WorkerAuthMiddleware {
	return &WorkerAuthMiddleware{logger: logger}
}

// RequireWorker rejects callers that do not present the worker token.
func (a *WorkerAuthMiddleware) RequireWorker() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := ""
		if config.AppConfig != nil {
			expected = config.AppConfig.Worker.Token
		}

		token, ok := bearerToken(c)
		if expected == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("Worker auth failed")

			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Worker authentication required",
				"code":    "INVALID_WORKER_TOKEN",
			})
			c.Abort()
			return
		}

		c.Set("worker_identity", token)
		c.Next()
	}
}
