package api

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/deepresearch/pkg/ratelimit"
)

// maxBodyBytes is the 1 MiB request body size limit from spec §6.
const maxBodyBytes = 1 << 20

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// rateLimitMiddleware enforces the admission-layer rate limit for key,
// responding 429 with Retry-After on rejection. It must run before any
// other admission step.
func rateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := limiter.Allow(c.ClientIP())
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:   "rate_limit",
				Message: "too many requests",
			})
			return
		}
		c.Next()
	}
}

// requireValidSessionID validates the :id path parameter as a canonical
// UUID before any handler runs.
func requireValidSessionID(c *gin.Context) {
	id := c.Param("id")
	if !uuidPattern.MatchString(id) {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid session id",
		})
		return
	}
	c.Next()
}

// bodySizeLimit enforces the 1 MiB request body cap.
func bodySizeLimit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	c.Next()
}

// corsMiddleware enables CORS for all origins, per spec §6. Hand-rolled:
// no CORS middleware is a declared dependency anywhere in the example
// pack, so this is the one ambient concern implemented directly.
func corsMiddleware(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}
