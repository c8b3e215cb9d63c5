package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tila/internal/core"
	"tila/pkg/logger"
	"tila/pkg/metrics"
	"tila/pkg/models"
)

const (
	ctxUserID    = "user_id"
	ctxPrincipal = "principal"
	headerReqID  = "X-Request-ID"
)

// AuthMiddleware validates the bearer token and stores the caller in the context
func AuthMiddleware(authSvc core.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.Failure("missing authorization header"))
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.Failure("invalid authorization format"))
			return
		}

		principal, err := authSvc.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.Failure("unauthorized"))
			return
		}

		c.Set(ctxUserID, principal.UserID)
		c.Set(ctxPrincipal, principal)
		c.Next()
	}
}

// GetUserID extracts user ID from gin context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok
}

// GetPrincipal retrieves the authenticated caller
func GetPrincipal(c *gin.Context) (*models.Principal, bool) {
	v, exists := c.Get(ctxPrincipal)
	if !exists {
		return nil, false
	}
	p, ok := v.(*models.Principal)
	return p, ok
}

// AdminMiddleware ensures the caller has the admin role. Must run after AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, exists := GetPrincipal(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.Failure("unauthorized"))
			return
		}
		if !principal.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, models.Failure("forbidden: admin access required"))
			return
		}
		c.Next()
	}
}

// requestID propagates or assigns X-Request-ID and puts it on the request context
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerReqID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(headerReqID, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// requestLogger logs every request and records it in the HTTP metrics
func requestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		logger.HTTP(c.Request.Method, c.Request.URL.Path, status, int(latency.Milliseconds()))
		m.HTTPRequest(c.Request.Method, route, strconv.Itoa(status), latency)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowOrigin, credentials := matchOrigin(allowedOrigins, origin); allowOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			if credentials {
				c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			c.Writer.Header().Add("Vary", "Origin")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// matchOrigin picks the Access-Control-Allow-Origin value. Only explicitly
// listed origins are echoed back with credentials; the wildcard never is.
func matchOrigin(allowed []string, origin string) (string, bool) {
	if origin == "" {
		return "", false
	}
	wildcard := false
	for _, a := range allowed {
		if a == "*" {
			wildcard = true
			continue
		}
		if strings.EqualFold(a, origin) {
			return origin, true
		}
	}
	if wildcard {
		return "*", false
	}
	return "", false
}
