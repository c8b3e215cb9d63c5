package websocket

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tila/internal/core"
	"tila/pkg/logger"
	"tila/pkg/models"
)

// Handler upgrades authenticated requests onto the hub
type Handler struct {
	hub            *Hub
	authSvc        core.AuthService
	allowedOrigins []string
	// cookies ride along on cross-site requests, so they only count as
	// credentials when the origin list is restricted
	cookieAuth bool
	upgrader   websocket.Upgrader
}

// NewHandler creates the badge notification endpoint
func NewHandler(hub *Hub, authSvc core.AuthService, allowedOrigins []string) *Handler {
	if allowedOrigins == nil {
		allowedOrigins = []string{"*"}
	}
	h := &Handler{
		hub:            hub,
		authSvc:        authSvc,
		allowedOrigins: allowedOrigins,
		cookieAuth:     !unrestricted(allowedOrigins),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// HandleWebSocket serves GET /ws/badges
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token, err := extractToken(c, h.cookieAuth)
	if err != nil {
		h.sendWebSocketError(c, models.NewUnauthorizedError(err.Error()))
		return
	}

	principal, err := h.authSvc.ValidateToken(c.Request.Context(), token)
	if err != nil {
		h.sendWebSocketError(c, models.NewUnauthorizedError("invalid or expired token"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// gorilla already wrote the HTTP error response
		logger.WithFields(map[string]interface{}{"user_id": principal.UserID}).WithError(err).
			Warn("websocket upgrade failed")
		return
	}

	h.hub.ServeClient(conn, principal.UserID)
}

// extractToken looks at the query string, then the Authorization header, then
// the token cookie when allowCookie is set
func extractToken(c *gin.Context, allowCookie bool) (string, error) {
	if token := c.Query("token"); token != "" {
		return token, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1], nil
		}
	}

	if allowCookie {
		cookie, err := c.Request.Cookie("token")
		if err == nil && cookie.Value != "" {
			return cookie.Value, nil
		}
	}

	return "", fmt.Errorf("no authentication token provided")
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Non-browser clients may omit Origin
	if origin == "" {
		return true
	}

	if u, err := url.Parse(origin); err == nil {
		host := strings.ToLower(u.Hostname())
		if host == "localhost" || host == "127.0.0.1" {
			return true
		}
	}

	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func unrestricted(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// sendWebSocketError rejects the handshake before the upgrade
func (h *Handler) sendWebSocketError(c *gin.Context, appErr *models.AppError) {
	logger.WithFields(map[string]interface{}{
		"status": appErr.StatusCode,
		"code":   appErr.Code,
	}).Warn("websocket rejected")

	c.JSON(appErr.StatusCode, gin.H{
		"error":     appErr.Code,
		"message":   appErr.Message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
