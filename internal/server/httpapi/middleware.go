package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"keygate/internal/common"
	"keygate/internal/logging"
	"keygate/internal/server/auth"
)

const requestIDHeader = "X-Request-Id"

// actorKey is the gin context key holding the authenticated platform
// identity.
const actorKey = "actor_id"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(requestIDHeader, id)
		c.Writer.Header().Set(requestIDHeader, id)

		c.Next()
	}
}

func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"client_ip", c.ClientIP(),
			"status", status,
			"latency", time.Since(start),
			"request_id", c.Writer.Header().Get(requestIDHeader),
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			log.Error(ctx, "http request", args...)
		case status >= 400:
			log.Warn(ctx, "http request", args...)
		default:
			log.Info(ctx, "http request", args...)
		}
	}
}

// authenticate verifies the Bearer service token and stores the acting
// identity on the context.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.ServiceTokenHeaderName)
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		actorID, err := auth.GetActorIDFromToken(strings.TrimPrefix(header, "Bearer "), s.secretKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		c.Set(actorKey, actorID)
		c.Next()
	}
}

func actorID(c *gin.Context) string {
	return c.GetString(actorKey)
}

// requireStaff admits staff, admins and the super-admin.
func (s *Server) requireStaff() gin.HandlerFunc {
	return s.requireTier(func(c *gin.Context) (bool, error) {
		return s.svcs.Roles.IsStaff(c.Request.Context(), actorID(c))
	})
}

// requireAdmin admits admins and the super-admin.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return s.requireTier(func(c *gin.Context) (bool, error) {
		return s.svcs.Roles.IsAdmin(c.Request.Context(), actorID(c))
	})
}

// requireSuperAdmin admits only the configured super-admin identity.
func (s *Server) requireSuperAdmin() gin.HandlerFunc {
	return s.requireTier(func(c *gin.Context) (bool, error) {
		return s.svcs.Roles.IsSuperAdmin(actorID(c)), nil
	})
}

func (s *Server) requireTier(check func(c *gin.Context) (bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := check(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient_tier"})
			return
		}
		c.Next()
	}
}
