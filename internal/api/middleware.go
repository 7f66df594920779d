package api

import (
	"net/http"
	"strconv"
	"time"

	"clearance-connect/internal/models"
	"clearance-connect/internal/util"

	"github.com/gin-gonic/gin"
)

const actorContextKey = "actor"

// identityMiddleware trusts the gateway-injected identity headers.
// Authentication itself happens upstream; this service only needs to
// know who the caller is and in which role.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.GetHeader("X-User-ID")
		role := models.Role(c.GetHeader("X-User-Role"))

		if idStr == "" {
			c.Next()
			return
		}

		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			c.Next()
			return
		}

		switch role {
		case models.RoleCustomer, models.RoleSeller, models.RoleAdmin:
			c.Set(actorContextKey, models.Actor{ID: id, Role: role})
		}
		c.Next()
	}
}

// requireRole aborts with 401/403 unless the request carries an actor
// in one of the given roles.
func requireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Message: "Authentication required",
			})
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, Response{
			Success: false,
			Message: "Insufficient permissions",
		})
	}
}

func actorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
