package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"autoparts-service/internal/models"
	"autoparts-service/internal/service"
	"autoparts-service/internal/util"
)

const requesterKey = "requester"

// requesterMiddleware resolves the caller identity from the headers
// the gateway sets after verifying the session. Requests without a
// user id are rejected here; role defaults to customer.
func requesterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		role := c.GetHeader("X-User-Role")
		if role != models.RoleAdmin {
			role = models.RoleCustomer
		}

		c.Set(requesterKey, service.Requester{
			ID:    userID,
			Email: c.GetHeader("X-User-Email"),
			Role:  role,
		})
		c.Next()
	}
}

// requireAdmin gates admin-only routes
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requesterFrom(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin access required",
			})
			return
		}
		c.Next()
	}
}

func requesterFrom(c *gin.Context) service.Requester {
	r, _ := c.Get(requesterKey)
	requester, _ := r.(service.Requester)
	return requester
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
