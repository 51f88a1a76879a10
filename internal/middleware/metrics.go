package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/takas_swap_engine/internal/metrics"
)

// RequestMetrics counts requests by route template, method and status.
func RequestMetrics(m *metrics.Collectors) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Request(route, c.Request.Method, strconv.Itoa(c.Writer.Status()))
	}
}
