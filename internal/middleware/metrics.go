package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestObserver records request outcomes.
type RequestObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// Metrics records method, route, status and latency for every request.
// WebSocket upgrades are skipped since their duration is the connection's
// lifetime.
func Metrics(observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if observer == nil || c.IsWebsocket() {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		observer.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
