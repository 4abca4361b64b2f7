package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// quietPaths are health check endpoints logged only when they fail.
var quietPaths = map[string]struct{}{
	"/api/health": {},
	"/metrics":    {},
}

// Logging writes one key=value line per request after the handler ran.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		if _, quiet := quietPaths[path]; quiet && status < http.StatusBadRequest {
			return
		}

		event := "request"
		if status >= http.StatusInternalServerError {
			event = "request_failed"
		}

		traceID := "none"
		if sc := oteltrace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}

		log.Printf(
			"request_id=%s session_id=%s trace_id=%s component=http event=%s method=%s path=%s status=%d bytes=%d duration_ms=%d errors=%q",
			GetRequestID(c),
			GetSessionID(c),
			traceID,
			event,
			c.Request.Method,
			path,
			status,
			c.Writer.Size(),
			time.Since(started).Milliseconds(),
			c.Errors.ByType(gin.ErrorTypeAny).String(),
		)
	}
}
