package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"

	ctxKeyRequestID = "request_id"
	ctxKeyTraceID   = "trace_id"
)

// RequestID echoes or assigns X-Request-Id and exposes the active trace id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set(ctxKeyRequestID, reqID)
		c.Writer.Header().Set(headerRequestID, reqID)

		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID := sc.TraceID().String()
			c.Set(ctxKeyTraceID, traceID)
			c.Writer.Header().Set(headerTraceID, traceID)
		}
		c.Next()
	}
}
