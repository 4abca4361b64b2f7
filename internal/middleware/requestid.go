package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey = "requestId"
	sessionIDKey = "sessionId"

	RequestIDHeader = "X-Request-Id"
	SessionIDHeader = "X-Session-Id"
)

type contextKey string

const (
	requestIDContextKey contextKey = "request_id"
	sessionIDContextKey contextKey = "session_id"
)

// RequestID assigns a request id and mirrors it onto the request context so
// code below the handler can log it without gin.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// SessionID resolves the caller's session, minting one when the header is
// absent. The id is echoed so clients can pin later requests to it.
func SessionID() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionIDHeader)
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		c.Set(sessionIDKey, sessionID)
		c.Writer.Header().Set(SessionIDHeader, sessionID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), sessionIDContextKey, sessionID))
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	if value, ok := c.Get(requestIDKey); ok {
		if requestID, ok := value.(string); ok {
			return requestID
		}
	}
	return ""
}

func GetSessionID(c *gin.Context) string {
	if value, ok := c.Get(sessionIDKey); ok {
		if sessionID, ok := value.(string); ok {
			return sessionID
		}
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(requestIDContextKey).(string); ok {
		return requestID
	}
	return ""
}

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if sessionID, ok := ctx.Value(sessionIDContextKey).(string); ok {
		return sessionID
	}
	return ""
}
