package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestIDPropagatesToContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), SessionID())

	var fromContext, sessionFromContext string
	router.GET("/ping", func(c *gin.Context) {
		fromContext = RequestIDFromContext(c.Request.Context())
		sessionFromContext = SessionIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	req.Header.Set(SessionIDHeader, "sess-abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if fromContext != "req-123" {
		t.Fatalf("expected request id in context, got %q", fromContext)
	}
	if sessionFromContext != "sess-abc" {
		t.Fatalf("expected session id in context, got %q", sessionFromContext)
	}
	if rec.Header().Get(SessionIDHeader) != "sess-abc" {
		t.Fatalf("expected session id echoed, got %q", rec.Header().Get(SessionIDHeader))
	}
}

func TestSessionIDGeneratedWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SessionID())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetSessionID(c))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Body.String() == "" {
		t.Fatalf("expected a generated session id")
	}
	if rec.Header().Get(SessionIDHeader) != rec.Body.String() {
		t.Fatalf("expected header and context session ids to match")
	}
}
