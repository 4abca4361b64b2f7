package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(previous) })
	return &buf
}

func TestLoggingSkipsHealthyChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLog(t)

	router := gin.New()
	router.Use(RequestID(), Logging())
	router.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/route", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected healthy check to stay quiet, got %s", buf.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/route", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	router.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	for _, want := range []string{"request_id=req-7", "event=request ", "path=/api/route", "status=200", "bytes=2", "trace_id=none"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in log line, got %s", want, line)
		}
	}
}

func TestLoggingMarksServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLog(t)

	router := gin.New()
	router.Use(Logging())
	router.GET("/api/health", func(c *gin.Context) {
		_ = c.Error(http.ErrHandlerTimeout)
		c.Status(http.StatusServiceUnavailable)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	line := buf.String()
	if !strings.Contains(line, "event=request_failed") || !strings.Contains(line, "status=503") {
		t.Fatalf("expected failed check to be logged, got %s", line)
	}
	if !strings.Contains(line, "timeout") {
		t.Fatalf("expected handler error in log line, got %s", line)
	}
}
