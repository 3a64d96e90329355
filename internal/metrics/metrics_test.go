package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{429, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		if got := statusBucket(tt.code); got != tt.want {
			t.Errorf("statusBucket(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())

	scrape := func() string {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("scrape returned %d", w.Code)
		}
		return w.Body.String()
	}

	// Gauges appear without being written; counters only after the first
	// observation.
	body := scrape()
	for _, name := range []string{
		"bridgegate_active_websocket_clients",
		"bridgegate_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected scrape to contain %s", name)
		}
	}

	HTTPRequestsTotal.WithLabelValues("GET", "/metrics", "2xx").Inc()
	if !strings.Contains(scrape(), "bridgegate_http_requests_total") {
		t.Error("expected bridgegate_http_requests_total after first increment")
	}
}

func TestMiddlewareRecords(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
