package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/v1/things/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/things/:id", "418"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/things/42", nil))
	require.Equal(t, http.StatusTeapot, w.Code)

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/things/:id", "418"))
	assert.Equal(t, before+1, after)
}

func TestRealtimeCollectors(t *testing.T) {
	SetLiveConnections(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(liveConnections))

	before := testutil.ToFloat64(eventsSent.WithLabelValues("groceryadd", "broadcast"))
	EventSent("groceryadd", "broadcast")
	assert.Equal(t, before+1, testutil.ToFloat64(eventsSent.WithLabelValues("groceryadd", "broadcast")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ConnectionRejected()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "grocery_sync_realtime_rejected_connections_total"))
}
