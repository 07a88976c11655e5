package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.TicketsOpened.Inc()
	m.DeliveryFailures.WithLabelValues("text").Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TicketsOpened))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DeliveryFailures.WithLabelValues("text")))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "desk_tickets_opened_total 1")
}

func TestGinMiddlewareObservesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/v1/tasks/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/5", nil))

	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequests))
}
