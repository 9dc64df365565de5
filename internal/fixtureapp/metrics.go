package fixtureapp

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "todo_fixture_api_requests_total",
			Help: "Total number of todo API requests by method and status",
		}, []string{"method", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todo_fixture_api_request_duration_seconds",
			Help:    "Todo API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// middleware records every request that reaches the API group.
func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		method := c.Request.Method
		m.requests.WithLabelValues(method, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}
