package dashboard

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zulandar/opsdeck/internal/kanban"
)

// Metrics owns a private registry so several servers can coexist in one
// process.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	moves           *prometheus.CounterVec
	snapshotVersion prometheus.Gauge
}

// NewMetrics registers the dashboard collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdeck_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsdeck_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.3, 1, 3},
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opsdeck_http_in_flight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdeck_board_moves_total",
			Help: "Board moves by how their remote request settled",
		}, []string{"outcome"}),
		snapshotVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opsdeck_snapshot_version",
			Help: "Version of the snapshot last served",
		}),
	}
	m.registry.MustRegister(
		m.requestsTotal, m.requestDuration, m.inFlight, m.moves, m.snapshotVersion,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveMove counts a settled move. It is the controller's OnSettle hook.
func (m *Metrics) ObserveMove(o kanban.Outcome) {
	m.moves.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		c.Next()

		// FullPath is the route pattern, so ids do not explode the labels.
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
