package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttendanceMarks counts mark attempts by status and outcome.
	AttendanceMarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_attendance_marks_total",
		Help: "Attendance mark attempts by status and outcome.",
	}, []string{"status", "outcome"})

	// RemoteFailures counts failed document store, cache and feed operations.
	RemoteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_remote_failures_total",
		Help: "Failed remote operations by operation name.",
	}, []string{"op"})

	// ActiveManagers tracks live timetable managers.
	ActiveManagers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campus_timetable_managers",
		Help: "Timetable managers currently held by the registry.",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"method", "route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campus_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// GinMiddleware records request counts and latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
