package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	paymentProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_processed_total",
			Help: "Total number of payments processed by the gateway",
		},
		[]string{"method", "status"},
	)

	paymentRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_retries_total",
			Help: "Total number of retried gateway attempts",
		},
		[]string{"method"},
	)

	notificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications sent",
		},
		[]string{"event_type", "result"},
	)

	analyticsFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_fallback_total",
			Help: "Total number of analytics reports served from default datasets",
		},
		[]string{"report"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(paymentProcessedTotal)
	prometheus.MustRegister(paymentRetriesTotal)
	prometheus.MustRegister(notificationsSentTotal)
	prometheus.MustRegister(analyticsFallbackTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordPaymentProcessed(method, status string) {
	paymentProcessedTotal.WithLabelValues(method, status).Inc()
}

func RecordPaymentRetry(method string) {
	paymentRetriesTotal.WithLabelValues(method).Inc()
}

func RecordNotificationSent(eventType string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	notificationsSentTotal.WithLabelValues(eventType, result).Inc()
}

func RecordAnalyticsFallback(report string) {
	analyticsFallbackTotal.WithLabelValues(report).Inc()
}
