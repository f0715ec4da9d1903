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

	checkoutOrdersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_orders_created_total",
			Help: "Total number of per-seller orders created at checkout",
		},
	)

	checkoutLinesSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_lines_skipped_total",
			Help: "Cart lines dropped at checkout because the product or seller could not be resolved",
		},
	)

	paymentsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Total number of payment records created",
		},
	)

	paymentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Total number of applied payment status transitions",
		},
		[]string{"to"},
	)

	confirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirmations_total",
			Help: "Payment confirmations by outcome",
		},
		[]string{"result"},
	)

	reconcileRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_repairs_total",
			Help: "Repairs applied by the reconciliation sweep",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(checkoutOrdersCreatedTotal)
	prometheus.MustRegister(checkoutLinesSkippedTotal)
	prometheus.MustRegister(paymentsCreatedTotal)
	prometheus.MustRegister(paymentTransitionsTotal)
	prometheus.MustRegister(confirmationsTotal)
	prometheus.MustRegister(reconcileRepairsTotal)
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

func RecordOrdersCreated(n int) {
	checkoutOrdersCreatedTotal.Add(float64(n))
}

func RecordLinesSkipped(n int) {
	checkoutLinesSkippedTotal.Add(float64(n))
}

func RecordPaymentCreated() {
	paymentsCreatedTotal.Inc()
}

func RecordPaymentTransition(to string) {
	paymentTransitionsTotal.WithLabelValues(to).Inc()
}

func RecordConfirmation(result string) {
	confirmationsTotal.WithLabelValues(result).Inc()
}

func RecordReconcileRepair(kind string) {
	reconcileRepairsTotal.WithLabelValues(kind).Inc()
}
