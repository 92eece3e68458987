package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchparty_http_requests_total",
			Help: "Total number of HTTP requests processed by the watch party service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchparty_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watchparty_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"channel"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchparty_ws_events_total",
			Help: "Total number of websocket transport events.",
		},
		[]string{"channel", "event"},
	)
	partyEventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchparty_party_events_published_total",
			Help: "Total number of party events published to the bus.",
		},
		[]string{"type"},
	)
	busPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchparty_bus_publish_errors_total",
			Help: "Total number of event bus publish errors.",
		},
	)
	auditDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchparty_audit_events_dropped_total",
			Help: "Total number of audit events dropped due to a full buffer.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		partyEventsPublishedTotal,
		busPublishErrorsTotal,
		auditDroppedTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(channel string) {
	wsActiveConnections.WithLabelValues(channel).Inc()
}

func DecWSActive(channel string) {
	wsActiveConnections.WithLabelValues(channel).Dec()
}

func IncWSEvent(channel, event string) {
	wsEventsTotal.WithLabelValues(channel, event).Inc()
}

func IncPartyEventPublished(eventType string) {
	partyEventsPublishedTotal.WithLabelValues(eventType).Inc()
}

func IncBusPublishError() {
	busPublishErrorsTotal.Inc()
}

func IncAuditDropped() {
	auditDroppedTotal.Inc()
}
