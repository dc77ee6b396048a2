package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP surface metrics
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "renderfleet_http_requests_total",
		Help: "Total number of HTTP requests handled by the gateway",
	}, []string{"route", "method", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "renderfleet_http_request_duration_seconds",
		Help:    "Duration of HTTP requests handled by the gateway",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// Login and session lifecycle metrics
	LoginSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "renderfleet_login_success_total",
		Help: "Total number of successful operator logins",
	})
	LoginFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "renderfleet_login_failure_total",
		Help: "Total number of rejected operator login attempts",
	})
	SessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "renderfleet_sessions_created_total",
		Help: "Total number of sessions created",
	})
	SessionsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "renderfleet_sessions_expired_total",
		Help: "Total number of sessions removed because their TTL elapsed",
	})
	SessionsInvalidated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "renderfleet_sessions_invalidated_total",
		Help: "Total number of sessions invalidated by logout",
	})
	SessionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "renderfleet_sessions_rejected_total",
		Help: "Total number of requests rejected by session verification",
	}, []string{"reason"})

	// Upstream hosting API metrics
	UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "renderfleet_upstream_requests_total",
		Help: "Total number of requests sent to the hosting API",
	}, []string{"account", "operation", "status"})
	UpstreamRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "renderfleet_upstream_request_duration_seconds",
		Help:    "Duration of requests sent to the hosting API",
		Buckets: prometheus.DefBuckets,
	}, []string{"account", "operation"})
	DeploysTriggered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "renderfleet_deploys_triggered_total",
		Help: "Total number of deploys triggered through the gateway",
	}, []string{"account"})

	// Audit pipeline metrics
	AuditEventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "renderfleet_audit_events_processed_total",
		Help: "Total number of audit events successfully written to a sink",
	}, []string{"sink"})
	AuditEventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "renderfleet_audit_events_dropped_total",
		Help: "Total number of audit events dropped before reaching a sink",
	}, []string{"sink", "reason"})
	AuditSinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "renderfleet_audit_sink_errors_total",
		Help: "Total number of audit sink write errors",
	}, []string{"sink", "type"})
	AuditSinkConnected = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "renderfleet_audit_sink_connected",
		Help: "Whether the audit sink is currently believed to be reachable (1/0)",
	}, []string{"sink"})
	AuditSinkLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "renderfleet_audit_sink_write_duration_seconds",
		Help:    "Duration of audit sink writes",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})
	AuditKafkaMessagesInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "renderfleet_audit_kafka_messages_in_flight",
		Help: "Number of audit messages currently being written to Kafka",
	}, []string{"sink"})
	AuditKafkaBatchesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "renderfleet_audit_kafka_batches_sent_total",
		Help: "Total number of audit event batches written to Kafka",
	}, []string{"sink"})
	AuditCircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "renderfleet_audit_circuit_breaker_state",
		Help: "Audit sink circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"sink"})
	AuditCircuitBreakerRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "renderfleet_audit_circuit_breaker_rejections_total",
		Help: "Total number of audit writes rejected by an open circuit breaker",
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(LoginSuccess)
	prometheus.MustRegister(LoginFailure)
	prometheus.MustRegister(SessionsCreated)
	prometheus.MustRegister(SessionsExpired)
	prometheus.MustRegister(SessionsInvalidated)
	prometheus.MustRegister(SessionsRejected)
	prometheus.MustRegister(UpstreamRequests)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(DeploysTriggered)
	prometheus.MustRegister(AuditEventsProcessed)
	prometheus.MustRegister(AuditEventsDropped)
	prometheus.MustRegister(AuditSinkErrors)
	prometheus.MustRegister(AuditSinkConnected)
	prometheus.MustRegister(AuditSinkLatency)
	prometheus.MustRegister(AuditKafkaMessagesInFlight)
	prometheus.MustRegister(AuditKafkaBatchesSent)
	prometheus.MustRegister(AuditCircuitBreakerState)
	prometheus.MustRegister(AuditCircuitBreakerRejections)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
