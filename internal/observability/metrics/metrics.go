package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AvailabilityMetrics exposes counters/histograms for the availability API.
type AvailabilityMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	batchesTotal    *prometheus.CounterVec
	recordsUpserted prometheus.Counter
	queryLatency    *prometheus.HistogramVec
}

func NewAvailabilityMetrics(reg prometheus.Registerer) *AvailabilityMetrics {
	m := &AvailabilityMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schedula",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total API requests by transport, route and status",
		}, []string{"transport", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "schedula",
			Subsystem: "api",
			Name:      "request_latency_seconds",
			Help:      "Latency of API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport", "route"}),
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schedula",
			Subsystem: "availability",
			Name:      "batches_total",
			Help:      "Availability batches by outcome",
		}, []string{"outcome"}),
		recordsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schedula",
			Subsystem: "availability",
			Name:      "records_upserted_total",
			Help:      "Availability records written",
		}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "schedula",
			Subsystem: "db",
			Name:      "query_latency_seconds",
			Help:      "Latency of database queries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestLatency, m.batchesTotal, m.recordsUpserted, m.queryLatency)
	return m
}

func (m *AvailabilityMetrics) ObserveRequest(transport, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(transport, route, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(transport, route).Observe(elapsed.Seconds())
}

// ObserveBatch records a batch outcome: "applied", "replayed", "conflict" or "failed".
func (m *AvailabilityMetrics) ObserveBatch(outcome string, records int) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(outcome).Inc()
	if outcome == "applied" && records > 0 {
		m.recordsUpserted.Add(float64(records))
	}
}

func (m *AvailabilityMetrics) ObserveRecord() {
	if m == nil {
		return
	}
	m.recordsUpserted.Inc()
}

func (m *AvailabilityMetrics) ObserveQuery(operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.queryLatency.WithLabelValues(operation, status).Observe(elapsed.Seconds())
}
