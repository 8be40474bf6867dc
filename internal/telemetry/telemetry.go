// Package telemetry tracks discovery pipeline metrics and exposes them as
// prometheus collectors for the /metrics endpoint.
package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/procurehq/supplierscope/config"
)

// Telemetry provides monitoring for the discovery pipeline
type Telemetry struct {
	config  config.TelemetryConfig
	logger  *log.Logger
	mu      sync.RWMutex
	metrics Metrics

	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	adapterFailures *prometheus.CounterVec
	activeRequests  prometheus.Gauge
	waitingRequests prometheus.Gauge
}

// Metrics holds cumulative pipeline counters
type Metrics struct {
	TotalRequests     int64
	AcceptedRequests  int64
	RejectedRequests  int64
	TimedOutRequests  int64
	AverageElapsed    time.Duration
	AdapterExecutions map[string]int64
	AdapterFailures   map[string]int64
	AdapterCandidates map[string]int64
}

// DiscoveryEvent records one completed discovery operation
type DiscoveryEvent struct {
	Key       string
	Outcome   string // accepted, rejected, no_data, timeout, invalid, cache_hit
	Elapsed   time.Duration
	Sources   []string
	Overall   float64
	FromCache bool
}

// NewTelemetry creates a telemetry instance and registers its collectors.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: Metrics{
			AdapterExecutions: make(map[string]int64),
			AdapterFailures:   make(map[string]int64),
			AdapterCandidates: make(map[string]int64),
		},
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supplierscope_discovery_requests_total",
			Help: "Discovery requests by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "supplierscope_discovery_duration_seconds",
			Help:    "End-to-end discovery latency.",
			Buckets: prometheus.DefBuckets,
		}),
		adapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supplierscope_adapter_failures_total",
			Help: "Recovered adapter failures by adapter.",
		}, []string{"adapter"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "supplierscope_active_requests",
			Help: "Requests currently holding a concurrency slot.",
		}),
		waitingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "supplierscope_waiting_requests",
			Help: "Requests queued for a concurrency slot.",
		}),
	}
	for _, c := range []prometheus.Collector{
		t.requestsTotal, t.requestDuration, t.adapterFailures, t.activeRequests, t.waitingRequests,
	} {
		if err := prometheus.Register(c); err != nil {
			// Re-registration happens in tests that build several engines;
			// keep the first collector.
			t.logger.Printf("collector registration: %v", err)
		}
	}
	return t
}

// RecordDiscoveryEvent tracks one finished discovery.
func (t *Telemetry) RecordDiscoveryEvent(event DiscoveryEvent) {
	t.requestsTotal.WithLabelValues(event.Outcome).Inc()
	t.requestDuration.Observe(event.Elapsed.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.TotalRequests++
	switch event.Outcome {
	case "accepted", "cache_hit":
		t.metrics.AcceptedRequests++
	case "timeout":
		t.metrics.TimedOutRequests++
	default:
		t.metrics.RejectedRequests++
	}
	if t.metrics.TotalRequests == 1 {
		t.metrics.AverageElapsed = event.Elapsed
	} else {
		n := t.metrics.TotalRequests
		t.metrics.AverageElapsed = time.Duration((int64(t.metrics.AverageElapsed)*(n-1) + int64(event.Elapsed)) / n)
	}

	if t.config.PeriodicLogs {
		t.logger.Printf("discovery %s outcome=%s elapsed=%v sources=%d", event.Key, event.Outcome, event.Elapsed, len(event.Sources))
	}
}

// RecordAdapterRun tracks one adapter execution inside a discovery.
func (t *Telemetry) RecordAdapterRun(adapter string, candidates int, failed bool) {
	t.mu.Lock()
	t.metrics.AdapterExecutions[adapter]++
	t.metrics.AdapterCandidates[adapter] += int64(candidates)
	if failed {
		t.metrics.AdapterFailures[adapter]++
	}
	t.mu.Unlock()
	if failed {
		t.adapterFailures.WithLabelValues(adapter).Inc()
	}
}

// SetActive updates the slot-occupancy gauge.
func (t *Telemetry) SetActive(n int) {
	t.activeRequests.Set(float64(n))
}

// SetWaiting updates the queue-length gauge.
func (t *Telemetry) SetWaiting(n int) {
	t.waitingRequests.Set(float64(n))
}

// Snapshot returns a copy of the cumulative counters.
func (t *Telemetry) Snapshot() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := Metrics{
		TotalRequests:     t.metrics.TotalRequests,
		AcceptedRequests:  t.metrics.AcceptedRequests,
		RejectedRequests:  t.metrics.RejectedRequests,
		TimedOutRequests:  t.metrics.TimedOutRequests,
		AverageElapsed:    t.metrics.AverageElapsed,
		AdapterExecutions: make(map[string]int64, len(t.metrics.AdapterExecutions)),
		AdapterFailures:   make(map[string]int64, len(t.metrics.AdapterFailures)),
		AdapterCandidates: make(map[string]int64, len(t.metrics.AdapterCandidates)),
	}
	for k, v := range t.metrics.AdapterExecutions {
		out.AdapterExecutions[k] = v
	}
	for k, v := range t.metrics.AdapterFailures {
		out.AdapterFailures[k] = v
	}
	for k, v := range t.metrics.AdapterCandidates {
		out.AdapterCandidates[k] = v
	}
	return out
}
