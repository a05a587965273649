// Package metrics exposes Prometheus metrics for the credential service on a
// dedicated listener.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credential_service"

var (
	// CredentialsIssued counts credentials that reached the active state, by anchor type.
	CredentialsIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credentials_issued_total",
		Help:      "Credentials issued and anchored.",
	}, []string{"anchor"})

	// CredentialsRevoked counts revocations, by anchor type.
	CredentialsRevoked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credentials_revoked_total",
		Help:      "Credentials revoked.",
	}, []string{"anchor"})

	// AnchorFailures counts failed anchoring attempts by anchor type and operation (issue, revoke, verify).
	AnchorFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "anchor_failures_total",
		Help:      "Anchor operations that returned an error.",
	}, []string{"anchor", "operation"})

	AnchorDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "anchor_duration_seconds",
		Help:      "Time spent producing or checking an anchor proof.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"anchor", "operation"})
)

// ObserveAnchor records the outcome of an anchor operation started at start.
func ObserveAnchor(anchor, operation string, start time.Time, err error) {
	AnchorDuration.WithLabelValues(anchor, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		AnchorFailures.WithLabelValues(anchor, operation).Inc()
	}
}

// MetricsServer serves the /metrics endpoint.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server
}

// New creates a metrics server listening on addr. service is attached to the
// build info gauge.
func New(service, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()

	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Always 1, labelled with the service name.",
		ConstLabels: prometheus.Labels{"service": service},
	})
	buildInfo.Set(1)

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
		CredentialsIssued,
		CredentialsRevoked,
		AnchorFailures,
		AnchorDuration,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	m := &MetricsServer{registry: registry}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	m.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m, nil
}

// Handler returns the Prometheus exposition handler.
func (m *MetricsServer) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
