package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultReadHeaderTimeout is the timeout for reading request headers.
const defaultReadHeaderTimeout = 10 * time.Second

// Exporter serves the planner registry over HTTP at /metrics. The planner
// CLI itself is short-lived, so the exporter is mainly for programs that
// embed the orchestrator; enable it in the CLI with PLANNER_METRICS_ADDR.
type Exporter struct {
	addr     string
	server   *http.Server
	registry *prometheus.Registry
	mu       sync.Mutex
	started  bool
}

// NewExporter creates an exporter for the planner registry, including Go
// runtime and process collectors.
func NewExporter(addr string) *Exporter {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Exporter{addr: addr, registry: Registry}
}

// NewExporterWithRegistry creates an exporter over a custom registry.
func NewExporterWithRegistry(addr string, registry *prometheus.Registry) *Exporter {
	return &Exporter{addr: addr, registry: registry}
}

// Start serves /metrics and /health, blocking until the server stops.
// Returns http.ErrServerClosed on graceful shutdown.
func (e *Exporter) Start() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	e.server = &http.Server{
		Addr:              e.addr,
		Handler:           mux,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	e.started = true
	e.mu.Unlock()

	return e.server.ListenAndServe()
}

// Shutdown gracefully stops the exporter.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.server != nil && e.started {
		e.started = false
		return e.server.Shutdown(ctx)
	}
	return nil
}

// Handler returns an http.Handler for the metrics endpoint, for embedding
// into an existing HTTP server.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
