package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/FlooooowY/SteelMount-Challenge-Engine/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports the health of a dependency
type HealthCheck func(ctx context.Context) error

// PrometheusServer serves /metrics and /health
type PrometheusServer struct {
	server   *http.Server
	port     int
	gatherer prometheus.Gatherer
	checks   map[string]HealthCheck
	stats    StatsProvider
}

// NewPrometheusServer creates a new Prometheus server
func NewPrometheusServer(port int, gatherer prometheus.Gatherer, checks map[string]HealthCheck) *PrometheusServer {
	return &PrometheusServer{
		port:     port,
		gatherer: gatherer,
		checks:   checks,
	}
}

// SetStatsProvider exposes provider on /stats
func (ps *PrometheusServer) SetStatsProvider(provider StatsProvider) {
	ps.stats = provider
}

// Handler returns the mux served by the metrics server
func (ps *PrometheusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(ps.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", ps.healthHandler)
	if ps.stats != nil {
		mux.HandleFunc("/stats", StatsHandler(ps.stats))
	}
	return mux
}

// Start starts the Prometheus server in the background
func (ps *PrometheusServer) Start(ctx context.Context) error {
	ps.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", ps.port),
		Handler:           ps.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", ps.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ps.server.Addr, err)
	}

	go func() {
		if err := ps.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Prometheus server error")
		}
	}()

	logger.GetLogger().Infof("Prometheus server started on %s", listener.Addr())
	return nil
}

// Stop stops the Prometheus server
func (ps *PrometheusServer) Stop(ctx context.Context) error {
	if ps.server != nil {
		return ps.server.Shutdown(ctx)
	}
	return nil
}

// healthHandler reports each dependency check
func (ps *PrometheusServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	deps := make(map[string]string, len(ps.checks))
	for name, check := range ps.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":       status,
		"time":         time.Now().Unix(),
		"dependencies": deps,
	})
}
