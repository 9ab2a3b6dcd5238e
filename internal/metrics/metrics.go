package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes Prometheus metrics while the router process is alive.
// Inside a Lambda sandbox it only serves between invocations, so it is meant
// for local runs and container deployments.
type Server struct {
	addr   string
	srv    *http.Server
	logger *zap.Logger
}

// NewHandler serves g on /metrics. A gather error on one collector still
// returns the rest.
func NewHandler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func New(logger *zap.Logger, addr string, g prometheus.Gatherer) (*Server, func(ctx context.Context) error) {
	srv := &http.Server{
		Addr:         addr,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		Handler:      NewHandler(g),
	}

	server := &Server{
		addr:   addr,
		srv:    srv,
		logger: logger.With(zap.String("component", "metrics")),
	}

	closer := func(ctx context.Context) error {
		server.logger.Info("Shutting down metrics server...")
		return srv.Shutdown(ctx)
	}

	return server, closer
}

func (m *Server) Start() {
	go func() {
		m.logger.Info("Metrics server started", zap.String("addr", m.addr))
		if err := m.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server error", zap.Error(err))
		}
	}()
}
