package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/shopintake/core/logger"
)

// Server exposes /metrics and /healthz.
type Server struct {
	srv *http.Server
}

// NewServer builds the endpoint; call Start to begin serving.
func NewServer(listen string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		srv: &http.Server{
			Addr:              listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background. Listener errors other than a clean shutdown are logged.
func (s *Server) Start() {
	MustRegister()
	logger.Metrics.Info("metrics listening",
		slog.String("event", "metrics.listen"),
		slog.String("listen", s.srv.Addr),
	)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Metrics.Error("metrics server failed",
				slog.String("event", "metrics.listen"),
				slog.String("err", err.Error()),
			)
		}
	}()
}

// Shutdown stops the endpoint, waiting for in-flight scrapes.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	return nil
}
