package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatewing-io/gatewing/pkg/log"
)

// Server exposes the metrics registry and a liveness probe over HTTP.
type Server struct {
	*http.Server
}

// NewServer builds the metrics HTTP server listening on addr.
func NewServer(addr string) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves until ctx is canceled, then drains with a short grace period.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe()
	}()

	log.Info("metrics server listening", "addr", s.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
