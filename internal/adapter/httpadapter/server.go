// Package httpadapter exposes an export run over HTTP for as long as the
// batch is running. The listener is bound before the first entry is fetched
// and closed once the output document is written.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/rise-hydromet-export/internal/domain"
)

// Run is the export run being served. The pipeline satisfies it.
type Run interface {
	sharedobs.ReadinessChecker
	Progress() domain.RunSummary
}

// Server serves the run's endpoints:
//
//	/healthz   process is up
//	/readyz    503 until the first control entry has been processed
//	/progress  entry outcome counts so far, as JSON
//	/metrics   export metrics for the current run
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	listener   net.Listener
	done       chan struct{}
}

// NewServer creates the HTTP server. Metrics are served from gatherer.
func NewServer(addr string, run Run, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(run))
	mux.HandleFunc("GET /progress", progressHandler(run, logger))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Listen binds the address and serves in the background. A bind failure is
// returned immediately so the caller can run the batch without the server.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	go func() {
		defer close(s.done)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

// Addr is the bound address, or "" before Listen succeeds.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones within the
// context deadline. It is a no-op if Listen never succeeded.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	<-s.done
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func progressHandler(run Run, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(run.Progress()); err != nil {
			logger.Warn("write progress response", "error", err)
		}
	}
}
