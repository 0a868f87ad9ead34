package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onexay/gitgraph/internal/config"
	"github.com/onexay/gitgraph/internal/service"
)

// Server wraps the HTTP server configuration and dependencies.
type Server struct {
	svc    *service.Service
	server *http.Server
	log    logze.Logger
}

// NewServer creates an HTTP server with routes for cfg.
func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	svc, err := service.New(ctx, cfg)
	if err != nil {
		return nil, errm.Wrap(err, "create service")
	}
	return newServer(cfg.APIAddr, svc), nil
}

func newServer(addr string, svc *service.Service) *Server {
	api := service.Handler(svc)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/v1/", api)
	mux.Handle("/swagger/", api)

	return &Server{
		svc: svc,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logze.With("component", "httpserver"),
	}
}

// Handler exposes the routes for in-process use.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run starts the HTTP server and blocks until Stop is called.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errm.Wrap(err, "listen "+s.server.Addr)
	}
	s.log.Info("listening", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errm.Wrap(err, "serve")
	}
	return nil
}

// Stop drains in-flight requests, then closes the service.
func (s *Server) Stop(ctx context.Context) error {
	return errors.Join(s.server.Shutdown(ctx), s.svc.Close())
}
