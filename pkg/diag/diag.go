// Package diag serves the diagnostics HTTP endpoints: liveness, a
// snapshot of collected handling timings and prometheus metrics. It
// listens on its own address and is entirely separate from the core
// serving socket, which stays single-connection.
package diag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	promexp "contrib.go.opencensus.io/exporter/prometheus"
	"github.com/gorilla/mux"
	"golang.org/x/exp/slog"

	"github.com/probe-lab/snooze/pkg/prom"
	"github.com/probe-lab/snooze/pkg/stats"
)

type Server struct {
	addr    string
	timings *stats.Collector
	pe      *promexp.Exporter
}

func NewServer(addr string, timings *stats.Collector) (*Server, error) {
	pe, err := prom.NewExporter()
	if err != nil {
		return nil, fmt.Errorf("new exporter: %w", err)
	}
	return &Server{
		addr:    addr,
		timings: timings,
		pe:      pe,
	}, nil
}

func (s *Server) ConfigureRoutes(r *mux.Router) {
	r.Path("/health").Methods("GET").HandlerFunc(s.HealthHandler)
	r.Path("/timings").Methods("GET").HandlerFunc(s.TimingsHandler)
	r.Path("/metrics").Methods("GET").Handler(s.pe)
}

func (s *Server) Run(ctx context.Context) error {
	mx := mux.NewRouter()
	s.ConfigureRoutes(mx)

	srv := &http.Server{
		Handler:     mx,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("failed to shut down diagnostics server", err)
		}
	}()

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %q: %w", s.addr, err)
	}

	if err := srv.Serve(listener); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve failed: %w", err)
		}
	}

	return nil
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}

func (s *Server) TimingsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.timings.Snapshot()); err != nil {
		slog.Error("failed to encode timings snapshot", err)
	}
}
