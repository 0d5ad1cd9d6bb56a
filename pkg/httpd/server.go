package httpd

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/slog"

	"github.com/probe-lab/snooze/pkg/jlog"
	"github.com/probe-lab/snooze/pkg/prom"
	"github.com/probe-lab/snooze/pkg/stats"
)

// Server accepts connections strictly one at a time and serves each
// through the handling pipeline before accepting the next. Cancelling
// the run context stops the accept loop between connections; the
// connection in flight is always allowed to finish.
type Server struct {
	addr    string
	message string
	started time.Time
	timings *stats.Collector
	tracer  trace.Tracer

	requestsCounter      prom.Counter
	snoozesCounter       prom.Counter
	snoozeSecondsCounter prom.Counter
	acceptErrorsCounter  prom.Counter
	upGauge              prom.Gauge

	ln net.Listener
}

// NewServer creates a server that answers delay requests on addr and
// replies to every other path with message. started is the process
// start time used for lifecycle exec_time measurements. timings may be
// nil to disable collection.
func NewServer(addr string, message string, started time.Time, timings *stats.Collector) (*Server, error) {
	s := &Server{
		addr:    addr,
		message: message,
		started: started,
		timings: timings,
		tracer:  otel.Tracer("snooze/httpd"),
	}

	commonLabels := map[string]string{}
	var err error
	s.requestsCounter, err = prom.NewPrometheusCounter(
		"httpd",
		"requests_total",
		"The total number of requests handled.",
		commonLabels,
	)
	if err != nil {
		return nil, fmt.Errorf("new counter: %w", err)
	}

	s.snoozesCounter, err = prom.NewPrometheusCounter(
		"httpd",
		"snoozes_total",
		"The total number of delay requests handled.",
		commonLabels,
	)
	if err != nil {
		return nil, fmt.Errorf("new counter: %w", err)
	}

	s.snoozeSecondsCounter, err = prom.NewPrometheusCounter(
		"httpd",
		"snooze_seconds_total",
		"The total number of seconds slept on behalf of delay requests.",
		commonLabels,
	)
	if err != nil {
		return nil, fmt.Errorf("new counter: %w", err)
	}

	s.acceptErrorsCounter, err = prom.NewPrometheusCounter(
		"httpd",
		"accept_errors_total",
		"The total number of errors encountered while accepting connections.",
		commonLabels,
	)
	if err != nil {
		return nil, fmt.Errorf("new counter: %w", err)
	}

	s.upGauge, err = prom.NewPrometheusGauge(
		"httpd",
		"up",
		"Indicates whether the server is accepting connections.",
		commonLabels,
	)
	if err != nil {
		return nil, fmt.Errorf("new gauge: %w", err)
	}

	return s, nil
}

// Listen opens the listening socket. Run calls it implicitly; it is
// exported so tests can bind to an ephemeral port and read Addr before
// starting the accept loop.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		logNetError("listen", err)
		return fmt.Errorf("listen on %q: %w", s.addr, err)
	}
	s.ln = ln
	return nil
}

// Addr reports the address the server is listening on.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Server) port() int {
	if s.ln == nil {
		return 0
	}
	if ta, ok := s.ln.Addr().(*net.TCPAddr); ok {
		return ta.Port
	}
	return 0
}

func (s *Server) Run(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	defer s.ln.Close()

	s.upGauge.Set(1)
	defer s.upGauge.Set(0)

	logLifecycle("startup", time.Since(s.started), s.port())

	stopped := make(chan time.Time, 1)
	go func() {
		<-ctx.Done()
		logLifecycle("shutdown_requested", time.Since(s.started), s.port())
		stopped <- time.Now()
		// Unblocks Accept. The connection in flight is unaffected.
		s.ln.Close()
	}()

	for ctx.Err() == nil {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.acceptErrorsCounter.Inc()
			logNetError("accept", err)
			continue
		}
		s.handle(ctx, conn)
	}

	stopAt := <-stopped
	logLifecycle("shutdown", time.Since(stopAt), s.port())
	return ctx.Err()
}

func logLifecycle(event string, elapsed time.Duration, port int) {
	slog.Default().LogAttrs(slog.LevelInfo, event,
		jlog.Subsystem(jlog.SubsystemApp),
		jlog.ExecTime(elapsed),
		slog.String("op", event),
		slog.Int("port", port),
	)
}

func logNetError(op string, err error) {
	slog.Default().LogAttrs(slog.LevelError, "transport_error",
		jlog.Subsystem(jlog.SubsystemNet),
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
