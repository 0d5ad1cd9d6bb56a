package httpd

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/exp/slog"

	"github.com/probe-lab/snooze/pkg/jlog"
	"github.com/probe-lab/snooze/pkg/stats"
)

// maxRequestBytes caps how much of a request is buffered. Requests
// whose headers do not fit are parsed from whatever was received.
const maxRequestBytes = 8192

var headerTerminator = []byte("\r\n\r\n")

// handle owns one connection end to end: receive, parse, decide, delay,
// respond, log, close. Every failure is absorbed here; the worst
// outcome for a bad connection is an abrupt close or a missing log
// line.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	start := time.Now()
	_, span := s.tracer.Start(ctx, "handle")
	defer span.End()

	raw, ok := s.receive(conn)
	if !ok {
		// peer went away before finishing its headers, nothing to answer
		conn.Close()
		return
	}

	req := ParseRequest(raw)
	span.SetAttributes(
		attribute.String("method", req.Method),
		attribute.String("path", req.Path),
		attribute.Int("snooze_seconds", req.SnoozeSeconds),
	)
	s.requestsCounter.Inc()

	body := []byte(s.message)
	if req.IsSnooze {
		s.snoozesCounter.Inc()
		if req.SnoozeSeconds > 0 {
			s.snoozeSecondsCounter.Add(float64(req.SnoozeSeconds))
			time.Sleep(time.Duration(req.SnoozeSeconds) * time.Second)
		}
		body = []byte(fmt.Sprintf("Snoozed for %d seconds!\n", req.SnoozeSeconds))
	}

	werr := WriteResponse(conn, body)
	elapsed := time.Since(start)
	GracefulClose(conn)

	if werr != nil {
		slog.Default().LogAttrs(slog.LevelError, "transport_error",
			jlog.Subsystem(jlog.SubsystemNet),
			jlog.ExecTime(elapsed),
			slog.String("op", "send"),
			slog.String("error", werr.Error()),
		)
	}

	s.logRequest(req, raw, elapsed)

	if s.timings != nil {
		s.timings.Record(&stats.Timing{
			Snoozed:       req.IsSnooze,
			SnoozeSeconds: req.SnoozeSeconds,
			HandleTime:    elapsed,
		})
	}
}

// reservedLogFields are record fields a request header must never
// supply. A colliding header name is prefixed so a client cannot
// override the record's own fields or emit duplicate keys.
var reservedLogFields = map[string]struct{}{
	"ts":              {},
	"level":           {},
	jlog.KeySubsystem: {},
	jlog.KeyExecTime:  {},
	"event":           {},
	"method":          {},
	"path":            {},
	"agent":           {},
}

// logRequest emits the request record once, after the response has been
// sent, so exec_time covers the whole of the handling including any
// deliberate delay.
func (s *Server) logRequest(req *Request, raw []byte, elapsed time.Duration) {
	logger := slog.Default()

	logger.LogAttrs(slog.LevelDebug, "request_dump",
		jlog.Subsystem(jlog.SubsystemHTTP),
		jlog.ExecTime(elapsed),
		slog.String("raw", string(raw)),
	)

	attrs := make([]slog.Attr, 0, len(req.Headers)+5)
	attrs = append(attrs,
		jlog.Subsystem(jlog.SubsystemHTTP),
		jlog.ExecTime(elapsed),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.String("agent", req.UserAgent),
	)
	for _, h := range req.Headers {
		name := h.Name
		if _, reserved := reservedLogFields[name]; reserved {
			name = "header_" + name
		}
		attrs = append(attrs, slog.String(name, h.Value))
	}
	logger.LogAttrs(slog.LevelInfo, "request", attrs...)
}

// receive reads into a fixed-capacity buffer until the header
// terminator is seen or the buffer is exhausted. It reports false when
// the peer closed or errored before a complete header block arrived.
func (s *Server) receive(conn net.Conn) ([]byte, bool) {
	buf := make([]byte, 0, maxRequestBytes)
	for {
		n, err := conn.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if bytes.Contains(buf, headerTerminator) {
			return buf, true
		}
		if err != nil {
			return buf, false
		}
		if len(buf) == cap(buf) {
			// terminator never arrived, degrade to parsing what we have
			return buf, true
		}
	}
}
