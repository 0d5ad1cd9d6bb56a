// Package stats collects per-request handling timings and summarises
// them as quantiles of observed handling time.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/spenczar/tdigest"
	"golang.org/x/exp/slog"

	"github.com/probe-lab/snooze/pkg/jlog"
)

// Timing describes how one request was handled.
type Timing struct {
	Snoozed       bool
	SnoozeSeconds int
	HandleTime    time.Duration
}

// MetricValues is a quantile snapshot of a timing distribution, in
// seconds.
type MetricValues struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

// Summary is a point-in-time view of everything the collector has seen.
type Summary struct {
	TotalRequests      int64        `json:"total_requests"`
	TotalSnoozes       int64        `json:"total_snoozes"`
	TotalSnoozeSeconds int64        `json:"total_snooze_seconds"`
	TotalDropped       int64        `json:"total_dropped"`
	HandleTime         MetricValues `json:"handle_time"`
}

// Collector consumes timings from the connection loop over a buffered
// channel so recording never blocks request handling.
type Collector struct {
	timings chan *Timing

	mu                 sync.Mutex // guards the fields below
	totalRequests      int64
	totalSnoozes       int64
	totalSnoozeSeconds int64
	totalDropped       int64
	handleTime         *tdigest.TDigest
}

func NewCollector(buffer int) *Collector {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Collector{
		timings:    make(chan *Timing, buffer),
		handleTime: tdigest.New(),
	}
}

// Record offers a timing to the collector. It never blocks: if the
// collector cannot keep up the timing is counted as dropped.
func (c *Collector) Record(t *Timing) {
	select {
	case c.timings <- t:
	default:
		c.mu.Lock()
		c.totalDropped++
		c.mu.Unlock()
	}
}

func (c *Collector) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.drain()
			c.logSummary()
			return ctx.Err()
		case t := <-c.timings:
			c.add(t)
		}
	}
}

// drain consumes whatever timings are still buffered at shutdown.
func (c *Collector) drain() {
	for {
		select {
		case t := <-c.timings:
			c.add(t)
		default:
			return
		}
	}
}

func (c *Collector) add(t *Timing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	if t.Snoozed {
		c.totalSnoozes++
		c.totalSnoozeSeconds += int64(t.SnoozeSeconds)
	}
	c.handleTime.Add(t.HandleTime.Seconds(), 1)
}

func (c *Collector) logSummary() {
	s := c.Snapshot()
	slog.Default().LogAttrs(slog.LevelDebug, "timings_summary",
		jlog.Subsystem(jlog.SubsystemApp),
		slog.Int64("total_requests", s.TotalRequests),
		slog.Int64("total_snoozes", s.TotalSnoozes),
		slog.Int64("total_snooze_seconds", s.TotalSnoozeSeconds),
		slog.Int64("total_dropped", s.TotalDropped),
		slog.Float64("handle_time_p50", s.HandleTime.P50),
		slog.Float64("handle_time_p99", s.HandleTime.P99),
	)
}

// Snapshot returns the current summary.
func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		TotalRequests:      c.totalRequests,
		TotalSnoozes:       c.totalSnoozes,
		TotalSnoozeSeconds: c.totalSnoozeSeconds,
		TotalDropped:       c.totalDropped,
	}
	if c.totalRequests > 0 {
		s.HandleTime = MetricValues{
			Min: c.handleTime.Quantile(0.0),
			P50: c.handleTime.Quantile(0.50),
			P90: c.handleTime.Quantile(0.90),
			P95: c.handleTime.Quantile(0.95),
			P99: c.handleTime.Quantile(0.99),
			Max: c.handleTime.Quantile(1.0),
		}
	}
	return s
}
