// Package jlog emits structured log records as single-line JSON objects
// with a fixed prefix of ts, level, subsystem and exec_time fields,
// followed by any event-specific fields in the order they were supplied.
package jlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

const (
	// Attribute keys hoisted into the fixed prefix of every record.
	KeySubsystem = "subsystem"
	KeyExecTime  = "exec_time"

	// SubsystemApp is used for process lifecycle events.
	SubsystemApp = "app"
	// SubsystemHTTP is used for request handling events.
	SubsystemHTTP = "http"
	// SubsystemNet is used for transport level errors.
	SubsystemNet = "net"
)

// tsFormat is ISO-8601 with an explicit numeric timezone offset.
const tsFormat = "2006-01-02T15:04:05.000-07:00"

// FormatSeconds renders an elapsed duration as seconds with exactly
// four decimal digits, the only accepted rendering of exec_time.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 4, 64)
}

// ExecTime returns the exec_time attribute for an elapsed duration.
func ExecTime(d time.Duration) slog.Attr {
	return slog.String(KeyExecTime, FormatSeconds(d))
}

// Subsystem returns the subsystem attribute naming the logical source
// of an event.
func Subsystem(name string) slog.Attr {
	return slog.String(KeySubsystem, name)
}

// ParseLevel maps the configured log level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "error":
		return slog.LevelError, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

var _ slog.Handler = (*Handler)(nil)

type Handler struct {
	level slog.Leveler
	attrs []slog.Attr

	mu *sync.Mutex // guards writes to w
	w  io.Writer
}

func NewHandler(w io.Writer) *Handler {
	return &Handler{
		mu: new(sync.Mutex),
		w:  w,
	}
}

func (h *Handler) WithLevel(level slog.Leveler) *Handler {
	h.level = level
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.level != nil {
		minLevel = h.level.Level()
	}
	return level >= minLevel
}

func (h *Handler) Handle(r slog.Record) error {
	subsystem := SubsystemApp
	execTime := "0.0000"

	fields := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	hoist := func(a slog.Attr) {
		switch a.Key {
		case KeySubsystem:
			subsystem = a.Value.String()
		case KeyExecTime:
			execTime = execTimeString(a.Value)
		default:
			fields = append(fields, a)
		}
	}
	for _, a := range h.attrs {
		hoist(a)
	}
	r.Attrs(hoist)

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	buf := make([]byte, 0, 256)
	buf = append(buf, `{"ts":`...)
	buf = appendJSONString(buf, ts.Format(tsFormat))
	buf = append(buf, `,"level":`...)
	buf = appendJSONString(buf, levelString(r.Level))
	buf = append(buf, `,"subsystem":`...)
	buf = appendJSONString(buf, subsystem)
	buf = append(buf, `,"exec_time":`...)
	buf = appendJSONString(buf, execTime)
	if r.Message != "" {
		buf = append(buf, `,"event":`...)
		buf = appendJSONString(buf, r.Message)
	}
	for _, a := range fields {
		buf = append(buf, ',')
		buf = appendJSONString(buf, a.Key)
		buf = append(buf, ':')
		buf = appendJSONValue(buf, a.Value)
	}
	buf = append(buf, '}', '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := &Handler{
		level: h.level,
		mu:    h.mu,
		w:     h.w,
	}
	h2.attrs = append(append(h2.attrs, h.attrs...), attrs...)
	return h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return h
}

// levelString collapses the slog levels onto the three levels the log
// schema admits.
func levelString(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// execTimeString accepts either a preformatted string or a raw duration
// and always yields the four decimal digit rendering.
func execTimeString(v slog.Value) string {
	switch tv := v.Any().(type) {
	case time.Duration:
		return FormatSeconds(tv)
	case string:
		return tv
	default:
		return v.String()
	}
}

func appendJSONValue(buf []byte, v slog.Value) []byte {
	switch tv := v.Any().(type) {
	case string:
		return appendJSONString(buf, tv)
	case error:
		return appendJSONString(buf, tv.Error())
	case int:
		return strconv.AppendInt(buf, int64(tv), 10)
	case int64:
		return strconv.AppendInt(buf, tv, 10)
	case uint64:
		return strconv.AppendUint(buf, tv, 10)
	case bool:
		return strconv.AppendBool(buf, tv)
	case float64:
		return strconv.AppendFloat(buf, tv, 'f', -1, 64)
	case time.Duration:
		return appendJSONString(buf, FormatSeconds(tv))
	default:
		return appendJSONString(buf, v.String())
	}
}

// appendJSONString escapes quotes and control characters so that hostile
// header values cannot corrupt the record.
func appendJSONString(buf []byte, s string) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		// json.Marshal of a string cannot fail; keep the record well formed.
		return append(buf, `""`...)
	}
	return append(buf, b...)
}
