// Package httpd implements the snooze request handling pipeline: a raw
// HTTP request is parsed into a Request, an optional delay is extracted
// from its path, the connection is slept on, and a single framed
// response is sent before the connection is closed gracefully.
//
// The server deliberately handles one connection at a time so that the
// elapsed time it reports for a request is never skewed by concurrent
// work.
package httpd

// Header is a single request header, kept in arrival order.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Request is the parsed form of one HTTP request. It is built fresh for
// each connection and never shared or mutated after parsing.
type Request struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	UserAgent string `json:"agent"`

	// Headers holds every header except User-Agent in first-seen order.
	// They are logged verbatim as extra fields on the request record.
	Headers []Header `json:"header,omitempty"`

	// IsSnooze reports whether Path matched the delay request pattern.
	IsSnooze bool `json:"is_snooze"`
	// SnoozeSeconds is the number of whole seconds requested, zero when
	// IsSnooze is false.
	SnoozeSeconds int `json:"snooze_seconds"`
}
