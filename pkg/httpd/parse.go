package httpd

import (
	"strings"
)

const (
	defaultMethod = "GET"
	defaultPath   = "/"
	defaultAgent  = "unknown"

	// Length caps applied while parsing. Longer tokens are truncated
	// rather than rejected so a hostile request can never overrun a
	// buffer or fail the connection.
	maxMethodLen      = 32
	maxPathLen        = 2048
	maxHeaderNameLen  = 256
	maxHeaderValueLen = 1024
)

// ParseRequest builds a Request from the raw bytes received on a
// connection. It is a pure transformation and never fails: malformed or
// truncated input degrades to the declared defaults.
func ParseRequest(buf []byte) *Request {
	req := &Request{
		Method:    defaultMethod,
		Path:      defaultPath,
		UserAgent: defaultAgent,
	}

	rest := string(buf)
	if i := strings.Index(rest, "\r\n\r\n"); i >= 0 {
		rest = rest[:i]
	}

	var line string
	line, rest, _ = strings.Cut(rest, "\r\n")
	parseRequestLine(line, req)

	for rest != "" {
		line, rest, _ = strings.Cut(rest, "\r\n")
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			// not a header line, skip it
			continue
		}
		name = truncate(name, maxHeaderNameLen)
		value = truncate(strings.TrimLeft(value, " \t"), maxHeaderValueLen)
		if strings.EqualFold(name, "User-Agent") {
			req.UserAgent = value
			continue
		}
		if name == "" {
			continue
		}
		req.Headers = append(req.Headers, Header{Name: name, Value: value})
	}

	req.SnoozeSeconds, req.IsSnooze = SnoozeSeconds(req.Path)
	return req
}

// parseRequestLine splits "METHOD target HTTP/1.1" on its first two
// spaces. Missing parts keep their defaults.
func parseRequestLine(line string, req *Request) {
	method, rest, _ := strings.Cut(line, " ")
	if method == "" {
		return
	}
	req.Method = truncate(method, maxMethodLen)

	target, _, _ := strings.Cut(rest, " ")
	if target != "" {
		req.Path = truncate(target, maxPathLen)
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
