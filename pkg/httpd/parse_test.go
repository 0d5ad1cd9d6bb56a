package httpd

import (
	"strings"
	"testing"
)

func TestParseRequestDefaults(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "bare crlf", raw: "\r\n\r\n"},
		{name: "space only", raw: " \r\n\r\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := ParseRequest([]byte(tc.raw))
			if req.Method != "GET" {
				t.Errorf("got method %q, wanted %q", req.Method, "GET")
			}
			if req.Path != "/" {
				t.Errorf("got path %q, wanted %q", req.Path, "/")
			}
			if req.UserAgent != "unknown" {
				t.Errorf("got agent %q, wanted %q", req.UserAgent, "unknown")
			}
		})
	}
}

func TestParseRequestLine(t *testing.T) {
	testCases := []struct {
		name   string
		raw    string
		method string
		path   string
	}{
		{
			name:   "full",
			raw:    "GET /snooze/3 HTTP/1.1\r\nHost: x\r\n\r\n",
			method: "GET",
			path:   "/snooze/3",
		},
		{
			name:   "no version",
			raw:    "POST /upload\r\n\r\n",
			method: "POST",
			path:   "/upload",
		},
		{
			name:   "method only",
			raw:    "HEAD\r\n\r\n",
			method: "HEAD",
			path:   "/",
		},
		{
			name:   "missing target",
			raw:    "GET  HTTP/1.1\r\n\r\n",
			method: "GET",
			path:   "/",
		},
		{
			name:   "no terminator",
			raw:    "GET /partial HTTP/1.1\r\nHost: x",
			method: "GET",
			path:   "/partial",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := ParseRequest([]byte(tc.raw))
			if req.Method != tc.method {
				t.Errorf("got method %q, wanted %q", req.Method, tc.method)
			}
			if req.Path != tc.path {
				t.Errorf("got path %q, wanted %q", req.Path, tc.path)
			}
		})
	}
}

func TestParseRequestUserAgent(t *testing.T) {
	testCases := []struct {
		name  string
		raw   string
		agent string
	}{
		{
			name:  "plain",
			raw:   "GET / HTTP/1.1\r\nUser-Agent: curl/7.68.0\r\n\r\n",
			agent: "curl/7.68.0",
		},
		{
			name:  "case insensitive",
			raw:   "GET / HTTP/1.1\r\nuser-agent: wget/1.20\r\n\r\n",
			agent: "wget/1.20",
		},
		{
			name:  "absent",
			raw:   "GET / HTTP/1.1\r\nHost: x\r\n\r\n",
			agent: "unknown",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := ParseRequest([]byte(tc.raw))
			if req.UserAgent != tc.agent {
				t.Errorf("got agent %q, wanted %q", req.UserAgent, tc.agent)
			}
			for _, h := range req.Headers {
				if strings.EqualFold(h.Name, "User-Agent") {
					t.Errorf("User-Agent leaked into other headers: %v", req.Headers)
				}
			}
		})
	}
}

func TestParseRequestHeaderOrder(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Accept: */*\r\n" +
		"X-Request-Id: abc123\r\n" +
		"\r\n"

	req := ParseRequest([]byte(raw))

	want := []Header{
		{Name: "Host", Value: "example.com"},
		{Name: "Accept", Value: "*/*"},
		{Name: "X-Request-Id", Value: "abc123"},
	}
	if len(req.Headers) != len(want) {
		t.Fatalf("got %d headers, wanted %d", len(req.Headers), len(want))
	}
	for i := range want {
		if req.Headers[i] != want[i] {
			t.Errorf("header %d: got %+v, wanted %+v", i, req.Headers[i], want[i])
		}
	}
}

func TestParseRequestIgnoresLinesWithoutColon(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"this line has no colon\r\n" +
		"Accept: */*\r\n" +
		"\r\n"

	req := ParseRequest([]byte(raw))
	if len(req.Headers) != 2 {
		t.Fatalf("got %d headers, wanted 2: %+v", len(req.Headers), req.Headers)
	}
}

func TestParseRequestValueTruncation(t *testing.T) {
	long := strings.Repeat("v", maxHeaderValueLen+100)
	raw := "GET / HTTP/1.1\r\nX-Long: " + long + "\r\n\r\n"

	req := ParseRequest([]byte(raw))
	if len(req.Headers) != 1 {
		t.Fatalf("got %d headers, wanted 1", len(req.Headers))
	}
	if got := len(req.Headers[0].Value); got != maxHeaderValueLen {
		t.Errorf("got value length %d, wanted %d", got, maxHeaderValueLen)
	}
}

func TestParseRequestStopsAtBody(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\n" +
		"Host: x\r\n" +
		"\r\n" +
		"Not-A-Header: from the body\r\n"

	req := ParseRequest([]byte(raw))
	if len(req.Headers) != 1 {
		t.Fatalf("got %d headers, wanted 1: %+v", len(req.Headers), req.Headers)
	}
	if req.Headers[0].Name != "Host" {
		t.Errorf("got header %q, wanted %q", req.Headers[0].Name, "Host")
	}
}

func TestParseRequestLeadingWhitespaceTrimmed(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: \t  example.com\r\n\r\n"
	req := ParseRequest([]byte(raw))
	if len(req.Headers) != 1 || req.Headers[0].Value != "example.com" {
		t.Errorf("got headers %+v, wanted Host=example.com", req.Headers)
	}
}

func TestParseRequestSnoozeFields(t *testing.T) {
	req := ParseRequest([]byte("GET /snooze/5 HTTP/1.1\r\n\r\n"))
	if !req.IsSnooze || req.SnoozeSeconds != 5 {
		t.Errorf("got snooze %v/%d, wanted true/5", req.IsSnooze, req.SnoozeSeconds)
	}

	req = ParseRequest([]byte("GET /other HTTP/1.1\r\n\r\n"))
	if req.IsSnooze || req.SnoozeSeconds != 0 {
		t.Errorf("got snooze %v/%d, wanted false/0", req.IsSnooze, req.SnoozeSeconds)
	}
}
