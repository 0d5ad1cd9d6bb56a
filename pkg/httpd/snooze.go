package httpd

import "strings"

// SnoozePrefix is the reserved path prefix naming a delay request.
const SnoozePrefix = "/snooze/"

// MaxSnoozeSeconds caps the delay a single request may ask for. Digit
// strings that parse beyond it saturate to this value rather than
// overflowing, so arbitrarily long digit strings stay valid delay
// requests with a deterministic outcome.
const MaxSnoozeSeconds = 86400

// SnoozeSeconds reports whether path names a delay request and, if so,
// how many whole seconds were requested. The path must be the snooze
// prefix followed by one or more ASCII digits and nothing else. Leading
// zeros are accepted. A request for zero seconds is a valid delay
// request; the caller simply does not sleep for it.
func SnoozeSeconds(path string) (int, bool) {
	digits, found := strings.CutPrefix(path, SnoozePrefix)
	if !found || digits == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		if n <= MaxSnoozeSeconds {
			n = n*10 + int(c-'0')
		}
	}
	if n > MaxSnoozeSeconds {
		n = MaxSnoozeSeconds
	}
	return n, true
}
