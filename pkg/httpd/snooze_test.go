package httpd

import (
	"strings"
	"testing"
)

func TestSnoozeSeconds(t *testing.T) {
	testCases := []struct {
		path    string
		seconds int
		ok      bool
	}{
		{path: "/snooze/0", seconds: 0, ok: true},
		{path: "/snooze/1", seconds: 1, ok: true},
		{path: "/snooze/30", seconds: 30, ok: true},
		{path: "/snooze/007", seconds: 7, ok: true},
		{path: "/snooze/00000000000000000003", seconds: 3, ok: true},
		{path: "/snooze/", seconds: 0, ok: false},
		{path: "/snooze", seconds: 0, ok: false},
		{path: "/snooze/abc", seconds: 0, ok: false},
		{path: "/snooze/1a", seconds: 0, ok: false},
		{path: "/snooze/1/2", seconds: 0, ok: false},
		{path: "/snooze/-1", seconds: 0, ok: false},
		{path: "/snooze/1.5", seconds: 0, ok: false},
		{path: "/", seconds: 0, ok: false},
		{path: "/other", seconds: 0, ok: false},
		{path: "/SNOOZE/1", seconds: 0, ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			seconds, ok := SnoozeSeconds(tc.path)
			if ok != tc.ok {
				t.Errorf("got ok %v, wanted %v", ok, tc.ok)
			}
			if seconds != tc.seconds {
				t.Errorf("got %d seconds, wanted %d", seconds, tc.seconds)
			}
		})
	}
}

func TestSnoozeSecondsSaturates(t *testing.T) {
	testCases := []struct {
		name string
		path string
	}{
		{name: "just over the cap", path: "/snooze/86401"},
		{name: "very large", path: "/snooze/99999999999999999999999999"},
		{name: "absurdly long", path: "/snooze/" + strings.Repeat("9", 1000)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			seconds, ok := SnoozeSeconds(tc.path)
			if !ok {
				t.Fatal("got ok false, wanted true")
			}
			if seconds != MaxSnoozeSeconds {
				t.Errorf("got %d seconds, wanted %d", seconds, MaxSnoozeSeconds)
			}
		})
	}
}

func TestSnoozeSecondsAtCap(t *testing.T) {
	seconds, ok := SnoozeSeconds("/snooze/86400")
	if !ok || seconds != MaxSnoozeSeconds {
		t.Errorf("got %d/%v, wanted %d/true", seconds, ok, MaxSnoozeSeconds)
	}
}
