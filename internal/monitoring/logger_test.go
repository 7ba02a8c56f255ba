package monitoring

import (
	"fmt"
	"testing"
	"time"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op; this must not panic
	SetLogger(nil)
	Logf("test message")
}

func TestThrottle(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	th := NewThrottle(time.Second)
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	th.Logf(start, "bad frame %d", 1)
	th.Logf(start.Add(100*time.Millisecond), "bad frame %d", 2)
	th.Logf(start.Add(200*time.Millisecond), "bad frame %d", 3)
	th.Logf(start.Add(1500*time.Millisecond), "bad frame %d", 4)

	want := []string{
		"bad frame 1",
		"bad frame 4 (2 similar suppressed)",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %q, want %d", len(lines), lines, len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
