// Package clock provides a mockable time source.
//
// In production it simply wraps the real time package. In tests, a
// MockClock lets a whole test scenario advance virtual time in one call
// and observe every timer that becomes due fire synchronously and in
// order — which is how the DHCP client's renewal/rebinding/expiration
// matrix is exercised without actually sleeping.
//
// Time Sanity Check:
//
//	On boot, call EnsureSaneTime() to set system clock from saved anchor
//	if the current system time is unreasonable (before 2023). A DHCP
//	client started on a device with no battery-backed RTC otherwise
//	computes lease expirations against a clock that thinks it's 1970.
package clock

import (
	"sort"
	"sync"
	"time"
)

// MinReasonableYear is the earliest year we consider valid.
const MinReasonableYear = 2023

// Timer is returned by Clock.AfterFunc. Stop prevents the callback from
// firing if it hasn't already; it returns false if the timer already fired
// or was already stopped.
type Timer interface {
	Stop() bool
}

// Clock is the interface for time operations.
// Use package-level functions for convenience, or inject a Clock for testing.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Until(t time.Time) time.Duration
	// AfterFunc schedules f to run once, after d has elapsed on this clock.
	AfterFunc(d time.Duration, f func()) Timer
}

// --- Real Clock (simple wrapper) ---

// RealClock provides the actual system time.
type RealClock struct{}

func (c *RealClock) Now() time.Time                    { return time.Now() }
func (c *RealClock) Since(t time.Time) time.Duration    { return time.Since(t) }
func (c *RealClock) Until(t time.Time) time.Duration    { return time.Until(t) }
func (c *RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// --- Mock Clock (for testing) ---

// MockClock is a test clock with controllable time. Advancing it past a
// scheduled AfterFunc deadline runs that callback synchronously, in the
// same goroutine that called Advance/Set, before the call returns.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	pending []*mockTimer
	seq     int
}

type mockTimer struct {
	due     time.Time
	seq     int
	f       func()
	fired   bool
	stopped bool
}

func (t *mockTimer) Stop() bool {
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewMockClock creates a mock clock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *MockClock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }
func (c *MockClock) Until(t time.Time) time.Duration { return t.Sub(c.Now()) }

// AfterFunc registers f to run once the mock clock reaches current+d.
func (c *MockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &mockTimer{due: c.current.Add(d), seq: c.seq, f: f}
	c.pending = append(c.pending, t)
	return t
}

// Set moves the mock clock to t and fires any timer now due, in deadline
// order (ties broken by registration order).
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	due := c.collectDue()
	c.mu.Unlock()
	runDue(due)
}

// Advance moves the mock clock forward by d and fires any timer now due.
func (c *MockClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

// collectDue must be called with c.mu held; it removes and returns fired
// timers in order, leaving still-pending ones in c.pending.
func (c *MockClock) collectDue() []*mockTimer {
	var due []*mockTimer
	var remaining []*mockTimer
	for _, t := range c.pending {
		if !t.stopped && !t.current_after(c.current) {
			t.fired = true
			due = append(due, t)
		} else if !t.fired && !t.stopped {
			remaining = append(remaining, t)
		}
	}
	c.pending = remaining
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].seq < due[j].seq
		}
		return due[i].due.Before(due[j].due)
	})
	return due
}

func (t *mockTimer) current_after(now time.Time) bool {
	return t.due.After(now)
}

func runDue(due []*mockTimer) {
	for _, t := range due {
		if !t.stopped {
			t.f()
		}
	}
}

// --- Package-level convenience functions ---

func Now() time.Time                 { return time.Now() }
func Since(t time.Time) time.Duration { return time.Since(t) }
func Until(t time.Time) time.Duration { return time.Until(t) }

// --- Utilities ---

// IsReasonableTime returns true if year >= MinReasonableYear.
func IsReasonableTime(t time.Time) bool {
	return t.Year() >= MinReasonableYear
}
