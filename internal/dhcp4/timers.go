package dhcp4

import (
	"sync"
	"time"

	"grimm.is/dhcp4c/internal/clock"
)

// LeaseTimers holds the three one-shot timers derived from a granted
// lease: renewal (T1), rebinding (T2), and expiration. At most one of each
// is armed at a time.
type LeaseTimers struct {
	mu        sync.Mutex
	clock     clock.Clock
	renewal   clock.Timer
	rebinding clock.Timer
	expiry    clock.Timer
}

// NewLeaseTimers returns an unarmed LeaseTimers bound to clk.
func NewLeaseTimers(clk clock.Clock) *LeaseTimers {
	return &LeaseTimers{clock: clk}
}

// Arm (re)schedules all three timers from the current time using the
// lease's T1/T2/lease-time durations. Any previously armed timers are
// cancelled first. If a duration is non-positive the corresponding
// callback runs immediately (synchronously, before Arm returns).
func (t *LeaseTimers) Arm(l *Lease, onRenewal, onRebinding, onExpiry func()) {
	t.mu.Lock()
	t.cancelLocked()
	t.mu.Unlock()

	t.schedule(&t.renewal, l.RenewalTime, onRenewal)
	t.schedule(&t.rebinding, l.RebindingTime, onRebinding)
	t.schedule(&t.expiry, l.LeaseTime, onExpiry)
}

func (t *LeaseTimers) schedule(slot *clock.Timer, d time.Duration, f func()) {
	if d <= 0 {
		f()
		return
	}
	t.mu.Lock()
	*slot = t.clock.AfterFunc(d, f)
	t.mu.Unlock()
}

// Cancel clears all three timers atomically. Calling it twice in a row is a
// no-op.
func (t *LeaseTimers) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *LeaseTimers) cancelLocked() {
	if t.renewal != nil {
		t.renewal.Stop()
		t.renewal = nil
	}
	if t.rebinding != nil {
		t.rebinding.Stop()
		t.rebinding = nil
	}
	if t.expiry != nil {
		t.expiry.Stop()
		t.expiry = nil
	}
}
