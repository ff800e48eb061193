package dhcp4

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// WaitForStateTimeoutError reports that WaitForState's deadline passed
// before the client reached the expected state.
type WaitForStateTimeoutError struct {
	Expected, Actual State
}

func (e *WaitForStateTimeoutError) Error() string {
	return fmt.Sprintf("dhcp4: timed out waiting for state %s, currently %s", e.Expected, e.Actual)
}

// Enter brings the client up: mints the session Xid, optionally writes a
// pidfile, asks the LeaseStore for a cached lease (INIT_REBOOT if found,
// INIT otherwise), opens the transport socket, spawns the run/sender/
// receiver goroutines, and kicks off acquisition with a bootstrap call.
func (c *Client) Enter(ctx context.Context) error {
	xid, err := NewXid()
	if err != nil {
		return fmt.Errorf("dhcp4: minting xid: %w", err)
	}
	c.setXid(xid)

	if c.cfg.WritePidfile {
		if err := c.writePidfile(); err != nil {
			return fmt.Errorf("dhcp4: writing pidfile: %w", err)
		}
	}

	lease, err := c.store.Load(c.cfg.Interface)
	switch {
	case err == nil:
		c.setLease(lease)
		c.setStateRaw(InitReboot)
	case errors.Is(err, ErrNoLease):
		c.setStateRaw(Init)
	default:
		return fmt.Errorf("dhcp4: loading stored lease: %w", err)
	}

	if err := c.socket.Open(ctx, c.cfg.Interface); err != nil {
		return fmt.Errorf("dhcp4: opening socket: %w", err)
	}

	c.events = make(chan clientEvent, 64)
	c.outbox = make(chan *SentDHCPMessage, 1)
	c.shutdownCh = make(chan struct{})
	c.senderDone = make(chan struct{})
	c.receiverDone = make(chan struct{})

	go c.run(ctx)
	go c.senderLoop(ctx)
	go c.receiverLoop(ctx)

	c.pushEvent(clientEvent{kind: eventBootstrap})
	return nil
}

// Exit tears the client down: cancels all timers and the watchdog, runs
// UNBOUND hooks, optionally sends a unicast/broadcast RELEASE for any
// held, unexpired lease, transitions to OFF, and waits for the sender and
// receiver loops to drain before closing the socket.
func (c *Client) Exit(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case c.events <- clientEvent{kind: eventExit, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-c.senderDone:
	case <-ctx.Done():
	}
	select {
	case <-c.receiverDone:
	case <-ctx.Done():
	}

	if err := c.socket.Close(); err != nil {
		c.log.Error("exit: closing socket", "err", err)
	}
	c.setXid(nil)
	if c.cfg.WritePidfile {
		c.removePidfile()
	}
	return nil
}

// doExit runs on the run goroutine as the handler for eventExit.
func (c *Client) doExit(ctx context.Context) {
	c.timers.Cancel()
	c.watchdogMu.Lock()
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
	c.watchdogMu.Unlock()

	lease := c.getLease()
	if lease != nil {
		runHooks(ctx, c.cfg.Hooks, lease, TriggerUnbound, c.onHookError)
		if c.cfg.Release && !lease.Expired(c.clock.Now()) {
			c.installOutbound(c.socket.Release(lease))
		}
	}
	if c.getState() != Off {
		c.transition(ctx, Off)
	}
	close(c.shutdownCh)
}

// WaitForState polls (at a fixed real-time interval, independent of any
// injected clock) until the client reaches want or timeout elapses. It is
// a convenience for production callers; tests driving a clock.MockClock
// should instead advance the clock and call Sync.
func (c *Client) WaitForState(ctx context.Context, want State, timeout time.Duration) error {
	deadline := c.clock.Now().Add(timeout)
	const poll = 10 * time.Millisecond
	for {
		if c.getState() == want {
			return nil
		}
		if !c.clock.Now().Before(deadline) {
			return &WaitForStateTimeoutError{Expected: want, Actual: c.getState()}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

func (c *Client) pidfilePath() string {
	dir := c.cfg.PidfileDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, c.cfg.Interface+".pid")
}

func (c *Client) writePidfile() error {
	return os.WriteFile(c.pidfilePath(), []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

func (c *Client) removePidfile() {
	if err := os.Remove(c.pidfilePath()); err != nil && !os.IsNotExist(err) {
		c.log.Error("exit: removing pidfile", "err", err)
	}
}
