package dhcp4

import (
	"context"
	"time"
)

// ackLegalStates is the set of states in which an ACK is meaningful: one
// per issuing state that can end in a binding.
var ackLegalStates = map[State]bool{
	Requesting: true,
	Rebooting:  true,
	Renewing:   true,
	Rebinding:  true,
}

// run is the client's single FSM-mutating goroutine. Every state read by
// the sender/receiver loops and every state write happens here, funneled
// through events so at most one handler runs at a time.
func (c *Client) run(ctx context.Context) {
	for ev := range c.events {
		switch ev.kind {
		case eventBarrier:
			close(ev.done)
		case eventReceived:
			c.dispatch(ctx, ev.msg)
		case eventBootstrap:
			c.bootstrap(ctx)
		case eventRenewalTimer:
			c.onRenewalTimer(ctx)
		case eventRebindingTimer:
			c.onRebindingTimer(ctx)
		case eventExpiryTimer:
			c.onExpiryTimer(ctx)
		case eventWatchdog:
			c.onWatchdog(ctx, ev.forState)
		case eventResetContinue:
			c.doReset(ctx)
		case eventExit:
			c.doExit(ctx)
			close(ev.done)
			return
		}
	}
}

// transition moves the FSM from its current state to to. An illegal edge
// panics: every call site only reaches transition after checking the
// precondition itself, so reaching an illegal edge here is a bug, not a
// runtime condition to recover from.
func (c *Client) transition(ctx context.Context, to State) {
	c.mu.Lock()
	from := c.state
	if !canTransition(from, to) {
		c.mu.Unlock()
		panic(&IllegalStateTransitionError{From: from, To: to})
	}
	c.state = to
	c.lastStateChange = c.clock.Now()
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.Transitions.WithLabelValues(c.cfg.Interface, from.String(), to.String()).Inc()
		c.metrics.State.WithLabelValues(c.cfg.Interface, from.String()).Set(0)
		c.metrics.State.WithLabelValues(c.cfg.Interface, to.String()).Set(1)
	}
	c.log.Debug("state transition", "from", from.String(), "to", to.String())
	c.rearmWatchdog(to)
}

// rearmWatchdog cancels any previously armed watchdog and, if the new
// state has a configured timeout, arms one for it.
func (c *Client) rearmWatchdog(s State) {
	c.watchdogMu.Lock()
	defer c.watchdogMu.Unlock()
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
	d, ok := c.cfg.Timeouts[s]
	if !ok || d <= 0 {
		return
	}
	c.watchdog = c.clock.AfterFunc(d, func() {
		c.pushEvent(clientEvent{kind: eventWatchdog, forState: s})
	})
}

func (c *Client) onWatchdog(ctx context.Context, forState State) {
	if c.getState() != forState {
		// Already transitioned away; this watchdog lost the race with
		// a legitimate reply and is stale.
		return
	}
	c.log.Warn("watchdog expired, resetting", "state", forState)
	c.reset(ctx, 0)
}

// bootstrap kicks off the client's first outbound message. Legal only from
// INIT (emit DISCOVER) or INIT_REBOOT (emit a broadcast REQUEST for the
// cached lease); any other state is a silently-dropped, debug-logged
// no-op, per the per-handler state guard discipline.
func (c *Client) bootstrap(ctx context.Context) {
	switch c.getState() {
	case Init:
		c.transition(ctx, Selecting)
		c.installOutbound(c.socket.Discover(c.cfg.RequestedParameters))
	case InitReboot:
		lease := c.getLease()
		if lease == nil {
			panic("dhcp4: bootstrap from INIT_REBOOT without a cached lease")
		}
		c.transition(ctx, Rebooting)
		c.installOutbound(c.socket.RequestForLease(c.cfg.RequestedParameters, lease, Rebooting))
	default:
		c.log.Debug("bootstrap: illegal in state", "state", c.getState())
	}
}

func (c *Client) dispatch(ctx context.Context, msg *ReceivedDHCPMessage) {
	if c.metrics != nil {
		c.metrics.MessagesRecv.WithLabelValues(c.cfg.Interface, msg.Type.String()).Inc()
	}
	switch msg.Type {
	case MessageTypeOffer:
		c.offerReceived(ctx, msg)
	case MessageTypeAck:
		c.ackReceived(ctx, msg)
	case MessageTypeNak:
		c.nakReceived(ctx, msg)
	default:
		c.log.Debug("dispatch: no handler for message type", "type", msg.Type.String())
	}
}

// offerReceived is legal only in SELECTING.
func (c *Client) offerReceived(ctx context.Context, msg *ReceivedDHCPMessage) {
	if c.getState() != Selecting {
		c.log.Debug("offer_received: illegal in state", "state", c.getState())
		return
	}
	c.transition(ctx, Requesting)
	c.installOutbound(c.socket.RequestForOffer(c.cfg.RequestedParameters, msg))
}

// ackReceived is legal in REQUESTING, REBOOTING, RENEWING, REBINDING: every
// state that issued a REQUEST awaiting a binding decision.
func (c *Client) ackReceived(ctx context.Context, msg *ReceivedDHCPMessage) {
	cur := c.getState()
	if !ackLegalStates[cur] {
		c.log.Debug("ack_received: illegal in state", "state", cur)
		return
	}
	issuedFrom, ok := RequestState(msg.Xid)
	if !ok {
		c.log.Warn("ack_received: xid does not decode to a known issuing state, discarding")
		return
	}

	lease := c.buildLease(msg)
	c.setLease(lease)
	if err := c.store.Dump(c.cfg.Interface, lease); err != nil {
		c.log.Error("ack_received: failed to persist lease", "err", err)
	}
	c.timers.Arm(lease,
		func() { c.pushEvent(clientEvent{kind: eventRenewalTimer}) },
		func() { c.pushEvent(clientEvent{kind: eventRebindingTimer}) },
		func() { c.pushEvent(clientEvent{kind: eventExpiryTimer}) },
	)

	c.transition(ctx, Bound)
	c.installOutbound(nil)
	if c.metrics != nil {
		c.metrics.Leases.WithLabelValues(c.cfg.Interface).Inc()
		c.metrics.LeaseExpiry.WithLabelValues(c.cfg.Interface).Set(float64(lease.ExpiresAt().Unix()))
		c.metrics.RenewalDue.WithLabelValues(c.cfg.Interface).Set(float64(lease.RenewalDueAt().Unix()))
		c.metrics.RebindDue.WithLabelValues(c.cfg.Interface).Set(float64(lease.RebindingDueAt().Unix()))
	}

	var trigger Trigger
	switch issuedFrom {
	case Requesting, Rebooting:
		trigger = TriggerBound
	case Renewing:
		trigger = TriggerRenewed
	case Rebinding:
		trigger = TriggerRebound
	default:
		c.log.Warn("ack_received: unrecognized issuing state, no hooks run", "state", issuedFrom)
		return
	}
	runHooks(ctx, c.cfg.Hooks, lease, trigger, c.onHookError)
}

func (c *Client) buildLease(msg *ReceivedDHCPMessage) *Lease {
	return &Lease{
		YourIPAddr:    msg.YourIPAddr,
		ServerID:      msg.ServerID,
		ServerHWAddr:  msg.EthSrc,
		ObtainedAt:    c.getLastRequestSentAt(),
		SubnetMask:    msg.SubnetMask,
		Router:        msg.Router,
		DNS:           msg.DNS,
		DomainName:    msg.DomainName,
		LeaseTime:     secondsToDuration(msg.LeaseTime),
		RenewalTime:   secondsToDuration(msg.RenewalTime),
		RebindingTime: secondsToDuration(msg.RebindTime),
		Options:       msg.Options,
	}
}

// nakReceived is legal in the same states as ackReceived: a NAK is always
// the server's answer to a REQUEST, never to a DISCOVER.
func (c *Client) nakReceived(ctx context.Context, msg *ReceivedDHCPMessage) {
	cur := c.getState()
	if !ackLegalStates[cur] {
		c.log.Debug("nak_received: illegal in state", "state", cur)
		return
	}
	if c.metrics != nil {
		c.metrics.Naks.WithLabelValues(c.cfg.Interface, cur.String()).Inc()
	}
	c.log.Warn("nak received, resetting", "state", cur)
	c.reset(ctx, 0)
}

func (c *Client) onRenewalTimer(ctx context.Context) {
	lease := c.getLease()
	if lease == nil {
		panic("dhcp4: renewal timer fired without a lease")
	}
	c.transition(ctx, Renewing)
	c.installOutbound(c.socket.RequestForLease(c.cfg.RequestedParameters, lease, Renewing))
}

func (c *Client) onRebindingTimer(ctx context.Context) {
	lease := c.getLease()
	if lease == nil {
		panic("dhcp4: rebinding timer fired without a lease")
	}
	c.transition(ctx, Rebinding)
	c.installOutbound(c.socket.RequestForLease(c.cfg.RequestedParameters, lease, Rebinding))
}

func (c *Client) onExpiryTimer(ctx context.Context) {
	lease := c.getLease()
	runHooks(ctx, c.cfg.Hooks, lease, TriggerExpired, c.onHookError)
	c.reset(ctx, 0)
}

// reset restarts acquisition from scratch: drop the lease, cancel timers,
// mint a new Xid, and bootstrap from INIT. delay, when positive, is a
// cool-down observed before any of that happens; it is implemented as a
// scheduled continuation rather than a blocking sleep so the run loop
// keeps servicing other events (receiver dispatch, other timers) while it
// elapses.
func (c *Client) reset(ctx context.Context, delay time.Duration) {
	if delay > 0 {
		c.clock.AfterFunc(delay, func() {
			c.pushEvent(clientEvent{kind: eventResetContinue})
		})
		return
	}
	c.doReset(ctx)
}

func (c *Client) doReset(ctx context.Context) {
	c.transition(ctx, Init)
	c.setLease(nil)
	c.timers.Cancel()
	xid, err := NewXid()
	if err != nil {
		c.log.Error("reset: failed to mint new xid", "err", err)
		return
	}
	c.setXid(xid)
	c.bootstrap(ctx)
}

func secondsToDuration(s Seconds) time.Duration {
	return time.Duration(s) * time.Second
}

func (c *Client) onHookError(h Hook, trigger Trigger, err error) {
	if c.metrics != nil {
		c.metrics.HookFailures.WithLabelValues(c.cfg.Interface, string(trigger)).Inc()
	}
	c.log.Error("hook failed", "trigger", string(trigger), "err", err)
}
