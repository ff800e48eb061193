package dhcp4

import (
	"context"
	"time"
)

// installOutbound replaces whatever is currently sitting in the outbound
// mailbox with msg (or clears it, if msg is nil). The mailbox holds at
// most one message: a new outbound message always supersedes whatever the
// sender hasn't picked up yet, it never queues behind it.
func (c *Client) installOutbound(msg *SentDHCPMessage) {
	for {
		select {
		case c.outbox <- msg:
			return
		default:
			select {
			case <-c.outbox:
			default:
			}
		}
	}
}

// senderLoop owns the single outbound message slot and its retransmission
// cadence. It never mutates FSM state directly; state/xid/secs are
// re-read from the client on every transmission attempt so a retransmit
// reflects however much time has actually passed since the last state
// change.
func (c *Client) senderLoop(ctx context.Context) {
	defer close(c.senderDone)

	var current *SentDHCPMessage
	var schedule RetransmissionSchedule
	fired := make(chan struct{}, 1)
	var timer interface{ Stop() bool }

	arm := func(d time.Duration) {
		if timer != nil {
			timer.Stop()
		}
		timer = c.clock.AfterFunc(d, func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-c.shutdownCh:
			stopTimer()
			select {
			case msg := <-c.outbox:
				current = msg
			default:
			}
			if current != nil && current.Type == MessageTypeRelease {
				_ = c.sendCurrent(ctx, current)
			}
			return

		case msg := <-c.outbox:
			current = msg
			if current == nil {
				stopTimer()
				continue
			}
			st, _, deadline := c.scheduleContext()
			schedule = c.cfg.ScheduleFactory.NewSchedule(st, deadline)
			if err := c.sendCurrent(ctx, current); err != nil && isNetDown(err) {
				c.log.Error("sender: network down", "err", err)
				return
			}
			arm(schedule.Next())

		case <-fired:
			if current == nil || schedule == nil {
				continue
			}
			if err := c.sendCurrent(ctx, current); err != nil && isNetDown(err) {
				c.log.Error("sender: network down", "err", err)
				return
			}
			if c.metrics != nil {
				st, _, _ := c.scheduleContext()
				c.metrics.Retransmits.WithLabelValues(c.cfg.Interface, st.String()).Inc()
			}
			arm(schedule.Next())
		}
	}
}

// scheduleContext snapshots what the sender needs under lock: the current
// state, the xid to stamp outbound messages with, and the retransmission
// deadline (only meaningful in RENEWING/REBINDING).
func (c *Client) scheduleContext() (State, uint32, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.state
	var xid uint32
	if c.xid != nil {
		xid = c.xid.ForState(st)
	}
	var deadline time.Time
	if c.lease != nil {
		switch st {
		case Renewing:
			deadline = c.lease.RebindingDueAt()
		case Rebinding:
			deadline = c.lease.ExpiresAt()
		}
	}
	return st, xid, deadline
}

// sendCurrent stamps msg with the current xid and secs-elapsed, then hands
// it to the socket. Per the shutdown rule, any non-RELEASE message is
// silently dropped once the client has reached OFF.
func (c *Client) sendCurrent(ctx context.Context, msg *SentDHCPMessage) error {
	st, xid, _ := c.scheduleContext()
	if st == Off && msg.Type != MessageTypeRelease {
		return nil
	}

	wire := *msg
	wire.Xid = xid
	wire.Secs = c.secsSinceStateChange()

	const putAttempts = 3
	const putRetryDelay = 100 * time.Millisecond
	err := c.socket.Put(ctx, &wire)
	for attempt := 1; err != nil && !isNetDown(err) && attempt < putAttempts; attempt++ {
		c.log.Warn("sender: put failed, retrying", "type", wire.Type.String(), "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(putRetryDelay):
		}
		err = c.socket.Put(ctx, &wire)
	}
	if err != nil {
		c.log.Warn("sender: put failed", "type", wire.Type.String(), "err", err)
		return err
	}

	if c.metrics != nil {
		c.metrics.MessagesSent.WithLabelValues(c.cfg.Interface, wire.Type.String()).Inc()
	}
	if isRequestFamily(wire.Type) {
		c.setLastRequestSentAt(c.clock.Now())
	}
	return nil
}

func (c *Client) secsSinceStateChange() uint16 {
	c.mu.RLock()
	since := c.clock.Since(c.lastStateChange)
	c.mu.RUnlock()

	secs := int64(since / time.Second)
	if secs < 0 {
		secs = 0
	}
	if secs > 0xFFFF {
		secs = 0xFFFF
	}
	return uint16(secs)
}
