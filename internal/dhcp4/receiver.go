package dhcp4

import "context"

// receiverLoop reads frames off the socket, discards anything that doesn't
// carry this session's xid, and forwards the rest to the run goroutine for
// dispatch. It never mutates FSM state itself.
func (c *Client) receiverLoop(ctx context.Context) {
	defer close(c.receiverDone)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if c.getState() == Off {
			return
		}

		msg, err := c.socket.Get(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if isNetDown(err) {
				c.log.Error("receiver: network down", "err", err)
				return
			}
			c.log.Debug("receiver: get failed", "err", err)
			continue
		}

		if !c.xidMatches(msg.Xid) {
			c.log.Debug("receiver: xid mismatch, discarding", "type", msg.Type.String())
			continue
		}

		c.pushEvent(clientEvent{kind: eventReceived, msg: msg})
	}
}
