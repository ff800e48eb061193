package dhcp4

import (
	"context"
	"sync"
	"time"

	"grimm.is/dhcp4c/internal/clock"
	"grimm.is/dhcp4c/internal/logging"
	"grimm.is/dhcp4c/internal/metrics"
)

// Config is the orchestrator's configuration, the dhcp4 package's native
// form of the on-disk ClientConfig (internal/config translates one to the
// other at the CLI boundary).
type Config struct {
	Interface           string
	RequestedParameters []int
	Timeouts            map[State]time.Duration
	ScheduleFactory      ScheduleFactory
	WritePidfile        bool
	PidfileDir          string // defaults to the working directory
	Release             bool
	Hooks               []Hook
}

// DefaultConfig returns the configuration pyroute2's AsyncDHCPClient uses
// absent overrides: a 30s REQUESTING watchdog, a 10s REBOOTING watchdog,
// and a 4s-32s randomized exponential backoff outside RENEWING/REBINDING.
func DefaultConfig(iface string, clk clock.Clock) Config {
	return Config{
		Interface:           iface,
		RequestedParameters: []int{1, 3, 6, 15, 28, 51, 58, 59},
		Timeouts: map[State]time.Duration{
			Rebooting:  10 * time.Second,
			Requesting: 30 * time.Second,
		},
		ScheduleFactory: &DefaultScheduleFactory{
			WaitFirst: 4 * time.Second,
			WaitMax:   32 * time.Second,
			Factor:    2.0,
			Clock:     clk,
		},
		Release: true,
	}
}

type eventKind uint8

const (
	eventReceived eventKind = iota
	eventRenewalTimer
	eventRebindingTimer
	eventExpiryTimer
	eventWatchdog
	eventBootstrap
	eventResetContinue
	eventExit
	eventBarrier
)

type clientEvent struct {
	kind     eventKind
	msg      *ReceivedDHCPMessage
	forState State
	done     chan struct{}
}

// Client is the DHCP client orchestrator: it wires the state machine,
// sender/receiver loops, lease timers, and retransmission scheduler
// together behind a scoped Enter/Exit lifecycle.
//
// All FSM mutation happens on the single goroutine running (run); every
// other goroutine (sender, receiver, timer callbacks) only reads state
// through locked accessors and communicates mutation requests by pushing a
// clientEvent onto events. This reproduces the reference implementation's
// single-threaded cooperative discipline (spec section 5) using channels
// instead of an explicit event loop.
type Client struct {
	cfg     Config
	socket  Socket
	store   LeaseStore
	clock   clock.Clock
	log     *logging.Logger
	metrics *metrics.Registry

	mu                sync.RWMutex
	state             State
	lease             *Lease
	xid               *Xid
	lastStateChange   time.Time
	lastRequestSentAt time.Time

	timers     *LeaseTimers
	watchdogMu sync.Mutex
	watchdog   clock.Timer

	outbox      chan *SentDHCPMessage
	events      chan clientEvent
	shutdownCh  chan struct{}
	senderDone  chan struct{}
	receiverDone chan struct{}
}

// NewClient builds a Client. socket and store are required; clk defaults
// to the real clock if nil; log defaults to logging.Default().
func NewClient(cfg Config, socket Socket, store LeaseStore, clk clock.Clock, log *logging.Logger) *Client {
	if clk == nil {
		clk = &clock.RealClock{}
	}
	if log == nil {
		log = logging.Default()
	}
	if cfg.ScheduleFactory == nil {
		cfg.ScheduleFactory = &DefaultScheduleFactory{WaitFirst: 4 * time.Second, WaitMax: 32 * time.Second, Factor: 2.0, Clock: clk}
	}
	return &Client{
		cfg:    cfg,
		socket: socket,
		store:  store,
		clock:  clk,
		log:    log.WithComponent(cfg.Interface),
		timers: NewLeaseTimers(clk),
	}
}

// WithMetrics attaches a metrics registry. Optional.
func (c *Client) WithMetrics(m *metrics.Registry) *Client {
	c.metrics = m
	return c
}

// State returns the client's current FSM state.
func (c *Client) State() State {
	return c.getState()
}

// Lease returns the client's current lease, or nil if unbound.
func (c *Client) Lease() *Lease {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lease == nil {
		return nil
	}
	cp := *c.lease
	return &cp
}

func (c *Client) getState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setStateRaw(s State) {
	c.mu.Lock()
	c.state = s
	c.lastStateChange = c.clock.Now()
	c.mu.Unlock()
}

func (c *Client) getLease() *Lease {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lease
}

func (c *Client) setLease(l *Lease) {
	c.mu.Lock()
	c.lease = l
	c.mu.Unlock()
}

func (c *Client) setXid(x *Xid) {
	c.mu.Lock()
	c.xid = x
	c.mu.Unlock()
}

func (c *Client) xidMatches(received uint32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.xid == nil {
		return false
	}
	return c.xid.Matches(received)
}

func (c *Client) getLastRequestSentAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRequestSentAt
}

func (c *Client) setLastRequestSentAt(t time.Time) {
	c.mu.Lock()
	c.lastRequestSentAt = t
	c.mu.Unlock()
}

func (c *Client) pushEvent(ev clientEvent) {
	select {
	case c.events <- ev:
	default:
		// Events channel is generously buffered (see Enter); a full
		// buffer here means the run loop is stuck, which is itself a
		// bug. Block rather than drop a state-changing event.
		c.events <- ev
	}
}

// Sync blocks until every event enqueued before this call has been
// processed by the run loop. It exists for deterministic tests driving a
// clock.MockClock: advance the clock, call Sync, then assert state.
func (c *Client) Sync(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case c.events <- clientEvent{kind: eventBarrier, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isNetDown(err error) bool {
	_, ok := err.(*NetDownError)
	return ok
}

func isRequestFamily(t MessageType) bool {
	return t == MessageTypeRequest
}
