package dhcp4

import "context"

// Trigger names a lifecycle event a Hook can subscribe to.
type Trigger string

const (
	TriggerBound   Trigger = "BOUND"
	TriggerRenewed Trigger = "RENEWED"
	TriggerRebound Trigger = "REBOUND"
	TriggerExpired Trigger = "EXPIRED"
	TriggerUnbound Trigger = "UNBOUND"
)

// HookFunc is invoked at a lifecycle event with the current lease (nil for
// EXPIRED/UNBOUND when no lease is held) and the trigger that fired.
// Errors are logged but never abort the client.
type HookFunc func(ctx context.Context, lease *Lease, trigger Trigger) error

// Hook pairs a HookFunc with the set of triggers it subscribes to.
type Hook struct {
	Triggers []Trigger
	Run      HookFunc
}

func (h Hook) subscribes(t Trigger) bool {
	for _, want := range h.Triggers {
		if want == t {
			return true
		}
	}
	return false
}

// HookFailedLogger receives a hook's error for logging; it never changes
// control flow.
type HookFailedLogger func(h Hook, trigger Trigger, err error)

// runHooks runs every hook subscribed to trigger, in order, logging but
// not propagating failures.
func runHooks(ctx context.Context, hooks []Hook, lease *Lease, trigger Trigger, onError HookFailedLogger) {
	for _, h := range hooks {
		if !h.subscribes(trigger) {
			continue
		}
		if err := h.Run(ctx, lease, trigger); err != nil && onError != nil {
			onError(h, trigger, err)
		}
	}
}
