// Package metrics exposes the client's Prometheus registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds the client's metrics. Label sets carry the interface name
// so one process can run several client instances (e.g. a dual-homed box)
// without metric collisions.
type Registry struct {
	State        *prometheus.GaugeVec   // current FSM state, one-hot per label value
	Transitions  *prometheus.CounterVec // state transition count
	MessagesSent *prometheus.CounterVec // DHCP messages sent by type
	MessagesRecv *prometheus.CounterVec // DHCP messages received by type
	Leases       *prometheus.CounterVec // leases acquired
	Naks         *prometheus.CounterVec // NAKs received
	Retransmits  *prometheus.CounterVec // retransmissions per state
	HookFailures *prometheus.CounterVec // hook invocation failures
	LeaseExpiry  *prometheus.GaugeVec   // unix timestamp the current lease expires
	RenewalDue   *prometheus.GaugeVec   // unix timestamp T1 is scheduled to fire
	RebindDue    *prometheus.GaugeVec   // unix timestamp T2 is scheduled to fire
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.State = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dhcp4c_state",
		Help: "1 for the client's current FSM state on this interface, 0 otherwise",
	}, []string{"interface", "state"})

	r.Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcp4c_transitions_total",
		Help: "Total FSM state transitions",
	}, []string{"interface", "from", "to"})

	r.MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcp4c_messages_sent_total",
		Help: "Total DHCP messages sent",
	}, []string{"interface", "type"})

	r.MessagesRecv = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcp4c_messages_received_total",
		Help: "Total DHCP messages received",
	}, []string{"interface", "type"})

	r.Leases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcp4c_leases_total",
		Help: "Total leases acquired (fresh or renewed)",
	}, []string{"interface"})

	r.Naks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcp4c_naks_total",
		Help: "Total NAKs received",
	}, []string{"interface", "state"})

	r.Retransmits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcp4c_retransmits_total",
		Help: "Total message retransmissions",
	}, []string{"interface", "state"})

	r.HookFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcp4c_hook_failures_total",
		Help: "Total hook invocations that returned an error",
	}, []string{"interface", "trigger"})

	r.LeaseExpiry = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dhcp4c_lease_expiry_timestamp_seconds",
		Help: "Unix timestamp the current lease expires",
	}, []string{"interface"})

	r.RenewalDue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dhcp4c_renewal_due_timestamp_seconds",
		Help: "Unix timestamp T1 (renewal) is scheduled to fire",
	}, []string{"interface"})

	r.RebindDue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dhcp4c_rebind_due_timestamp_seconds",
		Help: "Unix timestamp T2 (rebinding) is scheduled to fire",
	}, []string{"interface"})

	return r
}
