package config

// ClientConfig is the on-disk HCL configuration for one DHCP client
// instance. A process managing several interfaces loads one ClientConfig
// per interface.
type ClientConfig struct {
	Interface  string `hcl:"interface"`
	LeaseType  string `hcl:"lease_type,optional"`  // "memory", "file", "sqlite", "stdout"
	LeaseStore string `hcl:"lease_store,optional"` // path for "file"/"sqlite", ignored otherwise

	RequestedParameters []int `hcl:"requested_parameters,optional"`

	Timeouts      *TimeoutsBlock      `hcl:"timeouts,block"`
	Retransmitter *RetransmitterBlock `hcl:"retransmission,block"`
	Hooks         []HookBlock         `hcl:"hook,block"`

	WritePidfile bool   `hcl:"write_pidfile,optional"`
	PidfilePath  string `hcl:"pidfile_path,optional"`
	Release      bool   `hcl:"release,optional"`
}

// TimeoutsBlock sets per-state watchdog timeouts, in seconds. Zero means no
// watchdog for that state.
type TimeoutsBlock struct {
	Rebooting  int `hcl:"rebooting,optional"`
	Requesting int `hcl:"requesting,optional"`
}

// RetransmitterBlock configures the randomized exponential backoff used
// while waiting for a server reply.
type RetransmitterBlock struct {
	WaitFirst float64 `hcl:"wait_first,optional"`
	WaitMax   float64 `hcl:"wait_max,optional"`
	Factor    float64 `hcl:"factor,optional"`
}

// HookBlock binds a trigger (bound, renewed, rebound, expired, unbound) to
// an external command invoked with the lease as environment variables, the
// way dhclient invokes /etc/dhcp/dhclient-exit-hooks.
type HookBlock struct {
	Trigger string   `hcl:"trigger,label"`
	Command string   `hcl:"command"`
	Args    []string `hcl:"args,optional"`
}

// DefaultClientConfig returns the configuration pyroute2's AsyncDHCPClient
// would use absent any overrides: 30s REQUESTING watchdog, 10s REBOOTING
// watchdog, a 4s-to-32s randomized exponential backoff, and an in-memory
// lease store.
func DefaultClientConfig(iface string) *ClientConfig {
	return &ClientConfig{
		Interface:           iface,
		LeaseType:           "memory",
		RequestedParameters: DefaultRequestedParameters(),
		Timeouts: &TimeoutsBlock{
			Rebooting:  10,
			Requesting: 30,
		},
		Retransmitter: &RetransmitterBlock{
			WaitFirst: 4.0,
			WaitMax:   32.0,
			Factor:    2.0,
		},
		WritePidfile: false,
		Release:      true,
	}
}

// DefaultRequestedParameters returns the DHCP option codes requested via
// Parameter Request List (option 55) absent an override: subnet mask,
// router, domain name servers, domain name, broadcast address, lease time,
// and the renewal/rebinding times.
func DefaultRequestedParameters() []int {
	return []int{1, 3, 6, 15, 28, 51, 58, 59}
}
