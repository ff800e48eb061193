package main

import (
	"fmt"
	"os"
	"strings"

	"grimm.is/dhcp4c/internal/config"
	"grimm.is/dhcp4c/internal/dhcp4"
	"grimm.is/dhcp4c/internal/state"
)

// loadClientConfig reads path, falling back to DefaultClientConfig(iface)
// when path is empty so `dhcp4c run --interface eth0` works without a
// config file.
func loadClientConfig(path, iface string) (*config.ClientConfig, error) {
	if path == "" {
		if iface == "" {
			return nil, fmt.Errorf("either --config or --interface is required")
		}
		return config.DefaultClientConfig(iface), nil
	}
	cf, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if iface != "" {
		cf.Config.Interface = iface
	}
	return cf.Config, nil
}

// buildLeaseStore selects the LeaseStore variant named by cfg.LeaseType:
// "memory" (default), "file" (JSON, rooted at cfg.LeaseStore), "sqlite"
// (shared state.Store at cfg.LeaseStore), or "stdout" (write-only, to
// os.Stdout).
func buildLeaseStore(cfg *config.ClientConfig) (dhcp4.LeaseStore, error) {
	switch cfg.LeaseType {
	case "", "memory":
		return dhcp4.NewMemoryLeaseStore(), nil
	case "file":
		dir := cfg.LeaseStore
		if dir == "" {
			dir = "."
		}
		return dhcp4.NewJSONFileLeaseStore(dir), nil
	case "sqlite":
		path := cfg.LeaseStore
		if path == "" {
			return nil, fmt.Errorf("lease_store path required for lease_type = \"sqlite\"")
		}
		st, err := state.NewSQLiteStore(state.DefaultOptions(path))
		if err != nil {
			return nil, fmt.Errorf("opening lease database: %w", err)
		}
		return dhcp4.NewSQLiteLeaseStore(st)
	case "stdout":
		return dhcp4.NewStdoutLeaseStore(os.Stdout), nil
	default:
		return nil, fmt.Errorf("unknown lease_type %q", cfg.LeaseType)
	}
}

func buildHooks(cfg *config.ClientConfig) []dhcp4.Hook {
	hooks := make([]dhcp4.Hook, 0, len(cfg.Hooks))
	for _, hb := range cfg.Hooks {
		hb := hb
		hooks = append(hooks, dhcp4.Hook{
			Triggers: []dhcp4.Trigger{dhcp4.Trigger(strings.ToUpper(hb.Trigger))},
			Run:      execHook(hb),
		})
	}
	return hooks
}
