package main

import (
	"context"
	"fmt"
	"time"

	"grimm.is/dhcp4c/internal/clock"
	"grimm.is/dhcp4c/internal/dhcp4"
	"grimm.is/dhcp4c/internal/logging"
	"grimm.is/dhcp4c/internal/rawsocket"
)

// RunRelease loads the stored lease for the configured interface and sends
// a single best-effort RELEASE, the way `dhclient -r` does, without
// standing up the full state machine.
func RunRelease(configFile string) error {
	cfg, err := loadClientConfig(configFile, "")
	if err != nil {
		return err
	}

	store, err := buildLeaseStore(cfg)
	if err != nil {
		return fmt.Errorf("lease store: %w", err)
	}

	lease, err := store.Load(cfg.Interface)
	if err != nil {
		if err == dhcp4.ErrNoLease {
			fmt.Printf("no stored lease for %s, nothing to release\n", cfg.Interface)
			return nil
		}
		return fmt.Errorf("loading lease: %w", err)
	}

	log := logging.Default().WithComponent("dhcp4c")
	clk := &clock.RealClock{}
	socket := rawsocket.NewAdapter(clk, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := socket.Open(ctx, cfg.Interface); err != nil {
		return fmt.Errorf("opening socket: %w", err)
	}
	defer socket.Close()

	xid, err := dhcp4.NewXid()
	if err != nil {
		return fmt.Errorf("allocating transaction id: %w", err)
	}

	msg := socket.Release(lease)
	msg.Xid = xid.ForState(dhcp4.Renewing)
	if err := socket.Put(ctx, msg); err != nil {
		return fmt.Errorf("sending release: %w", err)
	}

	fmt.Printf("released %s on %s\n", lease.YourIPAddr, cfg.Interface)
	return nil
}
