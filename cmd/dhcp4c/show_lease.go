package main

import (
	"fmt"
	"time"

	"grimm.is/dhcp4c/internal/dhcp4"
)

// RunShowLease prints the stored lease for the configured interface, or a
// short message if none is stored.
func RunShowLease(configFile string) error {
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
			fmt.Printf("no stored lease for %s\n", cfg.Interface)
			return nil
		}
		return fmt.Errorf("loading lease: %w", err)
	}

	fmt.Printf("interface:   %s\n", cfg.Interface)
	fmt.Printf("address:     %s\n", lease.YourIPAddr)
	fmt.Printf("server:      %s (%s)\n", lease.ServerID, lease.ServerHWAddr)
	fmt.Printf("subnet mask: %s\n", ipMaskString(lease.SubnetMask))
	fmt.Printf("router:      %s\n", ipListString(lease.Router))
	fmt.Printf("dns:         %s\n", ipListString(lease.DNS))
	fmt.Printf("domain:      %s\n", lease.DomainName)
	fmt.Printf("obtained:    %s\n", lease.ObtainedAt.Format(time.RFC3339))
	fmt.Printf("renews:      %s\n", lease.RenewalDueAt().Format(time.RFC3339))
	fmt.Printf("rebinds:     %s\n", lease.RebindingDueAt().Format(time.RFC3339))
	fmt.Printf("expires:     %s\n", lease.ExpiresAt().Format(time.RFC3339))
	return nil
}
