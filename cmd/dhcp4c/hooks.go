package main

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"grimm.is/dhcp4c/internal/config"
	"grimm.is/dhcp4c/internal/dhcp4"
)

// execHook returns a HookFunc that runs hb.Command with hb.Args, the
// lease (if any) passed as DHCP4_* environment variables, the way
// dhclient-script invokes /etc/dhcp/dhclient-exit-hooks.
func execHook(hb config.HookBlock) dhcp4.HookFunc {
	return func(ctx context.Context, lease *dhcp4.Lease, trigger dhcp4.Trigger) error {
		cmd := exec.CommandContext(ctx, hb.Command, hb.Args...)
		cmd.Env = append(cmd.Env, "DHCP4_TRIGGER="+string(trigger))
		cmd.Env = append(cmd.Env, leaseEnv(lease)...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("hook %s: %w: %s", hb.Command, err, strings.TrimSpace(string(out)))
		}
		return nil
	}
}

func leaseEnv(l *dhcp4.Lease) []string {
	if l == nil {
		return nil
	}
	env := []string{
		"DHCP4_IP=" + ipString(l.YourIPAddr),
		"DHCP4_SERVER_ID=" + ipString(l.ServerID),
		"DHCP4_LEASE_TIME=" + strconv.Itoa(int(l.LeaseTime/time.Second)),
		"DHCP4_DOMAIN_NAME=" + l.DomainName,
	}
	if len(l.Router) > 0 {
		env = append(env, "DHCP4_ROUTER="+joinIPs(l.Router))
	}
	if len(l.DNS) > 0 {
		env = append(env, "DHCP4_DNS="+joinIPs(l.DNS))
	}
	return env
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

func joinIPs(ips []net.IP) string {
	parts := make([]string, len(ips))
	for i, ip := range ips {
		parts[i] = ip.String()
	}
	return strings.Join(parts, " ")
}
