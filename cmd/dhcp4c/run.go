package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"grimm.is/dhcp4c/internal/clock"
	"grimm.is/dhcp4c/internal/config"
	"grimm.is/dhcp4c/internal/dhcp4"
	"grimm.is/dhcp4c/internal/logging"
	"grimm.is/dhcp4c/internal/metrics"
	"grimm.is/dhcp4c/internal/rawsocket"
)

// RunClient loads configFile (or synthesizes a default config for iface),
// enters the client lifecycle, and blocks until SIGINT/SIGTERM.
func RunClient(configFile, iface string) error {
	cfg, err := loadClientConfig(configFile, iface)
	if err != nil {
		return err
	}

	log := logging.Default().WithComponent("dhcp4c")
	clk := &clock.RealClock{}

	store, err := buildLeaseStore(cfg)
	if err != nil {
		return fmt.Errorf("lease store: %w", err)
	}

	socket := rawsocket.NewAdapter(clk, log)

	clientCfg := toClientConfig(cfg, clk)
	client := dhcp4.NewClient(clientCfg, socket, store, clk, log).WithMetrics(metrics.Get())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Enter(ctx); err != nil {
		return fmt.Errorf("entering lifecycle: %w", err)
	}
	log.Info("dhcp4c running", "interface", cfg.Interface)

	<-ctx.Done()
	log.Info("shutting down", "interface", cfg.Interface)

	exitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Exit(exitCtx)
}

// toClientConfig translates the on-disk config.ClientConfig into the
// dhcp4 package's native Config, defaulting absent blocks per
// config.DefaultClientConfig.
func toClientConfig(cfg *config.ClientConfig, clk clock.Clock) dhcp4.Config {
	defaults := dhcp4.DefaultConfig(cfg.Interface, clk)

	out := defaults
	out.Interface = cfg.Interface
	out.WritePidfile = cfg.WritePidfile
	out.PidfileDir = cfg.PidfilePath
	out.Release = cfg.Release
	out.Hooks = buildHooks(cfg)

	if len(cfg.RequestedParameters) > 0 {
		out.RequestedParameters = cfg.RequestedParameters
	}

	if cfg.Timeouts != nil {
		timeouts := map[dhcp4.State]time.Duration{}
		if cfg.Timeouts.Rebooting > 0 {
			timeouts[dhcp4.Rebooting] = time.Duration(cfg.Timeouts.Rebooting) * time.Second
		}
		if cfg.Timeouts.Requesting > 0 {
			timeouts[dhcp4.Requesting] = time.Duration(cfg.Timeouts.Requesting) * time.Second
		}
		out.Timeouts = timeouts
	}

	if r := cfg.Retransmitter; r != nil && r.WaitFirst > 0 && r.WaitMax > 0 {
		out.ScheduleFactory = &dhcp4.DefaultScheduleFactory{
			WaitFirst: time.Duration(r.WaitFirst * float64(time.Second)),
			WaitMax:   time.Duration(r.WaitMax * float64(time.Second)),
			Factor:    r.Factor,
			Clock:     clk,
		}
	}

	return out
}
