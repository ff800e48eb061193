package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"grimm.is/dhcp4c/internal/config"
)

// RunConfigure walks an interactive huh wizard to create or edit a
// ClientConfig, the way the console's config view builds forms over
// reflected struct fields, except the fields here are fixed rather than
// tag-driven since ClientConfig's blocks need more than one field each.
func RunConfigure(configFile string) error {
	if configFile == "" {
		return fmt.Errorf("--config is required")
	}

	cfg := config.DefaultClientConfig("")
	if cf, err := config.LoadConfigFile(configFile); err == nil {
		cfg = cf.Config
	}

	var (
		iface          = cfg.Interface
		leaseType      = cfg.LeaseType
		leaseStorePath = cfg.LeaseStore
		requestParams  = joinInts(cfg.RequestedParameters)
		writePidfile   = cfg.WritePidfile
		release        = cfg.Release
		waitFirst      = strconv.FormatFloat(cfg.Retransmitter.WaitFirst, 'f', -1, 64)
		waitMax        = strconv.FormatFloat(cfg.Retransmitter.WaitMax, 'f', -1, 64)
	)
	if leaseType == "" {
		leaseType = "memory"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Interface").
				Description("Network interface to run the DHCP client on").
				Value(&iface).
				Validate(requireNonEmpty),

			huh.NewSelect[string]().
				Title("Lease store").
				Description("Where acquired leases persist across restarts").
				Options(
					huh.NewOption("In-memory (lost on restart)", "memory"),
					huh.NewOption("JSON file", "file"),
					huh.NewOption("Shared SQLite state store", "sqlite"),
					huh.NewOption("Stdout only (no persistence)", "stdout"),
				).
				Value(&leaseType),

			huh.NewInput().
				Title("Lease store path").
				Description("Directory (file) or database path (sqlite); ignored otherwise").
				Value(&leaseStorePath),

			huh.NewInput().
				Title("Requested parameters").
				Description("Comma-separated DHCP option codes for the parameter request list").
				Value(&requestParams),

			huh.NewConfirm().
				Title("Write a pidfile while running").
				Value(&writePidfile),

			huh.NewConfirm().
				Title("Send RELEASE on clean shutdown").
				Value(&release),

			huh.NewInput().
				Title("Initial retransmit wait (seconds)").
				Value(&waitFirst).
				Validate(requireFloat),

			huh.NewInput().
				Title("Maximum retransmit wait (seconds)").
				Value(&waitMax).
				Validate(requireFloat),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.Run(); err != nil {
		return fmt.Errorf("wizard cancelled: %w", err)
	}

	params, err := parseInts(requestParams)
	if err != nil {
		return fmt.Errorf("requested parameters: %w", err)
	}
	first, _ := strconv.ParseFloat(waitFirst, 64)
	max, _ := strconv.ParseFloat(waitMax, 64)

	cfg.Interface = iface
	cfg.LeaseType = leaseType
	cfg.LeaseStore = leaseStorePath
	cfg.RequestedParameters = params
	cfg.WritePidfile = writePidfile
	cfg.Release = release
	cfg.Retransmitter.WaitFirst = first
	cfg.Retransmitter.WaitMax = max

	cf, err := config.LoadConfigFromBytes(configFile, []byte(renderClientConfigHCL(cfg)))
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	if err := cf.SaveTo(configFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Printf("wrote %s\n", configFile)
	return nil
}

// renderClientConfigHCL serializes cfg to HCL source. hclwrite's
// AppendNewBlock/SetAttributeValue API operates on an existing file body,
// which is more ceremony than a handful of scalar fields and two fixed
// nested blocks need, so this builds source text directly and lets
// LoadConfigFromBytes validate it against the schema before it touches
// disk.
func renderClientConfigHCL(cfg *config.ClientConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "interface = %q\n", cfg.Interface)
	fmt.Fprintf(&b, "lease_type = %q\n", cfg.LeaseType)
	fmt.Fprintf(&b, "lease_store = %q\n", cfg.LeaseStore)
	if len(cfg.RequestedParameters) > 0 {
		fmt.Fprintf(&b, "requested_parameters = [%s]\n", joinInts(cfg.RequestedParameters))
	}
	fmt.Fprintf(&b, "write_pidfile = %t\n", cfg.WritePidfile)
	fmt.Fprintf(&b, "release = %t\n", cfg.Release)
	if cfg.PidfilePath != "" {
		fmt.Fprintf(&b, "pidfile_path = %q\n", cfg.PidfilePath)
	}
	b.WriteString("\n")

	if t := cfg.Timeouts; t != nil {
		b.WriteString("timeouts {\n")
		fmt.Fprintf(&b, "  rebooting = %d\n", t.Rebooting)
		fmt.Fprintf(&b, "  requesting = %d\n", t.Requesting)
		b.WriteString("}\n\n")
	}

	if r := cfg.Retransmitter; r != nil {
		b.WriteString("retransmission {\n")
		fmt.Fprintf(&b, "  wait_first = %s\n", strconv.FormatFloat(r.WaitFirst, 'f', -1, 64))
		fmt.Fprintf(&b, "  wait_max = %s\n", strconv.FormatFloat(r.WaitMax, 'f', -1, 64))
		fmt.Fprintf(&b, "  factor = %s\n", strconv.FormatFloat(r.Factor, 'f', -1, 64))
		b.WriteString("}\n\n")
	}

	for _, h := range cfg.Hooks {
		fmt.Fprintf(&b, "hook %q {\n", h.Trigger)
		fmt.Fprintf(&b, "  command = %q\n", h.Command)
		if len(h.Args) > 0 {
			fmt.Fprintf(&b, "  args = [%s]\n", quoteJoin(h.Args))
		}
		b.WriteString("}\n\n")
	}

	return b.String()
}

func quoteJoin(vs []string) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Quote(v)
	}
	return strings.Join(parts, ", ")
}

func requireNonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func requireFloat(s string) error {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("must be a number")
	}
	return nil
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func parseInts(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", f)
		}
		out = append(out, n)
	}
	return out, nil
}
