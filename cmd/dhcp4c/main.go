// Command dhcp4c runs the asynchronous DHCPv4 client against a network
// interface, or performs one-shot lease operations against a config file's
// lease store.
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runFlags := flag.NewFlagSet("run", flag.ExitOnError)
		configFile := runFlags.String("config", "", "Path to client config (HCL)")
		runFlags.StringVar(configFile, "c", "", "Path to client config (short)")
		iface := runFlags.String("interface", "", "Interface to run on, overriding the config file")
		runFlags.Parse(os.Args[2:])

		if err := RunClient(*configFile, *iface); err != nil {
			fmt.Fprintf(os.Stderr, "run: %v\n", err)
			os.Exit(1)
		}

	case "release":
		releaseFlags := flag.NewFlagSet("release", flag.ExitOnError)
		configFile := releaseFlags.String("config", "", "Path to client config (HCL)")
		releaseFlags.StringVar(configFile, "c", "", "Path to client config (short)")
		releaseFlags.Parse(os.Args[2:])

		if err := RunRelease(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "release: %v\n", err)
			os.Exit(1)
		}

	case "show-lease":
		showFlags := flag.NewFlagSet("show-lease", flag.ExitOnError)
		configFile := showFlags.String("config", "", "Path to client config (HCL)")
		showFlags.StringVar(configFile, "c", "", "Path to client config (short)")
		showFlags.Parse(os.Args[2:])

		if err := RunShowLease(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "show-lease: %v\n", err)
			os.Exit(1)
		}

	case "configure":
		configFlags := flag.NewFlagSet("configure", flag.ExitOnError)
		configFile := configFlags.String("config", "", "Path to client config (HCL) to create or edit")
		configFlags.StringVar(configFile, "c", "", "Path to client config (short)")
		configFlags.Parse(os.Args[2:])

		if err := RunConfigure(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "configure: %v\n", err)
			os.Exit(1)
		}

	case "status":
		statusFlags := flag.NewFlagSet("status", flag.ExitOnError)
		configFile := statusFlags.String("config", "", "Path to client config (HCL)")
		statusFlags.StringVar(configFile, "c", "", "Path to client config (short)")
		statusFlags.Parse(os.Args[2:])

		if err := RunStatus(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "status: %v\n", err)
			os.Exit(1)
		}

	case "-h", "--help", "help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `dhcp4c - asynchronous DHCPv4 client

Usage:
  dhcp4c run        --config <file> [--interface <name>]   run the client until signalled
  dhcp4c release     --config <file>                       send RELEASE for the stored lease, then exit
  dhcp4c show-lease  --config <file>                        print the stored lease
  dhcp4c configure   --config <file>                        interactive config wizard
  dhcp4c status      --config <file>                        one-shot status view
`)
}
