// Package commands defines the vcompute CLI command structure and flag bindings.
//
// Command execution is delegated to the handlers package.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhrivnak/vcompute/cmd/vcompute/handlers"
)

var (
	version = "dev"
	commit  = "none"
)

// SetVersionInfo records the build information printed by the version command.
func SetVersionInfo(v, c string) {
	version = v
	commit = c
}

// Root returns the root command for the vcompute CLI.
func Root() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:           "vcompute",
		Short:         "Launch and manage virtual machines on a vCloud control plane",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: ./config.yaml or /etc/vcompute/config.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", handlers.OutputTable, "Output format: table, json or yaml")

	// VM lifecycle
	cmd.AddCommand(Launch(opts))
	cmd.AddCommand(Clone(opts))
	cmd.AddCommand(Terminate(opts))
	cmd.AddCommand(Get(opts))
	cmd.AddCommand(List(opts))
	cmd.AddCommand(Power(opts, "boot", "Power on a VM and wait until it is running"))
	cmd.AddCommand(Power(opts, "pause", "Power off a VM and wait until it is stopped"))
	cmd.AddCommand(Power(opts, "reboot", "Request a reboot of a VM"))

	// Catalog and networking
	cmd.AddCommand(Products(opts))
	cmd.AddCommand(Networks(opts))
	cmd.AddCommand(Interfaces(opts))

	// Utility
	cmd.AddCommand(HashPassword())
	cmd.AddCommand(Version())

	return cmd
}

// Version returns the version command.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vcompute %s (%s)\n", version, commit)
		},
	}
}
