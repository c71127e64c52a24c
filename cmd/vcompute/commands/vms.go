package commands

import (
	"github.com/spf13/cobra"

	"github.com/mhrivnak/vcompute/cmd/vcompute/handlers"
)

// Launch returns the launch command.
func Launch(opts *handlers.Options) *cobra.Command {
	var launch handlers.LaunchOptions

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch VMs from a vApp template",
		Long: `Launch instantiates a vApp template into a VDC and returns once every
member VM is configured and the vApp is running.

Each member VM is sized from the product, connected to the network and given
an address according to its allocation. Allocations are given in container
order, one --allocation flag per VM; without any, every VM takes a pool address.

Allocation values:
  pool               address from the network's static pool
  dhcp               address from DHCP
  none               no address
  manual=<ip>        a fixed address

Example:
  vcompute launch --template urn:vcloud:vapptemplate:1234 --product 2048:2 \
    --vdc urn:vcloud:vdc:5678 --name web --allocation manual=10.0.0.20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Launch(cmd.Context(), *opts, launch, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&launch.TemplateID, "template", "", "vApp template id (required)")
	cmd.Flags().StringVar(&launch.ProductID, "product", "", "Product id, <ram MB>:<cpus> (required)")
	cmd.Flags().StringVar(&launch.VDCID, "vdc", "", "Target VDC id (required)")
	cmd.Flags().StringVar(&launch.Name, "name", "", "vApp name; member computer names derive from it (required)")
	cmd.Flags().StringVar(&launch.NetworkID, "network", "", "Organization network id (default: the first organization network)")
	cmd.Flags().StringArrayVar(&launch.Allocations, "allocation", nil, "Address allocation per member VM, in order")
	for _, name := range []string{"template", "product", "vdc", "name"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

// Clone returns the clone command.
func Clone(opts *handlers.Options) *cobra.Command {
	var clone handlers.CloneOptions

	cmd := &cobra.Command{
		Use:   "clone <vm-or-vapp-id>",
		Short: "Copy the vApp of a VM into a VDC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clone.SourceID = args[0]
			return handlers.Clone(cmd.Context(), *opts, clone, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&clone.VDCID, "vdc", "", "Target VDC id (required)")
	cmd.Flags().StringVar(&clone.Name, "name", "", "Name of the copy (required)")
	cmd.Flags().StringVar(&clone.Description, "description", "", "Description of the copy")
	cmd.Flags().BoolVar(&clone.PowerOn, "power-on", false, "Power on the copy")
	_ = cmd.MarkFlagRequired("vdc")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// Terminate returns the terminate command.
func Terminate(opts *handlers.Options) *cobra.Command {
	var vapp bool

	cmd := &cobra.Command{
		Use:   "terminate <id>",
		Short: "Terminate a VM, or a whole vApp with --vapp",
		Long: `Terminate powers off a VM. When it was the last running member of its
vApp, the vApp is undeployed and deleted as well. Deletion is retried with
backoff while the control plane reports the vApp busy.

WARNING: This operation is irreversible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Terminate(cmd.Context(), *opts, args[0], vapp, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&vapp, "vapp", false, "Treat the id as a vApp and delete it with all members")

	return cmd
}

// Get returns the get command.
func Get(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <vm-id>",
		Short: "Show one VM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Get(cmd.Context(), *opts, args[0], cmd.OutOrStdout())
		},
	}
}

// List returns the list command.
func List(opts *handlers.Options) *cobra.Command {
	var vappID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the VMs of the configured region",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.List(cmd.Context(), *opts, vappID, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&vappID, "vapp", "", "Only list the members of this vApp")

	return cmd
}

// Power returns a power action command.
func Power(opts *handlers.Options, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <vm-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Power(cmd.Context(), *opts, action, args[0], cmd.OutOrStdout())
		},
	}
}
