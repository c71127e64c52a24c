package commands

import (
	"github.com/spf13/cobra"

	"github.com/mhrivnak/vcompute/cmd/vcompute/handlers"
)

// Products returns the products command.
func Products(opts *handlers.Options) *cobra.Command {
	var arch string

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List the VM sizes on offer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Products(*opts, arch, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&arch, "architecture", "", "Architecture, I32 or I64 (default: I64)")

	return cmd
}

// Networks returns the networks command.
func Networks(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "networks [network-id]",
		Short: "List organization networks, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			return handlers.Networks(cmd.Context(), *opts, id, cmd.OutOrStdout())
		},
	}
}

// Interfaces returns the interfaces command.
func Interfaces(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "interfaces <vm-id>",
		Short: "List the network interfaces of a VM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Interfaces(cmd.Context(), *opts, args[0], cmd.OutOrStdout())
		},
	}
}

// HashPassword returns the hash-password command.
func HashPassword() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash",
		Long: `Print the bcrypt hash to configure as auth.admin_password_hash for the
API server operator login.

Example:
  echo -n 's3cret' | vcompute hash-password`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.HashPassword(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
