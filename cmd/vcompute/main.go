// Package main is the entry point for the vcompute CLI.
//
// vcompute launches, inspects and tears down virtual machines on a vCloud
// control plane using the same orchestration as the API server.
//
// For detailed usage information, run:
//
//	vcompute --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mhrivnak/vcompute/cmd/vcompute/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
