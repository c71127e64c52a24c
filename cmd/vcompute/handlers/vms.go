package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mhrivnak/vcompute/pkg/compute"
	"github.com/mhrivnak/vcompute/pkg/config"
	"github.com/mhrivnak/vcompute/pkg/vcloud"
)

// LaunchOptions are the flags of the launch command
type LaunchOptions struct {
	TemplateID  string
	ProductID   string
	VDCID       string
	Name        string
	NetworkID   string
	Allocations []string
}

// ParseAllocation reads an allocation flag value: "pool", "dhcp", "none" or
// "manual=<address>".
func ParseAllocation(value string) (compute.Allocation, error) {
	mode, address, _ := strings.Cut(value, "=")
	parsed, ok := vcloud.ParseAllocationMode(strings.ToUpper(mode))
	if !ok {
		return compute.Allocation{}, fmt.Errorf("unknown allocation mode %q", mode)
	}
	if parsed == vcloud.AllocationManual && address == "" {
		return compute.Allocation{}, fmt.Errorf("manual allocation requires an address: manual=<ip>")
	}
	if parsed != vcloud.AllocationManual && address != "" {
		return compute.Allocation{}, fmt.Errorf("only manual allocations take an address")
	}
	return compute.Allocation{Mode: parsed, IPAddress: address}, nil
}

// Launch instantiates a template and prints the resulting VMs
func Launch(ctx context.Context, opts Options, launch LaunchOptions, out io.Writer) error {
	allocations := make([]compute.Allocation, 0, len(launch.Allocations))
	for _, value := range launch.Allocations {
		alloc, err := ParseAllocation(value)
		if err != nil {
			return err
		}
		allocations = append(allocations, alloc)
	}

	svc, err := newServices(ctx, opts)
	if err != nil {
		return err
	}

	product, ok := svc.Compute.GetProduct(launch.ProductID)
	if !ok {
		return fmt.Errorf("unknown product %q; run 'vcompute products' for the catalog", launch.ProductID)
	}

	ctx, cancel := withTimeout(ctx, svc, func(c *config.Config) time.Duration { return c.Orchestrator.LaunchTimeout })
	defer cancel()

	vms, err := svc.Compute.Launch(ctx, compute.LaunchRequest{
		TemplateID:  launch.TemplateID,
		Product:     product,
		VDCID:       launch.VDCID,
		Name:        launch.Name,
		NetworkID:   launch.NetworkID,
		Allocations: allocations,
	})
	if err != nil {
		return fmt.Errorf("launch failed: %w", err)
	}
	return renderVMs(out, opts.Output, vms)
}

// CloneOptions are the flags of the clone command
type CloneOptions struct {
	SourceID    string
	VDCID       string
	Name        string
	Description string
	PowerOn     bool
}

// Clone copies the vApp of a VM or vApp and prints the copies
func Clone(ctx context.Context, opts Options, clone CloneOptions, out io.Writer) error {
	svc, err := newServices(ctx, opts)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, svc, func(c *config.Config) time.Duration { return c.Orchestrator.LaunchTimeout })
	defer cancel()

	vms, err := svc.Compute.Clone(ctx, compute.CloneRequest{
		SourceID:    clone.SourceID,
		VDCID:       clone.VDCID,
		Name:        clone.Name,
		Description: clone.Description,
		PowerOn:     clone.PowerOn,
	})
	if err != nil {
		return fmt.Errorf("clone failed: %w", err)
	}
	return renderVMs(out, opts.Output, vms)
}

// Terminate tears down a VM, or a whole vApp when vapp is set
func Terminate(ctx context.Context, opts Options, id string, vapp bool, out io.Writer) error {
	svc, err := newServices(ctx, opts)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, svc, func(c *config.Config) time.Duration { return c.Orchestrator.TerminateTimeout })
	defer cancel()

	if vapp {
		if err := svc.Compute.TerminateVApp(ctx, id); err != nil {
			return fmt.Errorf("terminate vApp %s failed: %w", id, err)
		}
	} else if err := svc.Compute.Terminate(ctx, id); err != nil {
		return fmt.Errorf("terminate %s failed: %w", id, err)
	}

	fmt.Fprintf(out, "Terminated %s\n", id)
	return nil
}

// Get prints one VM
func Get(ctx context.Context, opts Options, vmID string, out io.Writer) error {
	svc, err := newServices(ctx, opts)
	if err != nil {
		return err
	}

	vm, err := svc.Compute.GetVirtualMachine(ctx, vmID)
	if err != nil {
		return err
	}
	return renderVMs(out, opts.Output, []compute.VirtualMachine{*vm})
}

// List prints every VM in the region, or the members of one vApp
func List(ctx context.Context, opts Options, vappID string, out io.Writer) error {
	svc, err := newServices(ctx, opts)
	if err != nil {
		return err
	}

	var vms []compute.VirtualMachine
	if vappID != "" {
		vms, err = svc.Compute.GetVirtualMachines(ctx, vappID)
	} else {
		vms, err = svc.Compute.ListVirtualMachines(ctx)
	}
	if err != nil {
		return err
	}
	return renderVMs(out, opts.Output, vms)
}

// Power runs a boot, pause or reboot action on a VM
func Power(ctx context.Context, opts Options, action, vmID string, out io.Writer) error {
	svc, err := newServices(ctx, opts)
	if err != nil {
		return err
	}

	var run func(context.Context, string) error
	switch action {
	case "boot":
		run = svc.Compute.Boot
	case "pause":
		run = svc.Compute.Pause
	case "reboot":
		run = svc.Compute.Reboot
	default:
		return fmt.Errorf("unknown power action %q", action)
	}

	if err := run(ctx, vmID); err != nil {
		return fmt.Errorf("%s %s failed: %w", action, vmID, err)
	}
	fmt.Fprintf(out, "%s requested for %s\n", action, vmID)
	return nil
}
