// Package handlers executes the vcompute CLI commands against the control plane.
package handlers

import (
	"context"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/mhrivnak/vcompute/pkg/app"
	"github.com/mhrivnak/vcompute/pkg/compute"
	"github.com/mhrivnak/vcompute/pkg/config"
	"github.com/mhrivnak/vcompute/pkg/logging"
	"github.com/mhrivnak/vcompute/pkg/network"
	"github.com/mhrivnak/vcompute/pkg/products"
)

// ComputeService is the part of the compute service the commands use
type ComputeService interface {
	GetVirtualMachine(ctx context.Context, vmID string) (*compute.VirtualMachine, error)
	GetVirtualMachines(ctx context.Context, vappID string) ([]compute.VirtualMachine, error)
	ListVirtualMachines(ctx context.Context) ([]compute.VirtualMachine, error)
	Launch(ctx context.Context, req compute.LaunchRequest) ([]compute.VirtualMachine, error)
	Clone(ctx context.Context, req compute.CloneRequest) ([]compute.VirtualMachine, error)
	Terminate(ctx context.Context, vmID string) error
	TerminateVApp(ctx context.Context, vappID string) error
	Boot(ctx context.Context, vmID string) error
	Pause(ctx context.Context, vmID string) error
	Reboot(ctx context.Context, vmID string) error
	GetProduct(id string) (products.Product, bool)
}

// NetworkService is the part of the network service the commands use
type NetworkService interface {
	GetVLAN(ctx context.Context, id string) (*network.VLAN, error)
	ListVLANs(ctx context.Context) ([]network.VLAN, error)
	ListNetworkInterfaces(ctx context.Context, vmID string) ([]network.NetworkInterface, error)
}

// Services bundles what a command needs from one control-plane session
type Services struct {
	Compute  ComputeService
	Networks NetworkService
	Config   *config.Config
}

// Options are the flags shared by every command
type Options struct {
	ConfigPath string
	Output     string
}

// newServices opens a session from configuration. Replaced in tests.
var newServices = func(ctx context.Context, opts Options) (*Services, error) {
	cfg, err := config.LoadFrom(viper.New(), opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	return &Services{Compute: a.Compute, Networks: a.Networks, Config: cfg}, nil
}

// withTimeout bounds ctx by a configured orchestrator timeout; zero means unbounded
func withTimeout(ctx context.Context, svc *Services, pick func(*config.Config) time.Duration) (context.Context, context.CancelFunc) {
	if svc.Config == nil {
		return ctx, func() {}
	}
	if d := pick(svc.Config); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}
