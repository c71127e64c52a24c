package compute

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mhrivnak/vcompute/pkg/netcalc"
	"github.com/mhrivnak/vcompute/pkg/products"
	"github.com/mhrivnak/vcompute/pkg/vcloud"
)

// Hardware assumed when a VM reports no CPU or memory setting
const (
	defaultRAMMB    = 256
	defaultCPUCount = 1
)

// NetworkResolver maps the network name of a VM connection to a VLAN id.
// Connections reference networks only by display name.
type NetworkResolver interface {
	ResolveVLANID(ctx context.Context, networkName string) (string, error)
}

// TemplateGetter fetches templates
type TemplateGetter interface {
	GetTemplate(ctx context.Context, id string) (*vcloud.Template, error)
}

// Projector flattens vApps and their member VMs into VirtualMachine values
type Projector struct {
	Templates     TemplateGetter
	Networks      NetworkResolver
	Catalog       *products.Catalog
	OwnerID       string
	RegionID      string
	AccountNumber string
	Logger        *slog.Logger
	Now           func() time.Time
}

// image is the machine image a vApp was instantiated from
type image struct {
	id           string
	platform     Platform
	architecture Architecture
	resolved     bool
}

// UnknownImageID is reported when the originating template cannot be identified
func (p *Projector) UnknownImageID() string {
	return "/vAppTemplate/" + p.AccountNumber + "-unknown"
}

// resolveImage identifies the template recorded in the vApp description
func (p *Projector) resolveImage(ctx context.Context, vapp *vcloud.VApp) image {
	ref := vapp.Description
	if ref == "" {
		return image{id: p.UnknownImageID()}
	}
	if p.Templates != nil {
		tmpl, err := p.Templates.GetTemplate(ctx, ref)
		if err == nil && tmpl != nil {
			return image{
				id:           ref,
				platform:     GuessPlatform(tmpl.OSType),
				architecture: GuessArchitecture(tmpl.OSType),
				resolved:     true,
			}
		}
	}
	if strings.HasPrefix(ref, "/vAppTemplate") {
		return image{id: ref}
	}
	return image{id: p.UnknownImageID()}
}

// ProjectAll projects every member VM of vapp, in container order.
func (p *Projector) ProjectAll(ctx context.Context, vapp *vcloud.VApp) []VirtualMachine {
	if vapp == nil {
		return nil
	}
	img := p.resolveImage(ctx, vapp)
	out := make([]VirtualMachine, 0, len(vapp.Children))
	for i := range vapp.Children {
		out = append(out, p.project(ctx, vapp, &vapp.Children[i], img))
	}
	return out
}

// Project projects a single member VM of vapp.
func (p *Projector) Project(ctx context.Context, vapp *vcloud.VApp, vm *vcloud.VM) *VirtualMachine {
	if vm == nil {
		return nil
	}
	projected := p.project(ctx, vapp, vm, p.resolveImage(ctx, vapp))
	return &projected
}

func (p *Projector) project(ctx context.Context, vapp *vcloud.VApp, vm *vcloud.VM, img image) VirtualMachine {
	out := VirtualMachine{
		ID:           vm.ID,
		Name:         vm.Name,
		Description:  vm.Description,
		OwnerID:      p.OwnerID,
		RegionID:     p.RegionID,
		DataCenterID: vapp.VDCID,
		VAppID:       vapp.ID,
		ImageID:      img.id,
		Platform:     GuessPlatform(vm.OSType),
		Architecture: ArchitectureI64,
		Clonable:     true,
		Imagable:     true,
		Pausable:     true,
		Persistent:   true,
		Rebootable:   true,
		Product:      p.product(vm),
		RootPassword: vm.GuestCustomizationSection.AdminPassword,
		State:        p.state(vm),
		Tags:         map[string]string{},
	}
	if img.resolved {
		out.Platform = img.platform
		out.Architecture = img.architecture
	}

	if out.Name == "" {
		out.Name = vapp.Name
	}
	if out.Name == "" {
		out.Name = vm.ID
	}
	if out.Description == "" {
		out.Description = vapp.Description
	}
	if out.Description == "" {
		out.Description = out.Name
	}

	out.RootUser = "root"
	if out.Platform.IsWindows() {
		out.RootUser = "administrator"
	}

	p.addresses(ctx, vm, &out)
	p.timestamps(vm, &out)
	return out
}

func (p *Projector) product(vm *vcloud.VM) products.Product {
	ram, cpus := vm.MemoryMB, vm.CPUCount
	if ram <= 0 {
		ram = defaultRAMMB
	}
	if cpus <= 0 {
		cpus = defaultCPUCount
	}
	catalog := p.Catalog
	if catalog == nil {
		catalog = products.Default()
	}
	return catalog.ForHardware(ram, cpus)
}

// addresses fills the IP lists and VLAN from the primary connection only. A
// NAT address replaces the public list.
func (p *Projector) addresses(ctx context.Context, vm *vcloud.VM, out *VirtualMachine) {
	out.PublicIPAddresses = []string{}
	out.PrivateIPAddresses = []string{}

	primary, ok := vm.NetworkConnectionSection.Primary()
	if !ok {
		return
	}

	if p.Networks != nil && primary.Network != "" {
		vlanID, err := p.Networks.ResolveVLANID(ctx, primary.Network)
		if err != nil {
			p.logger().Warn("Failed to resolve VLAN for VM connection",
				"vmID", vm.ID, "network", primary.Network, "error", err)
		} else {
			out.VLANID = vlanID
		}
	}

	public, private := netcalc.SplitAddresses(primary.IPAddress)
	if private != nil {
		out.PrivateIPAddresses = private
	}
	switch {
	case primary.ExternalIPAddress != "":
		out.PublicIPAddresses = []string{primary.ExternalIPAddress}
	case public != nil:
		out.PublicIPAddresses = public
	}
}

func (p *Projector) state(vm *vcloud.VM) VMState {
	switch {
	case vm.Status == vcloud.StatusPoweredOn:
		return VMStateRunning
	case vm.Status == vcloud.StatusPoweredOff || vm.Status == vcloud.StatusSuspended:
		return VMStatePaused
	case vm.Status.IsError():
		return VMStateTerminated
	default:
		p.logger().Warn("Unmapped VM status, reporting pending", "vmID", vm.ID, "status", vm.Status)
		return VMStatePending
	}
}

// timestamps derives creation, boot and pause times from the task history.
// The latest deploy task is the last boot and the latest power-off task the
// last pause; the earliest start of any task is the creation time.
func (p *Projector) timestamps(vm *vcloud.VM, out *VirtualMachine) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	created := now()
	var booted, paused time.Time

	for _, task := range vm.Tasks {
		if task.StartTime == nil {
			continue
		}
		when := *task.StartTime
		txt := strings.ToLower(task.Name + " " + task.Operation)
		if strings.Contains(txt, "deploy") && when.After(booted) {
			booted = when
		}
		if strings.Contains(txt, "poweroff") && when.After(paused) {
			paused = when
		}
		if when.Before(created) {
			created = when
		}
	}

	out.CreatedAt = created
	if !booted.IsZero() {
		out.LastBootAt = &booted
	}
	if !paused.IsZero() {
		out.LastPauseAt = &paused
	}
}

func (p *Projector) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
