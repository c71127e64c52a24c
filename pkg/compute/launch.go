package compute

import (
	"context"
	"fmt"
	"time"

	"github.com/mhrivnak/vcompute/pkg/naming"
	"github.com/mhrivnak/vcompute/pkg/products"
	"github.com/mhrivnak/vcompute/pkg/vcloud"
)

// Allocation selects how one VM obtains its address. The zero value is POOL.
type Allocation struct {
	Mode      vcloud.AllocationMode `json:"mode"`
	IPAddress string                `json:"ipAddress,omitempty"`
}

func (a Allocation) mode() vcloud.AllocationMode {
	if a.Mode == "" {
		return vcloud.AllocationPool
	}
	return a.Mode
}

// LaunchRequest describes a template instantiation. Allocations is either
// empty, giving every VM a pool address, or holds one entry per member VM in
// container order.
type LaunchRequest struct {
	TemplateID  string           `json:"templateId"`
	Product     products.Product `json:"product"`
	VDCID       string           `json:"vdcId"`
	Name        string           `json:"name"`
	NetworkID   string           `json:"networkId,omitempty"`
	Allocations []Allocation     `json:"allocations,omitempty"`
}

func (r LaunchRequest) allocation(i int) Allocation {
	if len(r.Allocations) == 0 {
		return Allocation{Mode: vcloud.AllocationPool}
	}
	return r.Allocations[i]
}

func (r LaunchRequest) validate(members int) error {
	if r.TemplateID == "" {
		return fmt.Errorf("%w: template id is required", ErrInvalidRequest)
	}
	if r.VDCID == "" {
		return fmt.Errorf("%w: VDC id is required", ErrInvalidRequest)
	}
	if r.Product.CPUCount <= 0 || r.Product.RAMMB <= 0 {
		return fmt.Errorf("%w: product must set CPU count and RAM", ErrInvalidRequest)
	}
	if n := len(r.Allocations); n > 0 && n < members {
		return fmt.Errorf("%w: %d allocations given for %d VMs", ErrInvalidRequest, n, members)
	}
	for i, a := range r.Allocations {
		mode, ok := vcloud.ParseAllocationMode(string(a.Mode))
		if !ok {
			return fmt.Errorf("%w: allocation %d has unknown mode %q", ErrInvalidRequest, i, a.Mode)
		}
		if mode == vcloud.AllocationManual && a.IPAddress == "" {
			return fmt.Errorf("%w: allocation %d is MANUAL without an IP address", ErrInvalidRequest, i)
		}
	}
	return nil
}

// LaunchOne launches a template and returns its first VM, or nil when the
// container has none.
func (s *Service) LaunchOne(ctx context.Context, req LaunchRequest) (*VirtualMachine, error) {
	vms, err := s.Launch(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(vms) == 0 {
		return nil, nil
	}
	return &vms[0], nil
}

// Launch instantiates a template, customizes and sizes every member VM,
// attaches each to a single network and powers the container on. The final
// power-on is submitted but not awaited. On failure any created container is
// left in place.
func (s *Service) Launch(ctx context.Context, req LaunchRequest) (vms []VirtualMachine, err error) {
	defer s.track("launch", time.Now(), &err)

	tmpl, err := s.session.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("resolve template %s: %w", req.TemplateID, err)
	}
	req.Allocations = normalizeAllocations(req.Allocations)
	if err := req.validate(len(tmpl.Children)); err != nil {
		return nil, err
	}
	name, err := s.validator.Validate(req.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	logger := s.logger.With("templateID", tmpl.ID, "name", name)
	logger.Info("Launching vApp from template", "vdcID", req.VDCID, "product", req.Product.ID)

	vapp, err := s.session.InstantiateTemplate(ctx, vcloud.InstantiateParams{
		Name:        name,
		Description: tmpl.ID,
		VDCID:       req.VDCID,
		TemplateID:  tmpl.ID,
		PowerOn:     false,
		Deploy:      false,
		NetworkID:   req.NetworkID,
	})
	if err != nil {
		return nil, fmt.Errorf("instantiate template %s: %w", req.TemplateID, err)
	}
	if vapp == nil {
		return nil, fmt.Errorf("no vApp was instantiated for %s", req.TemplateID)
	}
	logger = logger.With("vappID", vapp.ID)

	if vapp, err = s.waiter.WaitForVAppResolved(ctx, vapp); err != nil {
		return nil, err
	}
	if vapp, err = s.waiter.WaitForVAppIdle(ctx, vapp.ID); err != nil {
		return nil, err
	}

	members := make([]string, len(vapp.Children))
	for i := range vapp.Children {
		members[i] = vapp.Children[i].ID
	}
	if n := len(req.Allocations); n > 0 && n < len(members) {
		return nil, fmt.Errorf("%w: %d allocations given for %d VMs of vApp %s", ErrInvalidRequest, n, len(members), vapp.ID)
	}

	if err := s.customizeGuests(ctx, name, members); err != nil {
		return nil, err
	}
	if _, err = s.waiter.WaitForVAppIdle(ctx, vapp.ID); err != nil {
		return nil, err
	}

	networkName, err := s.resolveNetworkName(ctx, req.NetworkID)
	if err != nil {
		return nil, err
	}
	for i, vmID := range members {
		if err := s.configureMember(ctx, vmID, networkName, req.allocation(i), req.Product); err != nil {
			return nil, err
		}
	}

	if vapp, err = s.waiter.WaitForVAppIdle(ctx, vapp.ID); err != nil {
		return nil, err
	}
	task, err := s.session.DeployAndPowerOnVApp(ctx, vapp.ID)
	if err != nil {
		return nil, fmt.Errorf("deploy vApp %s: %w", vapp.ID, err)
	}
	if task != nil {
		logger.Info("vApp deploy and power on initiated", "taskID", task.ID, "vms", len(members))
	}

	return s.projector(ctx).ProjectAll(ctx, vapp), nil
}

func normalizeAllocations(in []Allocation) []Allocation {
	if len(in) == 0 {
		return nil
	}
	out := make([]Allocation, len(in))
	for i, a := range in {
		mode, ok := vcloud.ParseAllocationMode(string(a.Mode))
		if !ok {
			out[i] = a
			continue
		}
		out[i] = Allocation{Mode: mode, IPAddress: a.IPAddress}
	}
	return out
}

// customizeGuests enables guest customization on every member. The updates
// are not awaited; the container is re-stabilized afterwards.
func (s *Service) customizeGuests(ctx context.Context, name string, members []string) error {
	for i, vmID := range members {
		vm, err := s.waiter.WaitForVMIdle(ctx, vmID)
		if err != nil {
			return err
		}
		section := vm.GuestCustomizationSection
		section.Enabled = true
		section.Info = name
		section.ComputerName = naming.ComputerName(name, i+1, len(members))

		if _, err := s.session.UpdateGuestCustomization(ctx, vmID, section); err != nil {
			return fmt.Errorf("customize guest %s: %w", vmID, err)
		}
	}
	return nil
}

// resolveNetworkName returns the name of the requested network, or of the
// first org network when none is requested
func (s *Service) resolveNetworkName(ctx context.Context, networkID string) (string, error) {
	if networkID == "" {
		refs, err := s.session.ListNetworks(ctx)
		if err != nil {
			return "", fmt.Errorf("list networks: %w", err)
		}
		for _, ref := range refs {
			if ref.IsNetwork() {
				networkID = ref.ID
				break
			}
		}
		if networkID == "" {
			return "", fmt.Errorf("no network available to attach VMs to")
		}
	}
	network, err := s.session.GetNetwork(ctx, networkID)
	if err != nil {
		return "", fmt.Errorf("resolve network %s: %w", networkID, err)
	}
	return network.Name, nil
}

// configureMember replaces the NICs of a VM with a single connection to the
// named network, then applies the CPU and memory sizing of product
func (s *Service) configureMember(ctx context.Context, vmID, networkName string, alloc Allocation, product products.Product) error {
	vm, err := s.waiter.WaitForVMIdle(ctx, vmID)
	if err != nil {
		return err
	}
	cleared := vm.NetworkConnectionSection
	cleared.Connections = []vcloud.NetworkConnection{}
	if err := s.waiter.Submit(ctx, "clear network connections", vmID, func(ctx context.Context) (*vcloud.Task, error) {
		return s.session.UpdateNetworkConnections(ctx, vmID, cleared)
	}); err != nil {
		return err
	}

	if vm, err = s.waiter.WaitForVMIdle(ctx, vmID); err != nil {
		return err
	}
	conn := vcloud.NetworkConnection{
		Network:                 networkName,
		NetworkConnectionIndex:  0,
		IsConnected:             true,
		IPAddressAllocationMode: alloc.mode(),
	}
	if conn.IPAddressAllocationMode == vcloud.AllocationManual {
		conn.IPAddress = alloc.IPAddress
	}
	section := vm.NetworkConnectionSection
	section.PrimaryNetworkConnectionIndex = 0
	section.Connections = []vcloud.NetworkConnection{conn}
	if err := s.waiter.Submit(ctx, "connect network", vmID, func(ctx context.Context) (*vcloud.Task, error) {
		return s.session.UpdateNetworkConnections(ctx, vmID, section)
	}); err != nil {
		return err
	}

	if _, err := s.waiter.WaitForVMIdle(ctx, vmID); err != nil {
		return err
	}
	if err := s.waiter.Submit(ctx, "set CPU count", vmID, func(ctx context.Context) (*vcloud.Task, error) {
		return s.session.UpdateCPUCount(ctx, vmID, product.CPUCount)
	}); err != nil {
		return err
	}

	if _, err := s.waiter.WaitForVMIdle(ctx, vmID); err != nil {
		return err
	}
	if err := s.waiter.Submit(ctx, "set memory", vmID, func(ctx context.Context) (*vcloud.Task, error) {
		return s.session.UpdateMemoryMB(ctx, vmID, product.RAMMB)
	}); err != nil {
		return err
	}

	_, err = s.waiter.WaitForVMIdle(ctx, vmID)
	return err
}
