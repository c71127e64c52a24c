// Package network exposes the organization networks of the control plane as
// VLANs and the connections of member VMs as network interfaces. Networks are
// read-only: every mutation is rejected.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mhrivnak/vcompute/pkg/netcalc"
	"github.com/mhrivnak/vcompute/pkg/vcloud"
)

// Provider terms for the objects exposed by this package
const (
	ProviderTermForVLAN             = "network"
	ProviderTermForSubnet           = "subnet"
	ProviderTermForNetworkInterface = "network interface"
)

// API is the subset of the control-plane session the network service reads
type API interface {
	vcloud.NetworkAPI
	GetVM(ctx context.Context, id string) (*vcloud.VM, error)
	GetOrg(ctx context.Context) (*vcloud.Org, error)
}

// VLAN is an organization network
type VLAN struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	OwnerID     string   `json:"ownerId"`
	RegionID    string   `json:"regionId"`
	CIDR        string   `json:"cidr,omitempty"`
	Gateway     string   `json:"gateway,omitempty"`
	DNSServers  []string `json:"dnsServers"`
}

// Subnet is never populated; the control plane has no subnets within networks
type Subnet struct {
	ID     string `json:"id"`
	VLANID string `json:"vlanId"`
	Name   string `json:"name"`
	CIDR   string `json:"cidr"`
}

// NetworkInterface is one NIC of a member VM
type NetworkInterface struct {
	ID           string `json:"id"`
	VMID         string `json:"vmId"`
	Index        int    `json:"index"`
	IPAddress    string `json:"ipAddress,omitempty"`
	Gateway      string `json:"gateway,omitempty"`
	Netmask      string `json:"netmask,omitempty"`
	VLANID       string `json:"vlanId,omitempty"`
	DefaultRoute bool   `json:"defaultRoute"`
}

// Service reads organization networks
type Service struct {
	api      API
	regionID string
	logger   *slog.Logger
}

// NewService creates a network service for the given region.
func NewService(api API, regionID string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, regionID: regionID, logger: logger}
}

// GetVLAN returns the network with the given id.
func (s *Service) GetVLAN(ctx context.Context, id string) (*VLAN, error) {
	network, err := s.api.GetNetwork(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get network %s: %w", id, err)
	}
	return s.toVLAN(ctx, network), nil
}

// GetVLANByName returns the org network with the given display name.
func (s *Service) GetVLANByName(ctx context.Context, name string) (*VLAN, error) {
	ref, err := s.findByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.GetVLAN(ctx, ref.ID)
}

// ResolveVLANID maps a network display name to its id.
func (s *Service) ResolveVLANID(ctx context.Context, name string) (string, error) {
	ref, err := s.findByName(ctx, name)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (s *Service) findByName(ctx context.Context, name string) (*vcloud.Reference, error) {
	refs, err := s.api.ListNetworks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}
	for i := range refs {
		if refs[i].IsNetwork() && refs[i].Name == name {
			return &refs[i], nil
		}
	}
	return nil, fmt.Errorf("network %q: %w", name, vcloud.ErrNotFound)
}

// ListVLANs returns every org network. Networks that fail to load are logged
// and skipped.
func (s *Service) ListVLANs(ctx context.Context) ([]VLAN, error) {
	refs, err := s.api.ListNetworks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}

	vlans := make([]VLAN, 0, len(refs))
	for _, ref := range refs {
		if !ref.IsNetwork() {
			continue
		}
		network, err := s.api.GetNetwork(ctx, ref.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Error("Failed to get network", "networkID", ref.ID, "name", ref.Name, "error", err)
			continue
		}
		vlans = append(vlans, *s.toVLAN(ctx, network))
	}
	return vlans, nil
}

// toVLAN projects a network. Missing names fall back to the id and missing
// descriptions to the name.
func (s *Service) toVLAN(ctx context.Context, network *vcloud.Network) *VLAN {
	vlan := &VLAN{
		ID:          network.ID,
		Name:        network.Name,
		Description: network.Description,
		OwnerID:     s.ownerOf(ctx, network),
		RegionID:    s.regionID,
		DNSServers:  []string{},
	}
	if vlan.Name == "" {
		vlan.Name = vlan.ID
	}
	if vlan.Description == "" {
		vlan.Description = vlan.Name
	}

	scope := network.IPScope
	if scope == nil {
		return vlan
	}
	vlan.Gateway = scope.Gateway
	if scope.Gateway != "" && scope.Netmask != "" {
		cidr, err := netcalc.ToCIDR(scope.Gateway, scope.Netmask)
		if err != nil {
			s.logger.Warn("Failed to derive network CIDR", "networkID", network.ID,
				"gateway", scope.Gateway, "netmask", scope.Netmask, "error", err)
		} else {
			vlan.CIDR = cidr
		}
	}
	for _, dns := range []string{scope.DNS1, scope.DNS2} {
		if dns != "" {
			vlan.DNSServers = append(vlan.DNSServers, dns)
		}
	}
	return vlan
}

// ownerOf names the organization of a network. Networks of other
// organizations report their org id.
func (s *Service) ownerOf(ctx context.Context, network *vcloud.Network) string {
	org, err := s.api.GetOrg(ctx)
	if err != nil {
		s.logger.Warn("Failed to resolve network owner", "networkID", network.ID, "error", err)
		return network.OrgID
	}
	if network.OrgID != "" && network.OrgID != org.ID {
		return network.OrgID
	}
	return org.Name
}

// ListNetworkInterfaces returns one interface per connection of a VM. The
// connection with the lowest index among those attached to an org network is
// the default route.
func (s *Service) ListNetworkInterfaces(ctx context.Context, vmID string) ([]NetworkInterface, error) {
	refs, err := s.api.ListNetworks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}
	byName := make(map[string]*vcloud.Network, len(refs))
	for _, ref := range refs {
		if !ref.IsNetwork() {
			continue
		}
		network, err := s.api.GetNetwork(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("get network %s: %w", ref.ID, err)
		}
		byName[network.Name] = network
	}

	vm, err := s.api.GetVM(ctx, vmID)
	if err != nil {
		return nil, fmt.Errorf("get VM %s: %w", vmID, err)
	}

	nics := make([]NetworkInterface, 0, len(vm.NetworkConnectionSection.Connections))
	defaultIdx := -1
	for _, conn := range vm.NetworkConnectionSection.Connections {
		nic := NetworkInterface{
			ID:        conn.MACAddress,
			VMID:      vmID,
			Index:     conn.NetworkConnectionIndex,
			IPAddress: conn.IPAddress,
		}
		if network, ok := byName[conn.Network]; ok {
			nic.VLANID = network.ID
			if network.IPScope != nil {
				nic.Gateway = network.IPScope.Gateway
				nic.Netmask = network.IPScope.Netmask
			}
			if defaultIdx < 0 || conn.NetworkConnectionIndex < nics[defaultIdx].Index {
				defaultIdx = len(nics)
			}
		}
		nics = append(nics, nic)
	}
	if defaultIdx >= 0 {
		nics[defaultIdx].DefaultRoute = true
	}
	return nics, nil
}

// IsSubscribed reports whether the session may read org networks. Missing
// rights yield false rather than an error.
func (s *Service) IsSubscribed(ctx context.Context) (bool, error) {
	if _, err := s.api.ListNetworks(ctx); err != nil {
		if vcloud.IsUnauthorized(err) {
			return false, nil
		}
		return false, fmt.Errorf("check network subscription: %w", err)
	}
	return true, nil
}

// AllowsNewVLANCreation reports false: networks cannot be created.
func (s *Service) AllowsNewVLANCreation() bool { return false }

// AllowsNewSubnetCreation reports false: subnets cannot be created.
func (s *Service) AllowsNewSubnetCreation() bool { return false }

// MaxVLANCount is zero because no VLAN can be created.
func (s *Service) MaxVLANCount() int { return 0 }

// SupportsVLANsWithSubnets reports false.
func (s *Service) SupportsVLANsWithSubnets() bool { return false }

// IsVLANDataCenterConstrained reports false: networks span every VDC of the org.
func (s *Service) IsVLANDataCenterConstrained() bool { return false }

var errNetworkProvisioning = fmt.Errorf("network provisioning: %w", vcloud.ErrOperationNotSupported)

// CreateVLAN always fails with vcloud.ErrOperationNotSupported.
func (s *Service) CreateVLAN(_ context.Context, _ VLAN) (*VLAN, error) {
	return nil, errNetworkProvisioning
}

// RemoveVLAN always fails with vcloud.ErrOperationNotSupported.
func (s *Service) RemoveVLAN(_ context.Context, _ string) error {
	return errNetworkProvisioning
}

// CreateSubnet always fails with vcloud.ErrOperationNotSupported.
func (s *Service) CreateSubnet(_ context.Context, _ Subnet) (*Subnet, error) {
	return nil, errNetworkProvisioning
}

// RemoveSubnet always fails with vcloud.ErrOperationNotSupported.
func (s *Service) RemoveSubnet(_ context.Context, _ string) error {
	return errNetworkProvisioning
}

// GetSubnet returns nil: subnets do not exist.
func (s *Service) GetSubnet(_ context.Context, _ string) (*Subnet, error) {
	return nil, nil
}

// ListSubnets returns an empty list.
func (s *Service) ListSubnets(_ context.Context, _ string) ([]Subnet, error) {
	return []Subnet{}, nil
}

// IsOperationNotSupported checks if an error is a rejected network mutation
func IsOperationNotSupported(err error) bool {
	return errors.Is(err, vcloud.ErrOperationNotSupported)
}
