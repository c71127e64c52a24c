package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mhrivnak/vcompute/pkg/compute"
	"github.com/mhrivnak/vcompute/pkg/network"
	"github.com/mhrivnak/vcompute/pkg/products"
)

// MockComputeService mocks the compute service
type MockComputeService struct {
	mock.Mock
}

func (m *MockComputeService) GetVirtualMachine(ctx context.Context, vmID string) (*compute.VirtualMachine, error) {
	args := m.Called(ctx, vmID)
	if vm := args.Get(0); vm != nil {
		return vm.(*compute.VirtualMachine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockComputeService) GetVirtualMachines(ctx context.Context, vappID string) ([]compute.VirtualMachine, error) {
	args := m.Called(ctx, vappID)
	if vms := args.Get(0); vms != nil {
		return vms.([]compute.VirtualMachine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockComputeService) ListVirtualMachines(ctx context.Context) ([]compute.VirtualMachine, error) {
	args := m.Called(ctx)
	if vms := args.Get(0); vms != nil {
		return vms.([]compute.VirtualMachine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockComputeService) Launch(ctx context.Context, req compute.LaunchRequest) ([]compute.VirtualMachine, error) {
	args := m.Called(ctx, req)
	if vms := args.Get(0); vms != nil {
		return vms.([]compute.VirtualMachine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockComputeService) Clone(ctx context.Context, req compute.CloneRequest) ([]compute.VirtualMachine, error) {
	args := m.Called(ctx, req)
	if vms := args.Get(0); vms != nil {
		return vms.([]compute.VirtualMachine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockComputeService) Terminate(ctx context.Context, vmID string) error {
	return m.Called(ctx, vmID).Error(0)
}

func (m *MockComputeService) TerminateVApp(ctx context.Context, vappID string) error {
	return m.Called(ctx, vappID).Error(0)
}

func (m *MockComputeService) GetProduct(id string) (products.Product, bool) {
	args := m.Called(id)
	return args.Get(0).(products.Product), args.Bool(1)
}

func (m *MockComputeService) ListProducts(arch compute.Architecture) []products.Product {
	return m.Called(arch).Get(0).([]products.Product)
}

func (m *MockComputeService) Boot(ctx context.Context, vmID string) error {
	return m.Called(ctx, vmID).Error(0)
}

func (m *MockComputeService) Pause(ctx context.Context, vmID string) error {
	return m.Called(ctx, vmID).Error(0)
}

func (m *MockComputeService) Reboot(ctx context.Context, vmID string) error {
	return m.Called(ctx, vmID).Error(0)
}

// MockNetworkService mocks the network service
type MockNetworkService struct {
	mock.Mock
}

func (m *MockNetworkService) GetVLAN(ctx context.Context, id string) (*network.VLAN, error) {
	args := m.Called(ctx, id)
	if vlan := args.Get(0); vlan != nil {
		return vlan.(*network.VLAN), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNetworkService) ListVLANs(ctx context.Context) ([]network.VLAN, error) {
	args := m.Called(ctx)
	if vlans := args.Get(0); vlans != nil {
		return vlans.([]network.VLAN), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNetworkService) ListNetworkInterfaces(ctx context.Context, vmID string) ([]network.NetworkInterface, error) {
	args := m.Called(ctx, vmID)
	if nics := args.Get(0); nics != nil {
		return nics.([]network.NetworkInterface), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNetworkService) CreateVLAN(ctx context.Context, vlan network.VLAN) (*network.VLAN, error) {
	args := m.Called(ctx, vlan)
	if created := args.Get(0); created != nil {
		return created.(*network.VLAN), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNetworkService) RemoveVLAN(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}
