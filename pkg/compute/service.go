// Package compute provisions, controls and tears down virtual machines on the
// control plane and projects them into provider-neutral VirtualMachine values.
//
// Every mutation goes through tasks.Waiter: it is submitted, its task awaited,
// and the target re-stabilized before the next step touches it.
package compute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mhrivnak/vcompute/pkg/naming"
	"github.com/mhrivnak/vcompute/pkg/products"
	"github.com/mhrivnak/vcompute/pkg/retry"
	"github.com/mhrivnak/vcompute/pkg/tasks"
	"github.com/mhrivnak/vcompute/pkg/vcloud"
)

// ErrInvalidRequest is returned for requests rejected before any mutation
var ErrInvalidRequest = errors.New("invalid request")

// ProviderTermForServer is what the control plane calls a server
const ProviderTermForServer = "virtual machine"

// Options configures a Service. Zero fields take defaults.
type Options struct {
	Catalog       *products.Catalog
	Validator     naming.Validator
	Waiter        *tasks.Waiter
	Networks      NetworkResolver
	Logger        *slog.Logger
	AccountNumber string
	RegionID      string
	DeleteRetry   retry.Config
	Metrics       *Metrics
}

// Service orchestrates VM lifecycle operations against a control-plane session
type Service struct {
	session       vcloud.Session
	catalog       *products.Catalog
	validator     naming.Validator
	waiter        *tasks.Waiter
	networks      NetworkResolver
	logger        *slog.Logger
	accountNumber string
	regionID      string
	deleteRetry   retry.Config
	metrics       *Metrics
}

// NewService creates a compute service.
func NewService(session vcloud.Session, opts Options) *Service {
	s := &Service{
		session:       session,
		catalog:       opts.Catalog,
		validator:     opts.Validator,
		waiter:        opts.Waiter,
		networks:      opts.Networks,
		logger:        opts.Logger,
		accountNumber: opts.AccountNumber,
		regionID:      opts.RegionID,
		deleteRetry:   opts.DeleteRetry,
		metrics:       opts.Metrics,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.catalog == nil {
		s.catalog = products.Default()
	}
	if s.validator == nil {
		s.validator = naming.NewValidator()
	}
	if s.waiter == nil {
		s.waiter = tasks.NewWaiter(session, session, session, s.logger)
	}
	if s.waiter.Recorder == nil && s.metrics != nil {
		s.waiter.Recorder = s.metrics
	}
	if s.deleteRetry == (retry.Config{}) {
		s.deleteRetry = retry.DefaultConfig()
	}
	return s
}

// Catalog returns the product catalog used for sizing.
func (s *Service) Catalog() *products.Catalog {
	return s.catalog
}

// track records an operation outcome; use as defer s.track("op", time.Now(), &err)
func (s *Service) track(operation string, start time.Time, err *error) {
	s.metrics.RecordOperation(operation, *err, time.Since(start))
}

// projector builds a Projector for the current organization
func (s *Service) projector(ctx context.Context) *Projector {
	owner := ""
	if org, err := s.session.GetOrg(ctx); err != nil {
		s.logger.Warn("Failed to resolve organization for projection", "error", err)
	} else {
		owner = org.Name
	}
	return &Projector{
		Templates:     s.session,
		Networks:      s.networks,
		Catalog:       s.catalog,
		OwnerID:       owner,
		RegionID:      s.regionID,
		AccountNumber: s.accountNumber,
		Logger:        s.logger,
	}
}

// GetVirtualMachine returns the projection of a member VM.
func (s *Service) GetVirtualMachine(ctx context.Context, vmID string) (*VirtualMachine, error) {
	vm, err := s.session.GetVM(ctx, vmID)
	if err != nil {
		return nil, fmt.Errorf("get VM %s: %w", vmID, err)
	}
	vapp, err := s.session.GetVApp(ctx, vm.VAppID)
	if err != nil {
		return nil, fmt.Errorf("get vApp %s of VM %s: %w", vm.VAppID, vmID, err)
	}
	return s.projector(ctx).Project(ctx, vapp, vm), nil
}

// GetVirtualMachines returns the projections of every member VM of a vApp.
func (s *Service) GetVirtualMachines(ctx context.Context, vappID string) ([]VirtualMachine, error) {
	vapp, err := s.session.GetVApp(ctx, vappID)
	if err != nil {
		return nil, fmt.Errorf("get vApp %s: %w", vappID, err)
	}
	return s.projector(ctx).ProjectAll(ctx, vapp), nil
}

// ListVirtualMachines returns every VM in the VDCs of the configured region.
// VDCs without a region are always included.
func (s *Service) ListVirtualMachines(ctx context.Context) ([]VirtualMachine, error) {
	vdcs, err := s.session.ListVDCs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list VDCs: %w", err)
	}

	projector := s.projector(ctx)
	var out []VirtualMachine
	for _, vdc := range vdcs {
		if s.regionID != "" && vdc.RegionID != "" && vdc.RegionID != s.regionID {
			continue
		}
		refs, err := s.session.ListVApps(ctx, vdc.ID)
		if err != nil {
			return nil, fmt.Errorf("list vApps in VDC %s: %w", vdc.ID, err)
		}
		for _, ref := range refs {
			if ref.Type != "" && ref.Type != vcloud.KindVApp {
				continue
			}
			vapp, err := s.session.GetVApp(ctx, ref.ID)
			if err != nil {
				if vcloud.IsNotFound(err) {
					// deleted between listing and fetching
					continue
				}
				return nil, fmt.Errorf("get vApp %s: %w", ref.ID, err)
			}
			out = append(out, projector.ProjectAll(ctx, vapp)...)
		}
	}
	return out, nil
}

// Boot powers on a VM and waits for the task.
func (s *Service) Boot(ctx context.Context, vmID string) (err error) {
	defer s.track("boot", time.Now(), &err)
	return s.waiter.Submit(ctx, "boot", vmID, func(ctx context.Context) (*vcloud.Task, error) {
		return s.session.PowerOnVM(ctx, vmID)
	})
}

// Pause powers off a VM and waits for the task.
func (s *Service) Pause(ctx context.Context, vmID string) (err error) {
	defer s.track("pause", time.Now(), &err)
	return s.waiter.Submit(ctx, "pause", vmID, func(ctx context.Context) (*vcloud.Task, error) {
		return s.session.PowerOffVM(ctx, vmID)
	})
}

// Reboot submits a reboot without waiting for it to finish.
func (s *Service) Reboot(ctx context.Context, vmID string) (err error) {
	defer s.track("reboot", time.Now(), &err)
	task, err := s.session.RebootVM(ctx, vmID)
	if err != nil {
		return fmt.Errorf("reboot %s: %w", vmID, err)
	}
	if task != nil {
		s.logger.Info("VM reboot initiated", "vmID", vmID, "taskID", task.ID)
	}
	return nil
}

// GetProduct looks up a product by id.
func (s *Service) GetProduct(id string) (products.Product, bool) {
	return s.catalog.Get(id)
}

// ListProducts returns the products available for an architecture. Every
// product is offered for every architecture.
func (s *Service) ListProducts(Architecture) []products.Product {
	return s.catalog.List()
}

// IsSubscribed reports whether the session may use compute services. Missing
// rights yield false rather than an error.
func (s *Service) IsSubscribed(ctx context.Context) (bool, error) {
	if _, err := s.session.ListCatalogs(ctx); err != nil {
		if vcloud.IsUnauthorized(err) {
			return false, nil
		}
		return false, fmt.Errorf("check compute subscription: %w", err)
	}
	return true, nil
}
