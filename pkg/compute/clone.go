package compute

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mhrivnak/vcompute/pkg/vcloud"
)

// CloneRequest describes a copy of a vApp into a VDC. SourceID may name the
// vApp itself or any of its member VMs.
type CloneRequest struct {
	SourceID    string `json:"sourceId"`
	VDCID       string `json:"vdcId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PowerOn     bool   `json:"powerOn"`
}

// Clone copies the container of the source into a VDC under a new name and
// returns the VMs of the copy once it is idle.
func (s *Service) Clone(ctx context.Context, req CloneRequest) (vms []VirtualMachine, err error) {
	defer s.track("clone", time.Now(), &err)

	if req.SourceID == "" || req.VDCID == "" {
		return nil, fmt.Errorf("%w: source and VDC ids are required", ErrInvalidRequest)
	}
	name, err := s.validator.Validate(req.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	vappID := req.SourceID
	if strings.HasPrefix(req.SourceID, vcloud.URNPrefix+vcloud.KindVM+":") {
		vm, err := s.session.GetVM(ctx, req.SourceID)
		if err != nil {
			return nil, fmt.Errorf("clone %s: %w", req.SourceID, err)
		}
		vappID = vm.VAppID
	}

	created, task, err := s.session.CloneVApp(ctx, vcloud.CloneParams{
		SourceID:    vappID,
		VDCID:       req.VDCID,
		Name:        name,
		Description: req.Description,
		PowerOn:     req.PowerOn,
	})
	if err != nil {
		return nil, fmt.Errorf("clone vApp %s: %w", vappID, err)
	}
	if err := s.waiter.WaitForTask(ctx, task); err != nil {
		return nil, fmt.Errorf("clone vApp %s: %w", vappID, err)
	}
	if created == nil {
		return nil, fmt.Errorf("clone of vApp %s returned no vApp", vappID)
	}

	copied, err := s.waiter.WaitForVAppIdle(ctx, created.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Cloned vApp", "sourceID", vappID, "vappID", copied.ID, "vdcID", req.VDCID)
	return s.projector(ctx).ProjectAll(ctx, copied), nil
}
