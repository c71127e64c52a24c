package compute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mhrivnak/vcompute/pkg/retry"
	"github.com/mhrivnak/vcompute/pkg/tasks"
	"github.com/mhrivnak/vcompute/pkg/vcloud"
)

// UndeployOutcome is the result of a best-effort vApp undeploy
type UndeployOutcome int

const (
	// UndeploySucceeded means the undeploy task completed
	UndeploySucceeded UndeployOutcome = iota
	// UndeployIgnored means the undeploy failed in a way the following delete tolerates
	UndeployIgnored
	// UndeployFailed means the undeploy was abandoned and teardown must stop
	UndeployFailed
)

func (o UndeployOutcome) String() string {
	switch o {
	case UndeploySucceeded:
		return "succeeded"
	case UndeployIgnored:
		return "ignored"
	case UndeployFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminate powers off a VM. When the VM belongs to a grouped vApp and no
// sibling is still powered on, the whole vApp is undeployed and deleted; a
// standalone VM left deployed is undeployed. A partially torn down target is
// not rolled back on error.
func (s *Service) Terminate(ctx context.Context, vmID string) (err error) {
	defer s.track("terminate", time.Now(), &err)

	vm, err := s.session.GetVM(ctx, vmID)
	if err != nil {
		return fmt.Errorf("terminate %s: %w", vmID, err)
	}
	parent, err := s.session.GetVApp(ctx, vm.VAppID)
	if err != nil {
		return fmt.Errorf("terminate %s: resolve vApp %s: %w", vmID, vm.VAppID, err)
	}

	if parent.Type == vcloud.VAppTypeGrouped {
		err = s.terminateGrouped(ctx, vm, parent)
	} else {
		err = s.terminateStandalone(ctx, vm)
	}
	if err != nil {
		return fmt.Errorf("terminate %s: %w", vmID, err)
	}
	return nil
}

func (s *Service) powerOffVM(ctx context.Context, vmID string) error {
	if _, err := s.waiter.WaitForVMIdle(ctx, vmID); err != nil {
		return err
	}
	return s.waiter.Submit(ctx, "power off", vmID, func(ctx context.Context) (*vcloud.Task, error) {
		return s.session.PowerOffVM(ctx, vmID)
	})
}

func (s *Service) terminateGrouped(ctx context.Context, vm *vcloud.VM, parent *vcloud.VApp) error {
	logger := s.logger.With("vmID", vm.ID, "vappID", parent.ID)

	if _, err := s.waiter.WaitForVAppIdle(ctx, parent.ID); err != nil {
		return err
	}
	vm, err := s.session.GetVM(ctx, vm.ID)
	if err != nil {
		return fmt.Errorf("refresh VM: %w", err)
	}
	if vm.Status == vcloud.StatusPoweredOn {
		if err := s.powerOffVM(ctx, vm.ID); err != nil {
			return err
		}
	}
	if _, err := s.waiter.WaitForVMIdle(ctx, vm.ID); err != nil {
		return err
	}

	vappID := parent.ID
	parent, err = s.session.GetVApp(ctx, vappID)
	if err != nil {
		return fmt.Errorf("refresh vApp %s: %w", vappID, err)
	}
	running := 0
	for _, child := range parent.Children {
		if child.Status == vcloud.StatusPoweredOn {
			running++
		}
	}
	if running > 0 {
		logger.Info("VM powered off, keeping vApp with running siblings", "running", running)
		return nil
	}

	if _, err := s.waiter.WaitForVAppIdle(ctx, parent.ID); err != nil {
		return err
	}
	if outcome, err := s.undeployVApp(ctx, parent.ID); outcome == UndeployFailed {
		return err
	}

	parent, err = s.waiter.WaitForVAppIdle(ctx, parent.ID)
	if err != nil {
		return err
	}
	for _, child := range parent.Children {
		if _, err := s.waiter.WaitForVMIdle(ctx, child.ID); err != nil {
			return err
		}
	}

	if err := s.deleteVApp(ctx, parent.ID); err != nil {
		return err
	}
	logger.Info("Deleted vApp after its last VM was powered off")
	return nil
}

// undeployVApp undeploys a vApp on a best-effort basis. Failures are ignored
// because the control plane rejects undeploy in states where delete still
// works; only an ended context aborts the teardown.
func (s *Service) undeployVApp(ctx context.Context, vappID string) (outcome UndeployOutcome, err error) {
	defer func() { s.metrics.RecordUndeploy(outcome) }()

	err = s.waiter.Submit(ctx, "undeploy", vappID, func(ctx context.Context) (*vcloud.Task, error) {
		return s.session.UndeployVApp(ctx, vappID)
	})
	switch {
	case err == nil:
		return UndeploySucceeded, nil
	case ctx.Err() != nil:
		return UndeployFailed, err
	default:
		s.logger.Warn("Ignoring failed vApp undeploy", "vappID", vappID, "error", err)
		return UndeployIgnored, err
	}
}

// deleteVApp deletes a vApp, retrying with backoff while the control plane
// reports a conflicting state
func (s *Service) deleteVApp(ctx context.Context, vappID string) error {
	sleep := s.waiter.Sleep
	if sleep == nil {
		sleep = tasks.Sleep
	}

	err := retry.Do(ctx, s.deleteRetry, func(ctx context.Context) error {
		return s.waiter.Submit(ctx, "delete", vappID, func(ctx context.Context) (*vcloud.Task, error) {
			return s.session.DeleteVApp(ctx, vappID)
		})
	},
		retry.WithSleep(sleep),
		retry.WithRetryable(vcloud.IsConflictState),
		retry.WithNotify(func(attempt int, delay time.Duration, err error) {
			s.metrics.RecordDeleteConflictRetry()
			s.logger.Info("vApp delete rejected in conflicting state, retrying",
				"vappID", vappID, "attempt", attempt, "delay", delay, "error", err)
		}),
	)
	if errors.Is(err, retry.ErrExhausted) {
		s.logger.Error("Giving up deleting vApp", "vappID", vappID, "error", err)
	}
	return err
}

func (s *Service) terminateStandalone(ctx context.Context, vm *vcloud.VM) error {
	if vm.Status == vcloud.StatusPoweredOn {
		if err := s.powerOffVM(ctx, vm.ID); err != nil {
			return err
		}
	}
	vm, err := s.waiter.WaitForVMIdle(ctx, vm.ID)
	if err != nil {
		return err
	}
	if vm.Status != vcloud.StatusDeployed {
		return nil
	}

	if err := s.waiter.Submit(ctx, "undeploy", vm.ID, func(ctx context.Context) (*vcloud.Task, error) {
		return s.session.UndeployVM(ctx, vm.ID)
	}); err != nil {
		return err
	}
	return s.waiter.WaitForVMLeaves(ctx, vm.ID, vcloud.StatusDeployed)
}

// TerminateVApp powers off, undeploys and deletes a whole vApp, awaiting each step.
func (s *Service) TerminateVApp(ctx context.Context, vappID string) (err error) {
	defer s.track("terminate_vapp", time.Now(), &err)

	steps := []struct {
		operation string
		submit    func(ctx context.Context, id string) (*vcloud.Task, error)
	}{
		{"power off", s.session.PowerOffVApp},
		{"undeploy", s.session.UndeployVApp},
		{"delete", s.session.DeleteVApp},
	}
	for _, step := range steps {
		if err := s.waiter.Submit(ctx, step.operation, vappID, func(ctx context.Context) (*vcloud.Task, error) {
			return step.submit(ctx, vappID)
		}); err != nil {
			return fmt.Errorf("terminate vApp: %w", err)
		}
	}
	return nil
}
