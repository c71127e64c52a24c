// Package tasks awaits asynchronous control-plane work: single tasks to their
// terminal status, and vApps or VMs until they leave every transient state with
// an empty queue of pending tasks.
//
// All loops poll at a fixed interval without an attempt limit. They stop only
// on a terminal result, a non-retryable fetch error or cancellation of the
// supplied context.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mhrivnak/vcompute/pkg/vcloud"
)

// DefaultInterval is the polling interval used when none is configured
const DefaultInterval = 5 * time.Second

// Poll kinds reported to a Recorder
const (
	PollTask     = "task"
	PollResolve  = "resolve"
	PollVAppIdle = "vapp_idle"
	PollVMIdle   = "vm_idle"
	PollVMState  = "vm_state"
)

// SleepFunc pauses for d or until ctx is done, returning ctx.Err() in the latter case
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc backed by a timer
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Recorder receives polling and task outcome observations
type Recorder interface {
	ObservePoll(kind string)
	ObserveTask(operation, result string, elapsed time.Duration)
}

// VAppGetter fetches vApps
type VAppGetter interface {
	GetVApp(ctx context.Context, id string) (*vcloud.VApp, error)
}

// VMGetter fetches member VMs
type VMGetter interface {
	GetVM(ctx context.Context, id string) (*vcloud.VM, error)
}

// TaskFailedError reports a task that reached the error or aborted status
type TaskFailedError struct {
	Task *vcloud.Task
}

func (e *TaskFailedError) Error() string {
	msg := fmt.Sprintf("task %s (%s) finished with status %s", e.Task.ID, e.Task.Operation, e.Task.Status)
	if e.Task.Error != nil {
		msg += ": " + e.Task.Error.Error()
	}
	return msg
}

// Unwrap exposes the control-plane error recorded on the task
func (e *TaskFailedError) Unwrap() error {
	if e.Task.Error == nil {
		return nil
	}
	return e.Task.Error
}

// Waiter polls the control plane until submitted work settles
type Waiter struct {
	Tasks    vcloud.TaskAPI
	VApps    VAppGetter
	VMs      VMGetter
	Interval time.Duration
	Sleep    SleepFunc
	Logger   *slog.Logger
	Recorder Recorder
}

// NewWaiter creates a Waiter polling every DefaultInterval.
func NewWaiter(tasks vcloud.TaskAPI, vapps VAppGetter, vms VMGetter, logger *slog.Logger) *Waiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Waiter{
		Tasks:    tasks,
		VApps:    vapps,
		VMs:      vms,
		Interval: DefaultInterval,
		Sleep:    Sleep,
		Logger:   logger,
	}
}

func (w *Waiter) pause(ctx context.Context, kind string) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	sleep := w.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	if err := sleep(ctx, interval); err != nil {
		return err
	}
	if w.Recorder != nil {
		w.Recorder.ObservePoll(kind)
	}
	return nil
}

func (w *Waiter) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

// retryable reports whether a fetch error while polling should be retried.
// Missing objects and missing rights do not heal by waiting.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !vcloud.IsNotFound(err) && !vcloud.IsUnauthorized(err) &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// WaitForTask polls task until it succeeds or fails. A nil task is a no-op.
func (w *Waiter) WaitForTask(ctx context.Context, task *vcloud.Task) error {
	if task == nil {
		return nil
	}

	start := time.Now()
	current := task
	for {
		switch {
		case current.Succeeded():
			w.observeTask(current, "success", start)
			return nil
		case current.Failed():
			w.observeTask(current, "failure", start)
			return &TaskFailedError{Task: current}
		}

		if err := w.pause(ctx, PollTask); err != nil {
			w.observeTask(current, "cancelled", start)
			return fmt.Errorf("waiting for task %s: %w", task.ID, err)
		}

		latest, err := w.Tasks.GetTask(ctx, task.ID)
		if err != nil {
			if !retryable(ctx, err) {
				return fmt.Errorf("polling task %s: %w", task.ID, err)
			}
			w.logger().Warn("Failed to poll task, retrying", "taskID", task.ID, "error", err)
			continue
		}
		current = latest
	}
}

func (w *Waiter) observeTask(task *vcloud.Task, result string, start time.Time) {
	if w.Recorder != nil {
		w.Recorder.ObserveTask(task.Operation, result, time.Since(start))
	}
}

// Submit issues a mutation and waits for its task. Failures are wrapped with
// the operation name and the target id.
func (w *Waiter) Submit(ctx context.Context, operation, target string, submit func(context.Context) (*vcloud.Task, error)) error {
	task, err := submit(ctx)
	if err != nil {
		return fmt.Errorf("%s %s: %w", operation, target, err)
	}
	if err := w.WaitForTask(ctx, task); err != nil {
		return fmt.Errorf("%s %s: %w", operation, target, err)
	}
	return nil
}

// WaitForVAppResolved refetches vapp until it leaves the UNRESOLVED status.
// Fetch errors are logged and retried.
func (w *Waiter) WaitForVAppResolved(ctx context.Context, vapp *vcloud.VApp) (*vcloud.VApp, error) {
	current := vapp
	for current.Status == vcloud.StatusUnresolved {
		if err := w.pause(ctx, PollResolve); err != nil {
			return nil, fmt.Errorf("waiting for vApp %s to resolve: %w", vapp.ID, err)
		}
		latest, err := w.VApps.GetVApp(ctx, vapp.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("waiting for vApp %s to resolve: %w", vapp.ID, ctx.Err())
			}
			w.logger().Warn("Failed to refresh unresolved vApp, retrying", "vappID", vapp.ID, "error", err)
			continue
		}
		current = latest
	}
	return current, nil
}

// WaitForVAppIdle fetches the vApp until its status is not transient and none
// of its tasks are pending, and returns that snapshot.
func (w *Waiter) WaitForVAppIdle(ctx context.Context, id string) (*vcloud.VApp, error) {
	for first := true; ; first = false {
		if !first {
			if err := w.pause(ctx, PollVAppIdle); err != nil {
				return nil, fmt.Errorf("waiting for vApp %s to become idle: %w", id, err)
			}
		}
		vapp, err := w.VApps.GetVApp(ctx, id)
		if err != nil {
			if !retryable(ctx, err) {
				return nil, fmt.Errorf("waiting for vApp %s to become idle: %w", id, err)
			}
			w.logger().Warn("Failed to refresh vApp, retrying", "vappID", id, "error", err)
			continue
		}
		if !vapp.Status.IsTransient() && !vcloud.HasPendingTasks(vapp.Tasks) {
			return vapp, nil
		}
		w.logger().Debug("vApp is busy", "vappID", id, "status", vapp.Status)
	}
}

// WaitForVMIdle fetches the VM until its status is not transient and none of
// its tasks are pending, and returns that snapshot.
func (w *Waiter) WaitForVMIdle(ctx context.Context, id string) (*vcloud.VM, error) {
	for first := true; ; first = false {
		if !first {
			if err := w.pause(ctx, PollVMIdle); err != nil {
				return nil, fmt.Errorf("waiting for VM %s to become idle: %w", id, err)
			}
		}
		vm, err := w.VMs.GetVM(ctx, id)
		if err != nil {
			if !retryable(ctx, err) {
				return nil, fmt.Errorf("waiting for VM %s to become idle: %w", id, err)
			}
			w.logger().Warn("Failed to refresh VM, retrying", "vmID", id, "error", err)
			continue
		}
		if !vm.Status.IsTransient() && !vcloud.HasPendingTasks(vm.Tasks) {
			return vm, nil
		}
		w.logger().Debug("VM is busy", "vmID", id, "status", vm.Status)
	}
}

// WaitForVMLeaves polls the VM until it no longer reports status. A VM that
// stops resolving counts as having left it. Other fetch errors are retried.
func (w *Waiter) WaitForVMLeaves(ctx context.Context, id string, status vcloud.Status) error {
	for {
		if err := w.pause(ctx, PollVMState); err != nil {
			return fmt.Errorf("waiting for VM %s to leave %s: %w", id, status, err)
		}
		vm, err := w.VMs.GetVM(ctx, id)
		if err != nil {
			if vcloud.IsNotFound(err) {
				return nil
			}
			if ctx.Err() != nil {
				return fmt.Errorf("waiting for VM %s to leave %s: %w", id, status, ctx.Err())
			}
			w.logger().Warn("Failed to refresh VM, retrying", "vmID", id, "error", err)
			continue
		}
		if vm.Status != status {
			return nil
		}
	}
}
