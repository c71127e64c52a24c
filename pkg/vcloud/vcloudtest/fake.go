// Package vcloudtest provides an in-memory control plane implementing
// vcloud.Session for tests. Objects are seeded through the exported helpers;
// fetch results, submit errors and task outcomes can be scripted per call.
package vcloudtest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mhrivnak/vcompute/pkg/vcloud"
)

// Fake is a scriptable vcloud.Session. The zero value is not usable; call New.
type Fake struct {
	mu sync.Mutex

	org       vcloud.Org
	vdcs      []vcloud.VDC
	catalogs  []vcloud.Catalog
	vapps     map[string]*vcloud.VApp
	vappOrder []string
	templates map[string]*vcloud.Template
	networks  map[string]*vcloud.Network
	netOrder  []string
	tasks     map[string]*taskState

	vappScript map[string][]func(*vcloud.VApp)
	vmScript   map[string][]func(*vcloud.VM)
	submitErrs map[string][]error
	taskErrs   map[string][]*vcloud.Error
	calls      map[string]int
	history    []string
	nextIP     int

	// TaskPolls is how many GetTask calls report a task as running before it
	// reaches its final status
	TaskPolls int
}

type taskState struct {
	task  vcloud.Task
	final vcloud.TaskStatus
	cause *vcloud.Error
	polls int
}

// New creates an empty fake control plane with a single org and VDC.
func New() *Fake {
	return &Fake{
		org:        vcloud.Org{ID: vcloud.NewURN(vcloud.KindOrg), Name: "test-org"},
		vdcs:       []vcloud.VDC{{ID: vcloud.NewURN(vcloud.KindVDC), Name: "test-vdc", RegionID: "region-1"}},
		vapps:      map[string]*vcloud.VApp{},
		templates:  map[string]*vcloud.Template{},
		networks:   map[string]*vcloud.Network{},
		tasks:      map[string]*taskState{},
		vappScript: map[string][]func(*vcloud.VApp){},
		vmScript:   map[string][]func(*vcloud.VM){},
		submitErrs: map[string][]error{},
		taskErrs:   map[string][]*vcloud.Error{},
		calls:      map[string]int{},
	}
}

// VDCID returns the id of the seeded VDC.
func (f *Fake) VDCID() string {
	return f.vdcs[0].ID
}

// AddVApp stores a vApp. Missing ids are generated and member VMs get VAppID set.
func (f *Fake) AddVApp(vapp vcloud.VApp) *vcloud.VApp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addVAppLocked(vapp)
}

func (f *Fake) addVAppLocked(vapp vcloud.VApp) *vcloud.VApp {
	if vapp.ID == "" {
		vapp.ID = vcloud.NewURN(vcloud.KindVApp)
	}
	if vapp.Type == "" {
		vapp.Type = vcloud.VAppTypeGrouped
	}
	if vapp.VDCID == "" {
		vapp.VDCID = f.vdcs[0].ID
	}
	stored := cloneVApp(&vapp)
	for i := range stored.Children {
		if stored.Children[i].ID == "" {
			stored.Children[i].ID = vcloud.NewURN(vcloud.KindVM)
		}
		stored.Children[i].VAppID = stored.ID
	}
	if _, exists := f.vapps[stored.ID]; !exists {
		f.vappOrder = append(f.vappOrder, stored.ID)
	}
	f.vapps[stored.ID] = stored
	return cloneVApp(stored)
}

// AddTemplate stores a template, generating an id when missing.
func (f *Fake) AddTemplate(tmpl vcloud.Template) *vcloud.Template {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tmpl.ID == "" {
		tmpl.ID = vcloud.NewURN(vcloud.KindTemplate)
	}
	stored := tmpl
	stored.Children = slices.Clone(tmpl.Children)
	f.templates[stored.ID] = &stored
	return &stored
}

// AddNetwork stores an org network, generating an id when missing. Networks
// are listed in insertion order.
func (f *Fake) AddNetwork(network vcloud.Network) *vcloud.Network {
	f.mu.Lock()
	defer f.mu.Unlock()
	if network.ID == "" {
		network.ID = vcloud.NewURN(vcloud.KindNetwork)
	}
	stored := network
	f.networks[stored.ID] = &stored
	f.netOrder = append(f.netOrder, stored.ID)
	return &stored
}

// VApp returns the stored state of a vApp, or nil when it does not exist.
func (f *Fake) VApp(id string) *vcloud.VApp {
	f.mu.Lock()
	defer f.mu.Unlock()
	if vapp, ok := f.vapps[id]; ok {
		return cloneVApp(vapp)
	}
	return nil
}

// VM returns the stored state of a member VM, or nil when it does not exist.
func (f *Fake) VM(id string) *vcloud.VM {
	f.mu.Lock()
	defer f.mu.Unlock()
	if vm, _ := f.findVMLocked(id); vm != nil {
		out := cloneVM(vm)
		return &out
	}
	return nil
}

// QueueVAppStatus makes the next GetVApp calls for id report the given
// statuses, one per call, without changing the stored object.
func (f *Fake) QueueVAppStatus(id string, statuses ...vcloud.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range statuses {
		f.vappScript[id] = append(f.vappScript[id], func(v *vcloud.VApp) { v.Status = s })
	}
}

// QueueVAppTasks makes the next GetVApp call for id report the given task list.
func (f *Fake) QueueVAppTasks(id string, tasks ...vcloud.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vappScript[id] = append(f.vappScript[id], func(v *vcloud.VApp) { v.Tasks = tasks })
}

// QueueVMStatus makes the next GetVM calls for id report the given statuses.
func (f *Fake) QueueVMStatus(id string, statuses ...vcloud.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range statuses {
		f.vmScript[id] = append(f.vmScript[id], func(vm *vcloud.VM) { vm.Status = s })
	}
}

// QueueVMTasks makes the next GetVM call for id report the given task list.
func (f *Fake) QueueVMTasks(id string, tasks ...vcloud.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vmScript[id] = append(f.vmScript[id], func(vm *vcloud.VM) { vm.Tasks = tasks })
}

// FailNext makes the next calls of the named method return the given errors,
// one per call. Failed mutations leave state unchanged.
func (f *Fake) FailNext(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErrs[method] = append(f.submitErrs[method], errs...)
}

// FailTask makes the tasks returned by the next calls of the named mutation
// end in error with the given causes. Failed tasks leave state unchanged.
func (f *Fake) FailTask(method string, causes ...*vcloud.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskErrs[method] = append(f.taskErrs[method], causes...)
}

// Calls returns how many times the named method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// History returns every mutation in call order as "<method> <id>".
func (f *Fake) History() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.history)
}

// enter records a call and pops a scripted error for it
func (f *Fake) enter(ctx context.Context, method string) error {
	f.calls[method]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if errs := f.submitErrs[method]; len(errs) > 0 {
		f.submitErrs[method] = errs[1:]
		return errs[0]
	}
	return nil
}

// mutate runs a state change behind a task. It returns the task handle and
// applies the change unless an error or a failing task was scripted.
func (f *Fake) mutate(ctx context.Context, method, target string, apply func() error) (*vcloud.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, method); err != nil {
		return nil, err
	}
	f.history = append(f.history, method+" "+target)

	now := time.Now()
	state := &taskState{
		task: vcloud.Task{
			ID:        vcloud.NewURN(vcloud.KindTask),
			Name:      method,
			Operation: method,
			Status:    vcloud.TaskRunning,
			OwnerID:   target,
			StartTime: &now,
		},
		final: vcloud.TaskSuccess,
		polls: f.TaskPolls,
	}
	if causes := f.taskErrs[method]; len(causes) > 0 {
		f.taskErrs[method] = causes[1:]
		state.final = vcloud.TaskError
		state.cause = causes[0]
	} else if err := apply(); err != nil {
		return nil, err
	}
	f.tasks[state.task.ID] = state

	task := state.task
	return &task, nil
}

func (f *Fake) findVMLocked(id string) (*vcloud.VM, *vcloud.VApp) {
	for _, vappID := range f.vappOrder {
		vapp, ok := f.vapps[vappID]
		if !ok {
			continue
		}
		for i := range vapp.Children {
			if vapp.Children[i].ID == id {
				return &vapp.Children[i], vapp
			}
		}
	}
	return nil, nil
}

func (f *Fake) vmLocked(id string) (*vcloud.VM, error) {
	vm, _ := f.findVMLocked(id)
	if vm == nil {
		return nil, notFound("vm", id)
	}
	return vm, nil
}

func (f *Fake) vappLocked(id string) (*vcloud.VApp, error) {
	vapp, ok := f.vapps[id]
	if !ok {
		return nil, notFound("vApp", id)
	}
	return vapp, nil
}

func notFound(kind, id string) error {
	return &vcloud.Error{
		StatusCode: 404,
		MinorCode:  vcloud.MinorCodeNotFound,
		Message:    fmt.Sprintf("%s %s does not exist", kind, id),
	}
}

// GetTask implements vcloud.TaskAPI.
func (f *Fake) GetTask(ctx context.Context, id string) (*vcloud.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "GetTask"); err != nil {
		return nil, err
	}
	state, ok := f.tasks[id]
	if !ok {
		return nil, notFound("task", id)
	}
	if state.polls > 0 {
		state.polls--
	} else if state.task.Status == vcloud.TaskRunning {
		end := time.Now()
		state.task.Status = state.final
		state.task.EndTime = &end
		state.task.Error = state.cause
	}
	task := state.task
	return &task, nil
}

// GetVApp implements vcloud.VAppAPI.
func (f *Fake) GetVApp(ctx context.Context, id string) (*vcloud.VApp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "GetVApp"); err != nil {
		return nil, err
	}
	vapp, err := f.vappLocked(id)
	if err != nil {
		return nil, err
	}
	out := cloneVApp(vapp)
	if script := f.vappScript[id]; len(script) > 0 {
		f.vappScript[id] = script[1:]
		script[0](out)
	}
	return out, nil
}

// ListVApps implements vcloud.VAppAPI.
func (f *Fake) ListVApps(ctx context.Context, vdcID string) ([]vcloud.Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "ListVApps"); err != nil {
		return nil, err
	}
	var refs []vcloud.Reference
	for _, id := range f.vappOrder {
		if vapp, ok := f.vapps[id]; ok && vapp.VDCID == vdcID {
			refs = append(refs, vcloud.Reference{ID: vapp.ID, Name: vapp.Name, Type: vcloud.KindVApp})
		}
	}
	return refs, nil
}

func (f *Fake) setVAppPower(vapp *vcloud.VApp, status vcloud.Status) {
	vapp.Status = status
	for i := range vapp.Children {
		vapp.Children[i].Status = status
	}
}

// DeployAndPowerOnVApp implements vcloud.VAppAPI.
func (f *Fake) DeployAndPowerOnVApp(ctx context.Context, id string) (*vcloud.Task, error) {
	return f.mutate(ctx, "DeployAndPowerOnVApp", id, func() error {
		vapp, err := f.vappLocked(id)
		if err != nil {
			return err
		}
		f.setVAppPower(vapp, vcloud.StatusPoweredOn)
		return nil
	})
}

// PowerOffVApp implements vcloud.VAppAPI.
func (f *Fake) PowerOffVApp(ctx context.Context, id string) (*vcloud.Task, error) {
	return f.mutate(ctx, "PowerOffVApp", id, func() error {
		vapp, err := f.vappLocked(id)
		if err != nil {
			return err
		}
		f.setVAppPower(vapp, vcloud.StatusPoweredOff)
		return nil
	})
}

// UndeployVApp implements vcloud.VAppAPI.
func (f *Fake) UndeployVApp(ctx context.Context, id string) (*vcloud.Task, error) {
	return f.mutate(ctx, "UndeployVApp", id, func() error {
		vapp, err := f.vappLocked(id)
		if err != nil {
			return err
		}
		f.setVAppPower(vapp, vcloud.StatusPoweredOff)
		vapp.Status = vcloud.StatusResolved
		return nil
	})
}

// DeleteVApp implements vcloud.VAppAPI.
func (f *Fake) DeleteVApp(ctx context.Context, id string) (*vcloud.Task, error) {
	return f.mutate(ctx, "DeleteVApp", id, func() error {
		if _, err := f.vappLocked(id); err != nil {
			return err
		}
		delete(f.vapps, id)
		f.vappOrder = slices.DeleteFunc(f.vappOrder, func(s string) bool { return s == id })
		return nil
	})
}

// CloneVApp implements vcloud.VAppAPI.
func (f *Fake) CloneVApp(ctx context.Context, params vcloud.CloneParams) (*vcloud.VApp, *vcloud.Task, error) {
	var created *vcloud.VApp
	task, err := f.mutate(ctx, "CloneVApp", params.SourceID, func() error {
		src, err := f.vappLocked(params.SourceID)
		if err != nil {
			return err
		}
		copied := cloneVApp(src)
		copied.ID = ""
		copied.Name = params.Name
		copied.Description = params.Description
		copied.VDCID = params.VDCID
		copied.Tasks = nil
		for i := range copied.Children {
			copied.Children[i].ID = ""
			copied.Children[i].Tasks = nil
		}
		created = f.addVAppLocked(*copied)
		if params.PowerOn {
			f.setVAppPower(f.vapps[created.ID], vcloud.StatusPoweredOn)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return created, task, nil
}

// GetVM implements vcloud.VMAPI.
func (f *Fake) GetVM(ctx context.Context, id string) (*vcloud.VM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "GetVM"); err != nil {
		return nil, err
	}
	vm, err := f.vmLocked(id)
	if err != nil {
		return nil, err
	}
	out := cloneVM(vm)
	if script := f.vmScript[id]; len(script) > 0 {
		f.vmScript[id] = script[1:]
		script[0](&out)
	}
	return &out, nil
}

func (f *Fake) vmMutation(ctx context.Context, method, id string, apply func(vm *vcloud.VM)) (*vcloud.Task, error) {
	return f.mutate(ctx, method, id, func() error {
		vm, err := f.vmLocked(id)
		if err != nil {
			return err
		}
		apply(vm)
		return nil
	})
}

// PowerOnVM implements vcloud.VMAPI.
func (f *Fake) PowerOnVM(ctx context.Context, id string) (*vcloud.Task, error) {
	return f.vmMutation(ctx, "PowerOnVM", id, func(vm *vcloud.VM) { vm.Status = vcloud.StatusPoweredOn })
}

// PowerOffVM implements vcloud.VMAPI.
func (f *Fake) PowerOffVM(ctx context.Context, id string) (*vcloud.Task, error) {
	return f.vmMutation(ctx, "PowerOffVM", id, func(vm *vcloud.VM) { vm.Status = vcloud.StatusPoweredOff })
}

// RebootVM implements vcloud.VMAPI.
func (f *Fake) RebootVM(ctx context.Context, id string) (*vcloud.Task, error) {
	return f.vmMutation(ctx, "RebootVM", id, func(*vcloud.VM) {})
}

// UndeployVM implements vcloud.VMAPI.
func (f *Fake) UndeployVM(ctx context.Context, id string) (*vcloud.Task, error) {
	return f.vmMutation(ctx, "UndeployVM", id, func(vm *vcloud.VM) { vm.Status = vcloud.StatusResolved })
}

// UpdateGuestCustomization implements vcloud.VMAPI.
func (f *Fake) UpdateGuestCustomization(ctx context.Context, id string, section vcloud.GuestCustomizationSection) (*vcloud.Task, error) {
	return f.vmMutation(ctx, "UpdateGuestCustomization", id, func(vm *vcloud.VM) {
		vm.GuestCustomizationSection = section
	})
}

// UpdateNetworkConnections implements vcloud.VMAPI. Pool-allocated connections
// without an address are assigned one from 10.0.0.0/24.
func (f *Fake) UpdateNetworkConnections(ctx context.Context, id string, section vcloud.NetworkConnectionSection) (*vcloud.Task, error) {
	return f.vmMutation(ctx, "UpdateNetworkConnections", id, func(vm *vcloud.VM) {
		section.Connections = slices.Clone(section.Connections)
		for i := range section.Connections {
			conn := &section.Connections[i]
			if conn.IPAddressAllocationMode == vcloud.AllocationPool && conn.IPAddress == "" {
				f.nextIP++
				conn.IPAddress = fmt.Sprintf("10.0.0.%d", 10+f.nextIP)
			}
		}
		vm.NetworkConnectionSection = section
	})
}

// UpdateCPUCount implements vcloud.VMAPI.
func (f *Fake) UpdateCPUCount(ctx context.Context, id string, count int) (*vcloud.Task, error) {
	return f.vmMutation(ctx, "UpdateCPUCount", id, func(vm *vcloud.VM) { vm.CPUCount = count })
}

// UpdateMemoryMB implements vcloud.VMAPI.
func (f *Fake) UpdateMemoryMB(ctx context.Context, id string, memoryMB int) (*vcloud.Task, error) {
	return f.vmMutation(ctx, "UpdateMemoryMB", id, func(vm *vcloud.VM) { vm.MemoryMB = memoryMB })
}

// GetTemplate implements vcloud.TemplateAPI.
func (f *Fake) GetTemplate(ctx context.Context, id string) (*vcloud.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "GetTemplate"); err != nil {
		return nil, err
	}
	tmpl, ok := f.templates[id]
	if !ok {
		return nil, notFound("vAppTemplate", id)
	}
	out := *tmpl
	out.Children = slices.Clone(tmpl.Children)
	return &out, nil
}

// InstantiateTemplate implements vcloud.TemplateAPI. The stored vApp is
// POWERED_OFF while the returned snapshot is still UNRESOLVED. A template
// without VMs yields a nil vApp.
func (f *Fake) InstantiateTemplate(ctx context.Context, params vcloud.InstantiateParams) (*vcloud.VApp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "InstantiateTemplate"); err != nil {
		return nil, err
	}
	tmpl, ok := f.templates[params.TemplateID]
	if !ok {
		return nil, notFound("vAppTemplate", params.TemplateID)
	}
	f.history = append(f.history, "InstantiateTemplate "+params.TemplateID)
	if len(tmpl.Children) == 0 {
		return nil, nil
	}

	vapp := vcloud.VApp{
		Name:        params.Name,
		Description: params.Description,
		Type:        vcloud.VAppTypeGrouped,
		Status:      vcloud.StatusPoweredOff,
		VDCID:       params.VDCID,
	}
	for _, child := range tmpl.Children {
		child.ID = ""
		child.Status = vcloud.StatusPoweredOff
		if child.OSType == "" {
			child.OSType = tmpl.OSType
		}
		vapp.Children = append(vapp.Children, cloneVM(&child))
	}
	if params.NetworkID != "" {
		if network, ok := f.networks[params.NetworkID]; ok {
			for i := range vapp.Children {
				vapp.Children[i].NetworkConnectionSection = vcloud.NetworkConnectionSection{
					Connections: []vcloud.NetworkConnection{{Network: network.Name, IPAddressAllocationMode: vcloud.AllocationNone}},
				}
			}
		}
	}
	created := f.addVAppLocked(vapp)
	created.Status = vcloud.StatusUnresolved
	return created, nil
}

// ListNetworks implements vcloud.NetworkAPI.
func (f *Fake) ListNetworks(ctx context.Context) ([]vcloud.Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "ListNetworks"); err != nil {
		return nil, err
	}
	refs := make([]vcloud.Reference, 0, len(f.netOrder))
	for _, id := range f.netOrder {
		refs = append(refs, vcloud.Reference{ID: id, Name: f.networks[id].Name, Type: vcloud.KindNetwork})
	}
	return refs, nil
}

// GetNetwork implements vcloud.NetworkAPI.
func (f *Fake) GetNetwork(ctx context.Context, id string) (*vcloud.Network, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "GetNetwork"); err != nil {
		return nil, err
	}
	network, ok := f.networks[id]
	if !ok {
		return nil, notFound("network", id)
	}
	out := *network
	if network.IPScope != nil {
		scope := *network.IPScope
		out.IPScope = &scope
	}
	return &out, nil
}

// GetOrg implements vcloud.OrgAPI.
func (f *Fake) GetOrg(ctx context.Context) (*vcloud.Org, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "GetOrg"); err != nil {
		return nil, err
	}
	org := f.org
	return &org, nil
}

// ListCatalogs implements vcloud.OrgAPI.
func (f *Fake) ListCatalogs(ctx context.Context) ([]vcloud.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "ListCatalogs"); err != nil {
		return nil, err
	}
	return slices.Clone(f.catalogs), nil
}

// ListVDCs implements vcloud.OrgAPI.
func (f *Fake) ListVDCs(ctx context.Context) ([]vcloud.VDC, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, "ListVDCs"); err != nil {
		return nil, err
	}
	return slices.Clone(f.vdcs), nil
}

func cloneVM(vm *vcloud.VM) vcloud.VM {
	out := *vm
	out.NetworkConnectionSection.Connections = slices.Clone(vm.NetworkConnectionSection.Connections)
	out.Tasks = slices.Clone(vm.Tasks)
	return out
}

func cloneVApp(vapp *vcloud.VApp) *vcloud.VApp {
	out := *vapp
	out.Tasks = slices.Clone(vapp.Tasks)
	out.Children = make([]vcloud.VM, len(vapp.Children))
	for i := range vapp.Children {
		out.Children[i] = cloneVM(&vapp.Children[i])
	}
	return &out
}

var _ vcloud.Session = (*Fake)(nil)
