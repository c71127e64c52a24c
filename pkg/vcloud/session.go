// Package vcloud models the virtualization control plane: its vApps, VMs,
// templates, org networks and asynchronous tasks, plus the session API used to
// read and mutate them.
//
// Every mutating call returns a *Task. The object is only valid to read again
// once the task has completed and the object has left its transient states; see
// package tasks for the awaiters that enforce this.
package vcloud

import "context"

// TaskAPI reads the current status of a submitted task
type TaskAPI interface {
	GetTask(ctx context.Context, id string) (*Task, error)
}

// VAppAPI reads and mutates vApps
type VAppAPI interface {
	GetVApp(ctx context.Context, id string) (*VApp, error)
	ListVApps(ctx context.Context, vdcID string) ([]Reference, error)
	DeployAndPowerOnVApp(ctx context.Context, id string) (*Task, error)
	PowerOffVApp(ctx context.Context, id string) (*Task, error)
	UndeployVApp(ctx context.Context, id string) (*Task, error)
	DeleteVApp(ctx context.Context, id string) (*Task, error)
	CloneVApp(ctx context.Context, params CloneParams) (*VApp, *Task, error)
}

// VMAPI reads and mutates member VMs
type VMAPI interface {
	GetVM(ctx context.Context, id string) (*VM, error)
	PowerOnVM(ctx context.Context, id string) (*Task, error)
	PowerOffVM(ctx context.Context, id string) (*Task, error)
	RebootVM(ctx context.Context, id string) (*Task, error)
	UndeployVM(ctx context.Context, id string) (*Task, error)
	UpdateGuestCustomization(ctx context.Context, id string, section GuestCustomizationSection) (*Task, error)
	UpdateNetworkConnections(ctx context.Context, id string, section NetworkConnectionSection) (*Task, error)
	UpdateCPUCount(ctx context.Context, id string, count int) (*Task, error)
	UpdateMemoryMB(ctx context.Context, id string, memoryMB int) (*Task, error)
}

// TemplateAPI reads templates and instantiates them into vApps
type TemplateAPI interface {
	GetTemplate(ctx context.Context, id string) (*Template, error)
	InstantiateTemplate(ctx context.Context, params InstantiateParams) (*VApp, error)
}

// NetworkAPI reads organization networks
type NetworkAPI interface {
	ListNetworks(ctx context.Context) ([]Reference, error)
	GetNetwork(ctx context.Context, id string) (*Network, error)
}

// OrgAPI reads organization-level objects
type OrgAPI interface {
	GetOrg(ctx context.Context) (*Org, error)
	ListCatalogs(ctx context.Context) ([]Catalog, error)
	ListVDCs(ctx context.Context) ([]VDC, error)
}

// Session is the full control-plane API available to an authenticated caller
type Session interface {
	TaskAPI
	VAppAPI
	VMAPI
	TemplateAPI
	NetworkAPI
	OrgAPI
}
