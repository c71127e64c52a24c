package vcloud

import (
	"strings"
	"time"
)

// Status is the lifecycle status reported by the control plane for vApps and VMs
type Status string

const (
	StatusUnresolved        Status = "UNRESOLVED"
	StatusResolved          Status = "RESOLVED"
	StatusDeployed          Status = "DEPLOYED"
	StatusSuspended         Status = "SUSPENDED"
	StatusPoweredOn         Status = "POWERED_ON"
	StatusPoweredOff        Status = "POWERED_OFF"
	StatusPoweringOn        Status = "POWERING_ON"
	StatusPoweringOff       Status = "POWERING_OFF"
	StatusDeleting          Status = "DELETING"
	StatusWaitingForInput   Status = "WAITING_FOR_INPUT"
	StatusFailedCreation    Status = "FAILED_CREATION"
	StatusInconsistentState Status = "INCONSISTENT_STATE"
	StatusMixed             Status = "MIXED"
	StatusUnknown           Status = "UNKNOWN"
)

// IsTransient reports whether the object is still settling and must not be mutated
func (s Status) IsTransient() bool {
	switch s {
	case StatusUnresolved, StatusPoweringOn, StatusPoweringOff, StatusDeleting, StatusWaitingForInput:
		return true
	default:
		return false
	}
}

// IsError reports whether the status is a terminal error state
func (s Status) IsError() bool {
	return s == StatusFailedCreation || s == StatusInconsistentState
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// VAppType distinguishes grouped vApps from standalone VM owners
type VAppType string

const (
	// VAppTypeGrouped is a true multi-VM container
	VAppTypeGrouped VAppType = "vApp"
	// VAppTypeStandalone owns exactly one VM and is not a user-visible group
	VAppTypeStandalone VAppType = "standalone"
)

// TaskStatus is the status of an asynchronous control-plane task
type TaskStatus string

const (
	TaskQueued     TaskStatus = "queued"
	TaskPreRunning TaskStatus = "preRunning"
	TaskRunning    TaskStatus = "running"
	TaskSuccess    TaskStatus = "success"
	TaskError      TaskStatus = "error"
	TaskAborted    TaskStatus = "aborted"
)

// Task is a handle to a remote asynchronous operation
type Task struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Operation string     `json:"operation"`
	Status    TaskStatus `json:"status"`
	OwnerID   string     `json:"ownerId,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Error     *Error     `json:"error,omitempty"`
}

// Succeeded reports whether the task finished successfully
func (t *Task) Succeeded() bool {
	return t.Status == TaskSuccess
}

// Failed reports whether the task finished unsuccessfully
func (t *Task) Failed() bool {
	return t.Status == TaskError || t.Status == TaskAborted
}

// Pending reports whether the task has not reached a terminal status yet
func (t *Task) Pending() bool {
	return !t.Succeeded() && !t.Failed()
}

// AllocationMode controls how a network connection obtains its address
type AllocationMode string

const (
	AllocationPool   AllocationMode = "POOL"
	AllocationManual AllocationMode = "MANUAL"
	AllocationDHCP   AllocationMode = "DHCP"
	AllocationNone   AllocationMode = "NONE"
)

// ParseAllocationMode parses an allocation mode case-insensitively; empty means POOL
func ParseAllocationMode(s string) (AllocationMode, bool) {
	switch AllocationMode(strings.ToUpper(strings.TrimSpace(s))) {
	case "", AllocationPool:
		return AllocationPool, true
	case AllocationManual:
		return AllocationManual, true
	case AllocationDHCP:
		return AllocationDHCP, true
	case AllocationNone:
		return AllocationNone, true
	default:
		return "", false
	}
}

// NetworkConnection binds a VM NIC to an org network by name
type NetworkConnection struct {
	Network                 string         `json:"network"`
	NetworkConnectionIndex  int            `json:"networkConnectionIndex"`
	IPAddress               string         `json:"ipAddress,omitempty"`
	ExternalIPAddress       string         `json:"externalIpAddress,omitempty"`
	MACAddress              string         `json:"macAddress,omitempty"`
	IsConnected             bool           `json:"isConnected"`
	IPAddressAllocationMode AllocationMode `json:"ipAddressAllocationMode"`
}

// NetworkConnectionSection is the full set of NICs of a VM
type NetworkConnectionSection struct {
	PrimaryNetworkConnectionIndex int                 `json:"primaryNetworkConnectionIndex"`
	Connections                   []NetworkConnection `json:"networkConnection"`
}

// Primary returns the connection whose index is the declared primary index
func (s NetworkConnectionSection) Primary() (NetworkConnection, bool) {
	for _, c := range s.Connections {
		if c.NetworkConnectionIndex == s.PrimaryNetworkConnectionIndex {
			return c, true
		}
	}
	return NetworkConnection{}, false
}

// GuestCustomizationSection holds the guest OS customization settings of a VM
type GuestCustomizationSection struct {
	Enabled       bool   `json:"enabled"`
	Info          string `json:"info,omitempty"`
	ComputerName  string `json:"computerName,omitempty"`
	AdminPassword string `json:"adminPassword,omitempty"`
}

// VM is a member virtual machine of a vApp
type VM struct {
	ID                        string                    `json:"id"`
	Name                      string                    `json:"name"`
	Description               string                    `json:"description,omitempty"`
	Status                    Status                    `json:"status"`
	VAppID                    string                    `json:"vappId"`
	OSType                    string                    `json:"osType,omitempty"`
	CPUCount                  int                       `json:"cpuCount,omitempty"`
	MemoryMB                  int                       `json:"memoryMB,omitempty"`
	NetworkConnectionSection  NetworkConnectionSection  `json:"networkConnectionSection"`
	GuestCustomizationSection GuestCustomizationSection `json:"guestCustomizationSection"`
	Tasks                     []Task                    `json:"tasks,omitempty"`
}

// VApp is the deployable container of one or more member VMs
type VApp struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Type        VAppType `json:"type"`
	Status      Status   `json:"status"`
	VDCID       string   `json:"vdcId"`
	Children    []VM     `json:"vms,omitempty"`
	Tasks       []Task   `json:"tasks,omitempty"`
}

// HasPendingTasks reports whether any task in the list is unfinished
func HasPendingTasks(tasks []Task) bool {
	for i := range tasks {
		if tasks[i].Pending() {
			return true
		}
	}
	return false
}

// Template is an immutable vApp template
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OSType      string `json:"osType,omitempty"`
	Children    []VM   `json:"vms,omitempty"`
}

// IPScope describes the addressing of an org network
type IPScope struct {
	Gateway string `json:"gateway,omitempty"`
	Netmask string `json:"netmask,omitempty"`
	DNS1    string `json:"dns1,omitempty"`
	DNS2    string `json:"dns2,omitempty"`
}

// Network is an organization-scoped network
type Network struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	OrgID       string   `json:"orgId,omitempty"`
	IPScope     *IPScope `json:"ipScope,omitempty"`
}

// Reference represents a reference to another entity
type Reference struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

// IsNetwork reports whether the reference names an org network. Untyped
// references are assumed to be networks.
func (r Reference) IsNetwork() bool {
	return r.Type == "" || r.Type == KindNetwork
}

// Org is the organization the session is scoped to
type Org struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VDC is a virtual data center within the organization
type VDC struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RegionID string `json:"regionId,omitempty"`
}

// Catalog is a template catalog visible to the organization
type Catalog struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InstantiateParams are the options for instantiating a template into a new vApp
type InstantiateParams struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	VDCID       string `json:"vdcId"`
	TemplateID  string `json:"templateId"`
	PowerOn     bool   `json:"powerOn"`
	Deploy      bool   `json:"deploy"`
	NetworkID   string `json:"networkId,omitempty"`
}

// CloneParams are the options for copying a vApp into a VDC
type CloneParams struct {
	SourceID    string `json:"sourceId"`
	VDCID       string `json:"vdcId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PowerOn     bool   `json:"powerOn"`
}
