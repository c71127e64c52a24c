package compute

import (
	"strings"
	"time"

	"github.com/mhrivnak/vcompute/pkg/products"
)

// VMState is the provider-neutral lifecycle state of a virtual machine
type VMState string

const (
	VMStatePending    VMState = "pending"
	VMStateRunning    VMState = "running"
	VMStatePaused     VMState = "paused"
	VMStateTerminated VMState = "terminated"
)

// Architecture is the CPU architecture of a virtual machine
type Architecture string

const (
	ArchitectureI32 Architecture = "I32"
	ArchitectureI64 Architecture = "I64"
)

// GuessArchitecture derives the architecture from a guest OS type. Unknown
// types are assumed to be 64-bit.
func GuessArchitecture(osType string) Architecture {
	if osType == "" || strings.Contains(osType, "64") {
		return ArchitectureI64
	}
	return ArchitectureI32
}

// Platform is the guest operating system family
type Platform string

const (
	PlatformUnknown Platform = "UNKNOWN"
	PlatformWindows Platform = "WINDOWS"
	PlatformRHEL    Platform = "RHEL"
	PlatformCentOS  Platform = "CENT_OS"
	PlatformUbuntu  Platform = "UBUNTU"
	PlatformDebian  Platform = "DEBIAN"
	PlatformSUSE    Platform = "SUSE"
	PlatformFedora  Platform = "FEDORA"
	PlatformFreeBSD Platform = "FREE_BSD"
	PlatformSolaris Platform = "SOLARIS"
	PlatformUnix    Platform = "UNIX"
)

var platformHints = []struct {
	hint     string
	platform Platform
}{
	{"rhel", PlatformRHEL},
	{"redhat", PlatformRHEL},
	{"centos", PlatformCentOS},
	{"ubuntu", PlatformUbuntu},
	{"debian", PlatformDebian},
	{"sles", PlatformSUSE},
	{"suse", PlatformSUSE},
	{"fedora", PlatformFedora},
	{"freebsd", PlatformFreeBSD},
	{"solaris", PlatformSolaris},
	{"linux", PlatformUnix},
	{"unix", PlatformUnix},
}

// GuessPlatform maps a guest OS type such as "windows8Server64Guest" or
// "rhel7_64Guest" to a platform
func GuessPlatform(osType string) Platform {
	lower := strings.ToLower(osType)
	if strings.HasPrefix(lower, "win") || strings.Contains(lower, "windows") {
		return PlatformWindows
	}
	for _, h := range platformHints {
		if strings.Contains(lower, h.hint) {
			return h.platform
		}
	}
	return PlatformUnknown
}

// IsWindows reports whether the platform is a Windows family
func (p Platform) IsWindows() bool {
	return p == PlatformWindows
}

// VirtualMachine is the provider-neutral projection of a member VM
type VirtualMachine struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	OwnerID            string            `json:"ownerId"`
	RegionID           string            `json:"regionId"`
	DataCenterID       string            `json:"dataCenterId"`
	VAppID             string            `json:"vappId"`
	ImageID            string            `json:"imageId"`
	Platform           Platform          `json:"platform"`
	Architecture       Architecture      `json:"architecture"`
	Clonable           bool              `json:"clonable"`
	Imagable           bool              `json:"imagable"`
	Pausable           bool              `json:"pausable"`
	Persistent         bool              `json:"persistent"`
	Rebootable         bool              `json:"rebootable"`
	Product            products.Product  `json:"product"`
	PublicIPAddresses  []string          `json:"publicIpAddresses"`
	PrivateIPAddresses []string          `json:"privateIpAddresses"`
	VLANID             string            `json:"vlanId,omitempty"`
	RootUser           string            `json:"rootUser"`
	RootPassword       string            `json:"-"`
	State              VMState           `json:"state"`
	CreatedAt          time.Time         `json:"createdAt"`
	LastBootAt         *time.Time        `json:"lastBootAt,omitempty"`
	LastPauseAt        *time.Time        `json:"lastPauseAt,omitempty"`
	Tags               map[string]string `json:"tags"`
}
