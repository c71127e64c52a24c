package handlers

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mhrivnak/vcompute/pkg/compute"
	"github.com/mhrivnak/vcompute/pkg/network"
	"github.com/mhrivnak/vcompute/pkg/products"
)

// Products prints the product catalog. Every product is offered for every
// architecture and the catalog is static, so no session is opened.
func Products(opts Options, arch string, out io.Writer) error {
	switch compute.Architecture(strings.ToUpper(arch)) {
	case "", compute.ArchitectureI32, compute.ArchitectureI64:
	default:
		return fmt.Errorf("unknown architecture %q: use I32 or I64", arch)
	}

	list := products.Default().List()
	return render(out, opts.Output, list, func() error {
		t := newTable(out, "ID", "NAME", "CPUS", "RAM (MB)", "DISK (GB)")
		for _, p := range list {
			t.row(p.ID, p.Name, strconv.Itoa(p.CPUCount), strconv.Itoa(p.RAMMB), strconv.Itoa(p.DiskGB))
		}
		return t.flush()
	})
}

// Networks prints the organization networks, or one network when id is set
func Networks(ctx context.Context, opts Options, id string, out io.Writer) error {
	svc, err := newServices(ctx, opts)
	if err != nil {
		return err
	}

	var vlans []network.VLAN
	if id != "" {
		vlan, err := svc.Networks.GetVLAN(ctx, id)
		if err != nil {
			return err
		}
		vlans = []network.VLAN{*vlan}
	} else if vlans, err = svc.Networks.ListVLANs(ctx); err != nil {
		return err
	}
	if vlans == nil {
		vlans = []network.VLAN{}
	}

	return render(out, opts.Output, vlans, func() error {
		t := newTable(out, "ID", "NAME", "CIDR", "GATEWAY", "DNS", "OWNER")
		for _, v := range vlans {
			t.row(v.ID, v.Name, v.CIDR, v.Gateway, strings.Join(v.DNSServers, ","), v.OwnerID)
		}
		return t.flush()
	})
}

// Interfaces prints the network interfaces of a VM
func Interfaces(ctx context.Context, opts Options, vmID string, out io.Writer) error {
	svc, err := newServices(ctx, opts)
	if err != nil {
		return err
	}

	nics, err := svc.Networks.ListNetworkInterfaces(ctx, vmID)
	if err != nil {
		return err
	}
	if nics == nil {
		nics = []network.NetworkInterface{}
	}

	return render(out, opts.Output, nics, func() error {
		t := newTable(out, "INDEX", "MAC", "IP", "NETWORK", "DEFAULT")
		for _, n := range nics {
			t.row(strconv.Itoa(n.Index), n.ID, n.IPAddress, n.VLANID, strconv.FormatBool(n.DefaultRoute))
		}
		return t.flush()
	})
}
