// Package ifaddr configures a lab machine's interface addresses from inside
// its container, doing what the startup script's "ip address add" lines do.
package ifaddr

import (
	"fmt"
	"log/slog"

	"github.com/vishvananda/netlink"

	"github.com/psaab/frrlab/pkg/topology"
)

// Netlink is the subset of *netlink.Handle used here.
type Netlink interface {
	LinkByName(name string) (netlink.Link, error)
	AddrReplace(link netlink.Link, addr *netlink.Addr) error
	LinkSetUp(link netlink.Link) error
}

// Assignment is one address for one interface.
type Assignment struct {
	Interface string
	LAN       string
	Addr      *netlink.Addr
}

func (a Assignment) String() string {
	return fmt.Sprintf("%s %s (LAN %s)", a.Interface, a.Addr.IPNet, a.LAN)
}

// Plan computes the addresses machine m gets, in interface order.
func Plan(topo *topology.Topology, m *topology.Machine) ([]Assignment, error) {
	plan := make([]Assignment, 0, len(m.Connections))
	for i, c := range m.Connections {
		cidr, err := topo.Address(m, i)
		if err != nil {
			return nil, err
		}
		addr, err := netlink.ParseAddr(cidr)
		if err != nil {
			return nil, fmt.Errorf("%s %s: invalid address %s: %w", m.Name, topology.Interface(i), cidr, err)
		}
		plan = append(plan, Assignment{Interface: topology.Interface(i), LAN: c.LAN, Addr: addr})
	}
	return plan, nil
}

// Apply brings each interface up and sets its address. AddrReplace keeps
// repeated runs idempotent.
func Apply(nl Netlink, plan []Assignment) error {
	for _, a := range plan {
		link, err := nl.LinkByName(a.Interface)
		if err != nil {
			return fmt.Errorf("find %s: %w", a.Interface, err)
		}
		if err := nl.AddrReplace(link, a.Addr); err != nil {
			return fmt.Errorf("set %s on %s: %w", a.Addr.IPNet, a.Interface, err)
		}
		if err := nl.LinkSetUp(link); err != nil {
			return fmt.Errorf("bring up %s: %w", a.Interface, err)
		}
		slog.Info("ifaddr: address set", "iface", a.Interface, "addr", a.Addr.IPNet.String(), "lan", a.LAN)
	}
	return nil
}

// NewHandle opens a netlink handle in the current network namespace.
func NewHandle() (*netlink.Handle, error) {
	h, err := netlink.NewHandle()
	if err != nil {
		return nil, fmt.Errorf("netlink handle: %w", err)
	}
	return h, nil
}
