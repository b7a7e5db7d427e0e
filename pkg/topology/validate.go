package topology

import (
	"fmt"
	"net/netip"

	"go4.org/netipx"
)

// Warning is a non-fatal finding about a parsed topology.
type Warning struct {
	Line    int
	Message string
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s", w.Line, w.Message)
	}
	return w.Message
}

// Check reports suspicious but legal constructs such as overlapping or unused
// LANs, host addresses outside their LAN or assigned twice, and BGP machines
// without an AS.
func (t *Topology) Check() []Warning {
	var warns []Warning

	prefixes := make(map[string]netip.Prefix, len(t.LANs))
	var sb netipx.IPSetBuilder
	for _, id := range t.LANIDs() {
		lan := t.LANs[id]
		pfx, err := netip.ParsePrefix(lan.CIDR())
		if err != nil {
			continue
		}
		if pfx.Masked() != pfx {
			warns = append(warns, Warning{Line: lan.Line,
				Message: fmt.Sprintf("LAN %s network %s has host bits set", id, lan.CIDR())})
		}
		pfx = pfx.Masked()
		set, err := sb.IPSet()
		if err == nil && set.OverlapsPrefix(pfx) {
			for _, other := range t.LANIDs() {
				if o, ok := prefixes[other]; ok && o.Overlaps(pfx) {
					warns = append(warns, Warning{Line: lan.Line,
						Message: fmt.Sprintf("LAN %s (%s) overlaps LAN %s (%s)", id, pfx, other, o)})
				}
			}
		}
		sb.AddPrefix(pfx)
		prefixes[id] = pfx
	}

	used := make(map[string]bool)
	owners := make(map[netip.Addr]string)
	for _, m := range t.Machines {
		for i, c := range m.Connections {
			used[c.LAN] = true
			pfx, ok := prefixes[c.LAN]
			if !ok {
				continue
			}
			ip, err := netip.ParseAddr(t.LANs[c.LAN].HostIP(c.Octet))
			switch {
			case err != nil || !pfx.Contains(ip):
				warns = append(warns, Warning{Line: m.Line,
					Message: fmt.Sprintf("%s %s: octet %d falls outside LAN %s (%s)", m.Name, Interface(i), c.Octet, c.LAN, pfx)})
			case pfx.Bits() < 31 && (ip == pfx.Addr() || ip == netipx.PrefixLastIP(pfx)):
				warns = append(warns, Warning{Line: m.Line,
					Message: fmt.Sprintf("%s %s: %s is the network or broadcast address of LAN %s", m.Name, Interface(i), ip, c.LAN)})
			}
			if err != nil {
				continue
			}
			iface := m.Name + " " + Interface(i)
			if other, ok := owners[ip]; ok {
				warns = append(warns, Warning{Line: m.Line,
					Message: fmt.Sprintf("%s: address %s on LAN %s is also used by %s", iface, ip, c.LAN, other)})
				continue
			}
			owners[ip] = iface
		}
		if m.HasBGP {
			if _, ok := t.ASOf(m.Name); !ok {
				warns = append(warns, Warning{Line: m.Line,
					Message: fmt.Sprintf("%s has BGP enabled but its block declares no AS; no BGP session will be generated", m.Name)})
			}
		}
	}

	for _, id := range t.LANIDs() {
		if !used[id] {
			warns = append(warns, Warning{Line: t.LANs[id].Line,
				Message: fmt.Sprintf("LAN %s is declared but no machine connects to it", id)})
		}
	}
	return warns
}
