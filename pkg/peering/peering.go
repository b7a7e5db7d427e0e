// Package peering infers BGP sessions and advertised networks from LAN
// co-location and AS grouping.
package peering

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/psaab/frrlab/pkg/topology"
)

// AdvertiseMode selects which shared LANs a router announces.
type AdvertiseMode int

const (
	// AdvertiseInterAS announces a shared LAN only when the peer on it is in
	// a different AS. Networks shared with iBGP peers are already reachable
	// through the AS's IGP.
	AdvertiseInterAS AdvertiseMode = iota
	// AdvertiseAllShared announces every LAN shared with any BGP peer.
	AdvertiseAllShared
)

func (m AdvertiseMode) String() string {
	switch m {
	case AdvertiseInterAS:
		return "inter-as"
	case AdvertiseAllShared:
		return "all-shared"
	default:
		return "unknown"
	}
}

// ParseAdvertiseMode parses the flag/config spelling of a mode.
func ParseAdvertiseMode(s string) (AdvertiseMode, error) {
	switch s {
	case "", "inter-as":
		return AdvertiseInterAS, nil
	case "all-shared":
		return AdvertiseAllShared, nil
	default:
		return 0, fmt.Errorf("unknown advertise mode %q (want inter-as or all-shared)", s)
	}
}

// Options tunes resolution.
type Options struct {
	Advertise AdvertiseMode
}

// Neighbor is one BGP session endpoint as seen from the local router.
type Neighbor struct {
	IP       string
	RemoteAS uint32
	Peer     string // machine name of the remote router
	LAN      string // first shared LAN the session was inferred from
}

// Statement returns the FRR neighbor statement for n.
func (n Neighbor) Statement() string {
	return "neighbor " + n.IP + " remote-as " + strconv.FormatUint(uint64(n.RemoteAS), 10)
}

// External reports whether the session crosses an AS boundary.
func (n Neighbor) External(localAS uint32) bool {
	return n.RemoteAS != localAS
}

// Result is the resolved BGP configuration of one router.
type Result struct {
	Machine    string
	AS         uint32
	Neighbors  []Neighbor // sorted by Statement
	Advertised []string   // sorted CIDR strings
}

// Results maps machine name to its resolved peering. Machines without BGP,
// or with BGP in a block that declares no AS, have no entry.
type Results map[string]*Result

// Sessions counts distinct BGP sessions (each session is seen from both ends).
func (r Results) Sessions() int {
	n := 0
	for _, res := range r {
		n += len(res.Neighbors)
	}
	return n / 2
}

// Names returns the resolved machine names in sorted order.
func (r Results) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve computes neighbors and advertisements for every BGP router.
func Resolve(topo *topology.Topology, opts Options) Results {
	results := make(Results)
	for _, m := range topo.Machines {
		if res := resolveMachine(topo, m, opts); res != nil {
			results[m.Name] = res
		}
	}
	return results
}

// ResolveMachine resolves a single router. It returns nil when the machine
// does not take part in BGP.
func ResolveMachine(topo *topology.Topology, name string, opts Options) *Result {
	m := topo.Machine(name)
	if m == nil {
		return nil
	}
	return resolveMachine(topo, m, opts)
}

func resolveMachine(topo *topology.Topology, m *topology.Machine, opts Options) *Result {
	if !m.HasBGP {
		return nil
	}
	localAS, ok := topo.ASOf(m.Name)
	if !ok {
		return nil
	}

	advertised := make(map[string]struct{})
	for _, n := range topo.BlockOf(m.Name).ManualBGPNetworks {
		advertised[n] = struct{}{}
	}

	// One session per peer router: when two routers share several LANs the
	// address on the first shared LAN (in local connection order) is used.
	// Two peers that end up with the same address and AS still render a
	// single neighbor line.
	seen := make(map[string]bool)
	statements := make(map[string]bool)
	var neighbors []Neighbor
	for _, p := range topo.Machines {
		if p == m || !p.HasBGP {
			continue
		}
		peerAS, ok := topo.ASOf(p.Name)
		if !ok {
			continue
		}
		for _, cm := range m.Connections {
			for _, cp := range p.Connections {
				if cm.LAN != cp.LAN {
					continue
				}
				lan := topo.LAN(cm.LAN)
				if lan == nil {
					continue
				}
				if !seen[p.Name] {
					seen[p.Name] = true
					n := Neighbor{
						IP:       lan.HostIP(cp.Octet),
						RemoteAS: peerAS,
						Peer:     p.Name,
						LAN:      lan.ID,
					}
					if !statements[n.Statement()] {
						statements[n.Statement()] = true
						neighbors = append(neighbors, n)
					}
				}
				if peerAS != localAS || opts.Advertise == AdvertiseAllShared {
					advertised[lan.CIDR()] = struct{}{}
				}
			}
		}
	}

	sort.Slice(neighbors, func(i, j int) bool {
		si, sj := neighbors[i].Statement(), neighbors[j].Statement()
		if si != sj {
			return si < sj
		}
		return neighbors[i].Peer < neighbors[j].Peer
	})
	nets := make([]string, 0, len(advertised))
	for n := range advertised {
		nets = append(nets, n)
	}
	sort.Strings(nets)

	return &Result{
		Machine:    m.Name,
		AS:         localAS,
		Neighbors:  neighbors,
		Advertised: nets,
	}
}
