// Package topology implements the lab description parser and data model.
package topology

import (
	"fmt"
	"sort"
	"strconv"
)

// Kind is the base role of a machine, independent of BGP.
type Kind int

const (
	KindHost   Kind = iota // plain end host
	KindRIP                // RIP router
	KindOSPF               // OSPF router
	KindBoth               // RIP and OSPF router
	KindBGP                // BGP-only router
	KindServer             // web server
)

var kindNames = map[Kind]string{
	KindHost:   "host",
	KindRIP:    "rip",
	KindOSPF:   "ospf",
	KindBoth:   "both",
	KindBGP:    "bgp",
	KindServer: "server",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind maps a type token (without any +bgp suffix) to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// RunsRIP reports whether the RIP daemon is enabled for this kind.
func (k Kind) RunsRIP() bool { return k == KindRIP || k == KindBoth }

// RunsOSPF reports whether the OSPF daemon is enabled for this kind.
func (k Kind) RunsOSPF() bool { return k == KindOSPF || k == KindBoth }

// IsRouter is true for kinds that always run FRR.
func (k Kind) IsRouter() bool {
	return k == KindRIP || k == KindOSPF || k == KindBoth || k == KindBGP
}

// Connection attaches a machine interface to a LAN. The index of a
// connection in Machine.Connections is its interface number.
type Connection struct {
	LAN   string
	Octet int
}

// Machine is a single lab node.
type Machine struct {
	Name        string
	Kind        Kind
	HasBGP      bool
	Connections []Connection

	// Line is the source line of the definition (for error reporting).
	Line int
}

// TypeString returns the type token as written in the description,
// e.g. "ospf+bgp" or "bgp".
func (m *Machine) TypeString() string {
	if m.HasBGP && m.Kind != KindBGP {
		return m.Kind.String() + "+bgp"
	}
	return m.Kind.String()
}

// RunsFRR reports whether the machine needs FRR configuration.
func (m *Machine) RunsFRR() bool {
	return m.Kind.IsRouter() || m.HasBGP
}

// Interface returns the interface name for connection index i.
func Interface(i int) string {
	return "eth" + strconv.Itoa(i)
}

// LAN is a broadcast segment. Host addresses are Prefix.(Base+octet).
type LAN struct {
	ID      string
	Network string // dotted network address as written, e.g. "10.0.0.0"
	Prefix  string // first three octets, e.g. "10.0.0"
	Base    int    // last octet of Network
	Mask    int

	Line int
}

// CIDR returns the LAN's network in network/mask form.
func (l *LAN) CIDR() string {
	return l.Network + "/" + strconv.Itoa(l.Mask)
}

// HostIP returns the address a connection with the given octet gets on this LAN.
func (l *LAN) HostIP(octet int) string {
	return l.Prefix + "." + strconv.Itoa(l.Base+octet)
}

// OSPFNetwork is a "network X area Y" entry.
type OSPFNetwork struct {
	Network string
	Area    string
}

// Block groups machines sharing AS and IGP context.
type Block struct {
	AS    uint32
	HasAS bool

	ManualBGPNetworks []string
	RIPNetworks       []string
	OSPFNetworks      []OSPFNetwork
	Machines          []*Machine

	// Line is where the block's first directive appeared.
	Line int
}

func (b *Block) empty() bool {
	return len(b.Machines) == 0 && !b.HasAS && len(b.ManualBGPNetworks) == 0 &&
		len(b.RIPNetworks) == 0 && len(b.OSPFNetworks) == 0
}

// Topology is the parsed lab description.
type Topology struct {
	Machines []*Machine
	Blocks   []*Block
	LANs     map[string]*LAN

	byName  map[string]*Machine
	blockOf map[string]*Block
}

// Machine looks up a machine by name.
func (t *Topology) Machine(name string) *Machine {
	return t.byName[name]
}

// BlockOf returns the block a machine belongs to.
func (t *Topology) BlockOf(name string) *Block {
	return t.blockOf[name]
}

// ASOf returns the AS number of the machine's block, if that block has one.
func (t *Topology) ASOf(name string) (uint32, bool) {
	b := t.blockOf[name]
	if b == nil || !b.HasAS {
		return 0, false
	}
	return b.AS, true
}

// LAN looks up a LAN by id.
func (t *Topology) LAN(id string) *LAN {
	return t.LANs[id]
}

// LANIDs returns the LAN ids in sorted order.
func (t *Topology) LANIDs() []string {
	ids := make([]string, 0, len(t.LANs))
	for id := range t.LANs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Address returns "ip/mask" for connection i of machine m.
func (t *Topology) Address(m *Machine, i int) (string, error) {
	if i < 0 || i >= len(m.Connections) {
		return "", fmt.Errorf("%s has no connection %d", m.Name, i)
	}
	c := m.Connections[i]
	lan := t.LANs[c.LAN]
	if lan == nil {
		return "", fmt.Errorf("%s: LAN %q not declared", m.Name, c.LAN)
	}
	return lan.HostIP(c.Octet) + "/" + strconv.Itoa(lan.Mask), nil
}

// index builds the derived lookup maps. Called once after parsing.
func (t *Topology) index() {
	t.byName = make(map[string]*Machine, len(t.Machines))
	for _, m := range t.Machines {
		t.byName[m.Name] = m
	}
	t.blockOf = make(map[string]*Block, len(t.Machines))
	for _, b := range t.Blocks {
		for _, m := range b.Machines {
			t.blockOf[m.Name] = b
		}
	}
}

// Summary is a short human readable description used in logs.
func (t *Topology) Summary() string {
	return fmt.Sprintf("%d machines in %d blocks, %d LANs", len(t.Machines), len(t.Blocks), len(t.LANs))
}
