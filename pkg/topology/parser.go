package topology

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"
)

// mode is the section the scanner is currently in.
type mode int

const (
	modeMachines mode = iota
	modeRIP
	modeOSPF
	modeAS
	modeLAN
)

func (m mode) String() string {
	switch m {
	case modeMachines:
		return "machines"
	case modeRIP:
		return "rip"
	case modeOSPF:
		return "ospf"
	case modeAS:
		return "as"
	case modeLAN:
		return "lan"
	default:
		return "unknown"
	}
}

// state is threaded through every step of the parser.
type state struct {
	mode  mode
	block *Block
	// asPending is set by a bare "as" line: the next line in as mode is
	// the AS number rather than a network.
	asPending bool
}

// parser accumulates the global tables. Per-block context lives in state.
type parser struct {
	topo    *Topology
	sources map[string]line // machine name -> defining line
}

// ParseFile reads and parses a lab description from disk.
func ParseFile(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lab description: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// ParseString parses a lab description held in memory.
func ParseString(input string) (*Topology, error) {
	return Parse(strings.NewReader(input))
}

// Parse reads a complete lab description. The first malformed line aborts
// parsing; no partial topology is returned.
func Parse(r io.Reader) (*Topology, error) {
	p := &parser{
		topo:    &Topology{LANs: make(map[string]*LAN)},
		sources: make(map[string]line),
	}

	st := state{mode: modeMachines, block: &Block{}}
	sc := NewScanner(r)
	for sc.Next() {
		num, text := sc.Line()
		var err error
		st, err = p.step(st, line{num: num, text: text})
		if err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lab description: %w", err)
	}
	p.closeBlock(st.block)

	if err := p.resolveReferences(); err != nil {
		return nil, err
	}
	p.topo.index()
	return p.topo, nil
}

// step consumes one line and returns the next state.
func (p *parser) step(st state, ln line) (state, error) {
	text := ln.text

	if isMachineLine(text) {
		if (st.mode == modeRIP || st.mode == modeOSPF || st.mode == modeAS) && len(st.block.Machines) > 0 {
			p.closeBlock(st.block)
			st.block = &Block{}
		}
		st.mode = modeMachines
		st.asPending = false
		return st, p.machine(st.block, ln)
	}

	switch text {
	case "rip":
		st.mode = modeRIP
		return st, nil
	case "ospf":
		st.mode = modeOSPF
		return st, nil
	case "lan":
		st.mode = modeLAN
		return st, nil
	}

	if isASLine(text) {
		st.mode = modeAS
		rest := strings.TrimSpace(text[len("as"):])
		if rest == "" {
			st.asPending = true
			return st, nil
		}
		st.asPending = false
		return st, p.setAS(st.block, ln, rest)
	}

	switch st.mode {
	case modeMachines:
		// Not machine shaped, so it can only be malformed.
		return st, p.machine(st.block, ln)
	case modeRIP:
		cidr, err := parseNetwork(ln, text)
		if err != nil {
			return st, err
		}
		markBlock(st.block, ln)
		st.block.RIPNetworks = appendUnique(st.block.RIPNetworks, cidr)
		return st, nil
	case modeOSPF:
		return st, p.ospf(st.block, ln)
	case modeAS:
		if st.asPending {
			st.asPending = false
			return st, p.setAS(st.block, ln, text)
		}
		cidr, err := parseNetwork(ln, text)
		if err != nil {
			return st, err
		}
		markBlock(st.block, ln)
		st.block.ManualBGPNetworks = appendUnique(st.block.ManualBGPNetworks, cidr)
		return st, nil
	case modeLAN:
		return st, p.lan(ln)
	default:
		return st, lineError(ErrUnknownMode, ln, "", "mode %d", int(st.mode))
	}
}

// isMachineLine reports whether text has the name:type:connSpec shape.
func isMachineLine(text string) bool {
	parts := strings.Split(text, ":")
	return len(parts) == 3 && strings.Contains(parts[2], ".")
}

// isASLine reports whether text starts with the "as" token.
func isASLine(text string) bool {
	return strings.HasPrefix(text, "as") && !strings.Contains(text, ":")
}

func markBlock(b *Block, ln line) {
	if b.Line == 0 {
		b.Line = ln.num
	}
}

func (p *parser) closeBlock(b *Block) {
	if b.empty() {
		return
	}
	p.topo.Blocks = append(p.topo.Blocks, b)
}

func (p *parser) machine(b *Block, ln line) error {
	parts := strings.Split(ln.text, ":")
	if len(parts) != 3 {
		return lineError(ErrMalformedMachineLine, ln, shapeMachine, "want 3 ':'-separated fields, got %d", len(parts))
	}
	name, typeTok, connSpec := parts[0], parts[1], parts[2]
	if name == "" || strings.ContainsAny(name, " \t/") {
		return lineError(ErrMalformedMachineLine, ln, shapeMachine, "invalid machine name %q", name)
	}
	if prev, ok := p.sources[name]; ok {
		return lineError(ErrDuplicateMachineName, ln, "", "%q already defined on line %d", name, prev.num)
	}

	kind, hasBGP, err := parseType(typeTok)
	if err != nil {
		return lineError(ErrMalformedMachineLine, ln, shapeMachine, "%v", err)
	}

	lanChars, octetSpec, ok := strings.Cut(connSpec, ".")
	if !ok || lanChars == "" {
		return lineError(ErrMalformedMachineLine, ln, shapeMachine, "missing LAN ids")
	}
	lans := []rune(lanChars)
	octets := strings.Split(octetSpec, ".")
	if len(lans) != len(octets) {
		return lineError(ErrMalformedMachineLine, ln, shapeMachine,
			"%d LAN ids but %d octets", len(lans), len(octets))
	}

	m := &Machine{Name: name, Kind: kind, HasBGP: hasBGP, Line: ln.num}
	for i, id := range lans {
		o, err := strconv.Atoi(octets[i])
		if err != nil || o < 0 || o > 255 {
			return lineError(ErrMalformedMachineLine, ln, shapeMachine, "bad octet %q for LAN %c", octets[i], id)
		}
		m.Connections = append(m.Connections, Connection{LAN: string(id), Octet: o})
	}

	markBlock(b, ln)
	b.Machines = append(b.Machines, m)
	p.topo.Machines = append(p.topo.Machines, m)
	p.sources[name] = ln
	return nil
}

// parseType splits a type token into its base kind and the BGP flag.
func parseType(tok string) (Kind, bool, error) {
	base, hasBGP := strings.CutSuffix(tok, "+bgp")
	if base == "bgp" {
		hasBGP = true
	}
	kind, ok := ParseKind(base)
	if !ok {
		return 0, false, fmt.Errorf("unknown machine type %q", tok)
	}
	return kind, hasBGP, nil
}

func (p *parser) setAS(b *Block, ln line, s string) error {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || n == 0 {
		return lineError(ErrMalformedAsLine, ln, shapeAs, "invalid AS number %q", s)
	}
	if b.HasAS && b.AS != uint32(n) {
		return lineError(ErrMalformedAsLine, ln, shapeAs, "block already in AS %d", b.AS)
	}
	markBlock(b, ln)
	b.AS = uint32(n)
	b.HasAS = true
	return nil
}

func (p *parser) ospf(b *Block, ln line) error {
	fields := strings.Fields(ln.text)
	if len(fields) != 2 {
		return lineError(ErrMalformedOspfLine, ln, shapeOspf, "want 2 fields, got %d", len(fields))
	}
	if _, err := netip.ParsePrefix(fields[0]); err != nil {
		return lineError(ErrMalformedOspfLine, ln, shapeOspf, "bad network %q", fields[0])
	}
	markBlock(b, ln)
	b.OSPFNetworks = append(b.OSPFNetworks, OSPFNetwork{Network: fields[0], Area: fields[1]})
	return nil
}

func (p *parser) lan(ln line) error {
	id, spec, ok := strings.Cut(ln.text, ":")
	if !ok || id == "" || strings.ContainsAny(id, " \t") {
		return lineError(ErrMalformedLanLine, ln, shapeLan, "missing LAN id")
	}
	network, maskStr, ok := strings.Cut(spec, "/")
	if !ok {
		return lineError(ErrMalformedLanLine, ln, shapeLan, "missing prefix length")
	}
	addr, err := netip.ParseAddr(network)
	if err != nil || !addr.Is4() {
		return lineError(ErrMalformedLanLine, ln, shapeLan, "bad IPv4 network %q", network)
	}
	mask, err := strconv.Atoi(maskStr)
	if err != nil || mask < 0 || mask > 32 {
		return lineError(ErrMalformedLanLine, ln, shapeLan, "bad prefix length %q", maskStr)
	}
	if prev, ok := p.topo.LANs[id]; ok {
		return lineError(ErrDuplicateLan, ln, "", "LAN %q already defined on line %d", id, prev.Line)
	}

	octets := addr.As4()
	p.topo.LANs[id] = &LAN{
		ID:      id,
		Network: network,
		Prefix:  fmt.Sprintf("%d.%d.%d", octets[0], octets[1], octets[2]),
		Base:    int(octets[3]),
		Mask:    mask,
		Line:    ln.num,
	}
	return nil
}

func parseNetwork(ln line, text string) (string, error) {
	if strings.ContainsAny(text, " \t") {
		return "", lineError(ErrMalformedNetwork, ln, shapeNetwork, "one network per line")
	}
	pfx, err := netip.ParsePrefix(text)
	if err != nil || !pfx.Addr().Is4() {
		return "", lineError(ErrMalformedNetwork, ln, shapeNetwork, "bad IPv4 prefix %q", text)
	}
	return text, nil
}

// resolveReferences checks that every connection names a declared LAN.
func (p *parser) resolveReferences() error {
	for _, m := range p.topo.Machines {
		for i, c := range m.Connections {
			if _, ok := p.topo.LANs[c.LAN]; !ok {
				return lineError(ErrUnresolvedLanReference, p.sources[m.Name], "",
					"%s connection %d names undeclared LAN %q", m.Name, i, c.LAN)
			}
		}
	}
	return nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
