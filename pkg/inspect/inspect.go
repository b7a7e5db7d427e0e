// Package inspect dumps a resolved lab as tables, YAML or JSON.
package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/psaab/frrlab/pkg/lab"
	"github.com/psaab/frrlab/pkg/topology"
)

// Report is the serializable view of a lab.
type Report struct {
	Lab      string    `json:"lab" yaml:"lab"`
	Machines []Machine `json:"machines" yaml:"machines"`
	LANs     []LAN     `json:"lans" yaml:"lans"`
	Peering  []Router  `json:"peering,omitempty" yaml:"peering,omitempty"`
	Warnings []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type Machine struct {
	Name       string      `json:"name" yaml:"name"`
	Type       string      `json:"type" yaml:"type"`
	AS         uint32      `json:"as,omitempty" yaml:"as,omitempty"`
	Interfaces []Interface `json:"interfaces" yaml:"interfaces"`
}

type Interface struct {
	Name    string `json:"name" yaml:"name"`
	LAN     string `json:"lan" yaml:"lan"`
	Address string `json:"address" yaml:"address"`
}

type LAN struct {
	ID      string   `json:"id" yaml:"id"`
	Network string   `json:"network" yaml:"network"`
	Members []string `json:"members" yaml:"members"`
}

type Router struct {
	Machine    string     `json:"machine" yaml:"machine"`
	AS         uint32     `json:"as" yaml:"as"`
	Neighbors  []Neighbor `json:"neighbors" yaml:"neighbors"`
	Advertised []string   `json:"advertised" yaml:"advertised"`
}

type Neighbor struct {
	IP       string `json:"ip" yaml:"ip"`
	RemoteAS uint32 `json:"remote_as" yaml:"remote_as"`
	Peer     string `json:"peer" yaml:"peer"`
	LAN      string `json:"lan" yaml:"lan"`
}

// NewReport builds the view of l.
func NewReport(l *lab.Lab) *Report {
	topo := l.Topology
	r := &Report{Lab: l.Name}

	members := make(map[string][]string)
	for _, m := range topo.Machines {
		row := Machine{Name: m.Name, Type: m.TypeString()}
		if as, ok := topo.ASOf(m.Name); ok {
			row.AS = as
		}
		for i, c := range m.Connections {
			addr, err := topo.Address(m, i)
			if err != nil {
				addr = "?"
			}
			row.Interfaces = append(row.Interfaces, Interface{
				Name: topology.Interface(i), LAN: c.LAN, Address: addr,
			})
			members[c.LAN] = append(members[c.LAN], m.Name)
		}
		r.Machines = append(r.Machines, row)
	}

	for _, id := range topo.LANIDs() {
		lan := topo.LAN(id)
		r.LANs = append(r.LANs, LAN{ID: id, Network: lan.CIDR(), Members: members[id]})
	}

	for _, name := range l.Peering.Names() {
		res := l.Peering[name]
		rt := Router{Machine: name, AS: res.AS, Advertised: res.Advertised}
		for _, n := range res.Neighbors {
			rt.Neighbors = append(rt.Neighbors, Neighbor{IP: n.IP, RemoteAS: n.RemoteAS, Peer: n.Peer, LAN: n.LAN})
		}
		r.Peering = append(r.Peering, rt)
	}

	for _, w := range l.Warnings {
		r.Warnings = append(r.Warnings, w.String())
	}
	return r
}

// Formats accepted by Write.
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
	FormatJSON  = "json"
)

// Write renders r to w in the named format.
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "", FormatTable:
		r.WriteTables(w)
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown format %q (want table, yaml or json)", format)
}

// WriteTables prints machines, LANs and peering as aligned tables.
func (r *Report) WriteTables(w io.Writer) {
	MachinesTable(w, r.Machines)
	fmt.Fprintln(w)
	LANsTable(w, r.LANs)
	if len(r.Peering) > 0 {
		fmt.Fprintln(w)
		PeeringTable(w, r.Peering)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

// MachinesTable prints one row per interface.
func MachinesTable(w io.Writer, machines []Machine) {
	var rows [][]string
	for _, m := range machines {
		as := ""
		if m.AS != 0 {
			as = strconv.FormatUint(uint64(m.AS), 10)
		}
		if len(m.Interfaces) == 0 {
			rows = append(rows, []string{m.Name, m.Type, as, "", "", ""})
			continue
		}
		for i, ifc := range m.Interfaces {
			if i == 0 {
				rows = append(rows, []string{m.Name, m.Type, as, ifc.Name, ifc.LAN, ifc.Address})
			} else {
				rows = append(rows, []string{"", "", "", ifc.Name, ifc.LAN, ifc.Address})
			}
		}
	}
	table(w, []string{"MACHINE", "TYPE", "AS", "IFACE", "LAN", "ADDRESS"}, rows)
}

// LANsTable prints the declared LANs and who is attached.
func LANsTable(w io.Writer, lans []LAN) {
	rows := make([][]string, 0, len(lans))
	for _, l := range lans {
		rows = append(rows, []string{l.ID, l.Network, strings.Join(l.Members, ",")})
	}
	table(w, []string{"LAN", "NETWORK", "MEMBERS"}, rows)
}

// PeeringTable prints one row per BGP session end.
func PeeringTable(w io.Writer, routers []Router) {
	var rows [][]string
	for _, rt := range routers {
		as := strconv.FormatUint(uint64(rt.AS), 10)
		adv := strings.Join(rt.Advertised, ",")
		if len(rt.Neighbors) == 0 {
			rows = append(rows, []string{rt.Machine, as, "", "", "", adv})
			continue
		}
		for i, n := range rt.Neighbors {
			row := []string{"", "", n.IP, strconv.FormatUint(uint64(n.RemoteAS), 10), n.Peer, ""}
			if i == 0 {
				row[0], row[1], row[5] = rt.Machine, as, adv
			}
			rows = append(rows, row)
		}
	}
	table(w, []string{"ROUTER", "AS", "NEIGHBOR", "REMOTE AS", "PEER", "ADVERTISED"}, rows)
}

func table(w io.Writer, header []string, rows [][]string) {
	t := tablewriter.NewWriter(w)
	t.SetAutoWrapText(false)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetCenterSeparator("")
	t.SetColumnSeparator("")
	t.SetRowSeparator("")
	t.SetTablePadding("  ")
	t.SetNoWhiteSpace(true)
	t.SetAutoFormatHeaders(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetHeader(header)
	t.AppendBulk(rows)
	t.Render()
}
