package lab

import (
	"context"
	"log/slog"
	"time"

	"github.com/psaab/frrlab/pkg/peering"
	"github.com/psaab/frrlab/pkg/topology"
)

// Lab is a parsed and resolved lab description.
type Lab struct {
	Name     string
	Topology *topology.Topology
	Peering  peering.Results
	Warnings []topology.Warning
}

// Load parses the description at path and resolves BGP peering.
// Warnings are logged and kept on the returned Lab.
func Load(path string, popts peering.Options) (*Lab, error) {
	topo, err := topology.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return newLab(RootName(path), topo, popts), nil
}

// FromTopology resolves an already parsed topology.
func FromTopology(name string, topo *topology.Topology, popts peering.Options) *Lab {
	return newLab(name, topo, popts)
}

func newLab(name string, topo *topology.Topology, popts peering.Options) *Lab {
	l := &Lab{
		Name:     name,
		Topology: topo,
		Peering:  peering.Resolve(topo, popts),
		Warnings: topo.Check(),
	}
	for _, w := range l.Warnings {
		slog.Warn("lab description", "lab", name, "line", w.Line, "msg", w.Message)
	}
	slog.Info("lab loaded", "lab", name, "summary", topo.Summary(),
		"bgp_routers", len(l.Peering), "bgp_sessions", l.Peering.Sessions(),
		"advertise", popts.Advertise.String())
	return l
}

// Render builds the lab tree in memory.
func (l *Lab) Render(ctx context.Context, opts Options) (*Tree, error) {
	return Build(ctx, l.Name, l.Topology, l.Peering, opts)
}

// Stats summarizes one generation run.
type Stats struct {
	Machines    int
	Blocks      int
	LANs        int
	BGPRouters  int
	BGPSessions int
	Warnings    int
	Files       int
	Bytes       int
	Duration    time.Duration
	ByKind      map[string]int
}

// NewStats collects counters for a rendered lab.
func NewStats(l *Lab, tree *Tree, d time.Duration) *Stats {
	s := &Stats{
		Machines:    len(l.Topology.Machines),
		Blocks:      len(l.Topology.Blocks),
		LANs:        len(l.Topology.LANs),
		BGPRouters:  len(l.Peering),
		BGPSessions: l.Peering.Sessions(),
		Warnings:    len(l.Warnings),
		Duration:    d,
		ByKind:      make(map[string]int),
	}
	for _, m := range l.Topology.Machines {
		s.ByKind[m.Kind.String()]++
	}
	if tree != nil {
		s.Files = tree.Len()
		s.Bytes = tree.Bytes()
	}
	return s
}
