package lab

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/psaab/frrlab/pkg/frr"
	"github.com/psaab/frrlab/pkg/peering"
	"github.com/psaab/frrlab/pkg/topology"
)

// Options controls rendering.
type Options struct {
	Image     string // container image for lab.conf
	LogFile   string // FRR log file path written into frr.conf
	IndexHTML string // page for server machines; IndexHTML when empty
	Jobs      int    // concurrent machine renders; GOMAXPROCS when <= 0
}

type file struct {
	path    string
	content string
}

// Build renders every artifact of the lab into memory. Nothing touches the
// filesystem, so an error here leaves no partial lab behind.
func Build(ctx context.Context, root string, topo *topology.Topology, res peering.Results, opts Options) (*Tree, error) {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Each machine writes only its own slot, so output order never depends
	// on scheduling.
	slots := make([][]file, len(topo.Machines))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, m := range topo.Machines {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			files, err := renderMachine(topo, m, res[m.Name], opts)
			if err != nil {
				return fmt.Errorf("render %s: %w", m.Name, err)
			}
			slots[i] = files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tree := NewTree(root)
	for _, files := range slots {
		for _, f := range files {
			tree.Add(f.path, f.content)
		}
	}
	tree.Add(ManifestName, Manifest(topo.Machines, opts.Image))

	slog.Debug("lab rendered", "root", root, "files", tree.Len(), "jobs", jobs)
	return tree, nil
}

func renderMachine(topo *topology.Topology, m *topology.Machine, bgp *peering.Result, opts Options) ([]file, error) {
	var files []file

	if m.RunsFRR() {
		files = append(files,
			file{path.Join(m.Name, frr.DaemonsPath), frr.Daemons(m.Kind, m.HasBGP)},
			file{path.Join(m.Name, frr.ConfPath), frr.Config(&frr.ConfigInput{
				Machine: m,
				Block:   topo.BlockOf(m.Name),
				BGP:     bgp,
				LogFile: opts.LogFile,
			})},
		)
	}
	if m.Kind == topology.KindServer {
		page := opts.IndexHTML
		if page == "" {
			page = IndexHTML
		}
		files = append(files, file{path.Join(m.Name, IndexPath), page})
	}

	startup, err := Startup(topo, m)
	if err != nil {
		return nil, err
	}
	files = append(files, file{StartupName(m.Name), startup})
	return files, nil
}
