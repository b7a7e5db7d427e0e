// Package shell implements an interactive prompt for exploring a lab
// before it is written.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/psaab/frrlab/pkg/frr"
	"github.com/psaab/frrlab/pkg/inspect"
	"github.com/psaab/frrlab/pkg/lab"
	"github.com/psaab/frrlab/pkg/logging"
	"github.com/psaab/frrlab/pkg/peering"
)

// Config wires a Shell to a loaded lab.
type Config struct {
	Path     string // description file, re-read by "reload"
	Lab      *lab.Lab
	Peering  peering.Options
	Render   lab.Options
	Recorder *logging.Recorder // source of "show log"; may be nil
	History  string            // readline history file; none when empty
	Out      io.Writer         // os.Stdout when nil
}

// Shell is the interactive prompt.
type Shell struct {
	cfg  Config
	lab  *lab.Lab
	tree *lab.Tree // rendered lazily, dropped on reload
	out  io.Writer
	rl   *readline.Instance
}

// New creates a shell over cfg.Lab.
func New(cfg Config) *Shell {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	return &Shell{cfg: cfg, lab: cfg.Lab, out: out}
}

var errExit = errors.New("exit")

// Run reads commands until exit or EOF.
func (s *Shell) Run() error {
	var err error
	s.rl, err = readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		HistoryFile:     s.cfg.History,
		AutoComplete:    &completer{s: s},
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          s.out,
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer s.rl.Close()

	fmt.Fprintf(s.out, "frrlab shell: %s\n", s.lab.Topology.Summary())
	fmt.Fprintln(s.out, "Type 'help' for commands")

	for {
		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := s.dispatch(line); err != nil {
			if err == errExit {
				return nil
			}
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

func (s *Shell) prompt() string {
	return s.lab.Name + "> "
}

func (s *Shell) dispatch(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "show":
		return s.handleShow(parts[1:])
	case "reload":
		return s.reload()
	case "?", "help":
		writeHelp(s.out, complete(commands, nil, "", s.lab))
		return nil
	case "exit", "quit":
		return errExit
	default:
		return fmt.Errorf("unknown command: %s", parts[0])
	}
}

func (s *Shell) handleShow(args []string) error {
	if len(args) == 0 || args[0] == "?" {
		writeHelp(s.out, complete(commands, []string{"show"}, "", s.lab))
		return nil
	}

	report := inspect.NewReport(s.lab)
	switch args[0] {
	case "machines":
		inspect.MachinesTable(s.out, report.Machines)
		return nil
	case "lans":
		inspect.LANsTable(s.out, report.LANs)
		return nil
	case "blocks":
		s.showBlocks()
		return nil
	case "manifest":
		return s.showFile(lab.ManifestName)
	case "log":
		s.showLog()
		return nil
	}

	if len(args) < 2 {
		return fmt.Errorf("show %s: missing machine name", args[0])
	}
	name := args[1]
	m := s.lab.Topology.Machine(name)
	if m == nil {
		return fmt.Errorf("unknown machine %q", name)
	}

	switch args[0] {
	case "machine":
		for _, row := range report.Machines {
			if row.Name == name {
				inspect.MachinesTable(s.out, []inspect.Machine{row})
			}
		}
		return nil
	case "peers":
		return s.showPeers(name)
	case "frr":
		if !m.RunsFRR() {
			return fmt.Errorf("%s does not run FRR", name)
		}
		return s.showFile(path.Join(name, frr.ConfPath))
	case "daemons":
		if !m.RunsFRR() {
			return fmt.Errorf("%s does not run FRR", name)
		}
		return s.showFile(path.Join(name, frr.DaemonsPath))
	case "startup":
		return s.showFile(lab.StartupName(name))
	}
	return fmt.Errorf("unknown show command: %s", args[0])
}

func (s *Shell) showBlocks() {
	for i, b := range s.lab.Topology.Blocks {
		as := "none"
		if b.HasAS {
			as = fmt.Sprintf("%d", b.AS)
		}
		var names []string
		for _, m := range b.Machines {
			names = append(names, m.Name)
		}
		fmt.Fprintf(s.out, "block %d (line %d): AS %s\n", i+1, b.Line, as)
		fmt.Fprintf(s.out, "  machines: %s\n", strings.Join(names, " "))
		for _, n := range b.RIPNetworks {
			fmt.Fprintf(s.out, "  rip network %s\n", n)
		}
		for _, n := range b.OSPFNetworks {
			fmt.Fprintf(s.out, "  ospf network %s area %s\n", n.Network, n.Area)
		}
		for _, n := range b.ManualBGPNetworks {
			fmt.Fprintf(s.out, "  bgp network %s\n", n)
		}
	}
}

func (s *Shell) showPeers(name string) error {
	res := s.lab.Peering[name]
	if res == nil {
		fmt.Fprintf(s.out, "%s has no BGP configuration\n", name)
		return nil
	}
	fmt.Fprintf(s.out, "%s AS %d\n", name, res.AS)
	for _, n := range res.Neighbors {
		kind := "ibgp"
		if n.External(res.AS) {
			kind = "ebgp"
		}
		fmt.Fprintf(s.out, "  %s (%s via %s, %s)\n", n.Statement(), n.Peer, n.LAN, kind)
	}
	for _, n := range res.Advertised {
		fmt.Fprintf(s.out, "  network %s\n", n)
	}
	return nil
}

func (s *Shell) showLog() {
	if s.cfg.Recorder == nil {
		fmt.Fprintln(s.out, "logging is not recorded")
		return
	}
	entries := s.cfg.Recorder.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "no warnings")
		return
	}
	for _, e := range entries {
		fmt.Fprintln(s.out, e.String())
	}
}

func (s *Shell) showFile(rel string) error {
	if s.tree == nil {
		tree, err := s.lab.Render(context.Background(), s.cfg.Render)
		if err != nil {
			return err
		}
		s.tree = tree
	}
	content, ok := s.tree.Get(rel)
	if !ok {
		return fmt.Errorf("%s is not generated", rel)
	}
	fmt.Fprint(s.out, content)
	return nil
}

// reload parses the description again. On error the current lab stays.
func (s *Shell) reload() error {
	if s.cfg.Path == "" {
		return fmt.Errorf("lab was not loaded from a file")
	}
	if s.cfg.Recorder != nil {
		s.cfg.Recorder.Reset()
	}
	l, err := lab.Load(s.cfg.Path, s.cfg.Peering)
	if err != nil {
		return err
	}
	s.lab = l
	s.tree = nil
	if s.rl != nil {
		s.rl.SetPrompt(s.prompt())
	}
	fmt.Fprintf(s.out, "reloaded: %s\n", l.Topology.Summary())
	return nil
}

// completer implements readline.AutoCompleter over the command tree.
type completer struct {
	s *Shell
}

func (c *completer) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])
	words := strings.Fields(text)
	partial := ""
	if len(words) > 0 && !strings.HasSuffix(text, " ") {
		partial = words[len(words)-1]
		words = words[:len(words)-1]
	}

	cands := complete(commands, words, partial, c.s.lab)
	if len(cands) == 0 {
		return nil, 0
	}
	if len(cands) == 1 {
		return [][]rune{[]rune(cands[0].name[len(partial):] + " ")}, len(partial)
	}

	names := make([]string, len(cands))
	for i, cand := range cands {
		names[i] = cand.name
	}
	sort.Strings(names)
	if p := commonPrefix(names); len(p) > len(partial) {
		return [][]rune{[]rune(p[len(partial):])}, len(partial)
	}
	out := make([][]rune, len(names))
	for i, n := range names {
		out[i] = []rune(n[len(partial):])
	}
	return out, len(partial)
}
