package shell

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/psaab/frrlab/pkg/lab"
)

// node is one word of the command tree. dynamic supplies argument values
// (machine names) from the loaded lab.
type node struct {
	desc     string
	children map[string]*node
	dynamic  func(l *lab.Lab) []string
}

func machineNames(l *lab.Lab) []string {
	if l == nil {
		return nil
	}
	names := make([]string, 0, len(l.Topology.Machines))
	for _, m := range l.Topology.Machines {
		names = append(names, m.Name)
	}
	return names
}

func routerNames(l *lab.Lab) []string {
	if l == nil {
		return nil
	}
	var names []string
	for _, m := range l.Topology.Machines {
		if m.RunsFRR() {
			names = append(names, m.Name)
		}
	}
	return names
}

// commands is the single tree used for dispatch help and tab completion.
var commands = map[string]*node{
	"show": {desc: "Show lab information", children: map[string]*node{
		"machines": {desc: "All machines with their interfaces"},
		"lans":     {desc: "Declared LANs and attached machines"},
		"blocks":   {desc: "Blocks with AS and IGP networks"},
		"machine":  {desc: "One machine", dynamic: machineNames},
		"peers":    {desc: "BGP neighbors and advertised networks", dynamic: routerNames},
		"frr":      {desc: "Rendered frr.conf", dynamic: routerNames},
		"daemons":  {desc: "Rendered FRR daemons file", dynamic: routerNames},
		"startup":  {desc: "Rendered startup script", dynamic: machineNames},
		"manifest": {desc: "Rendered lab.conf"},
		"log":      {desc: "Recent warnings and errors"},
	}},
	"reload": {desc: "Parse the lab description again"},
	"help":   {desc: "Show available commands"},
	"exit":   {desc: "Leave the shell"},
	"quit":   {desc: "Leave the shell"},
}

type candidate struct {
	name string
	desc string
}

// complete walks words through the tree and returns what may follow,
// filtered by partial.
func complete(tree map[string]*node, words []string, partial string, l *lab.Lab) []candidate {
	current := tree
	for i, w := range words {
		n, ok := current[w]
		if !ok {
			return nil
		}
		if n.children == nil {
			// Only the single argument right after the keyword completes.
			if n.dynamic == nil || i != len(words)-1 {
				return nil
			}
			var out []candidate
			for _, v := range n.dynamic(l) {
				if strings.HasPrefix(v, partial) {
					out = append(out, candidate{name: v})
				}
			}
			return out
		}
		current = n.children
	}

	var out []candidate
	for name, n := range current {
		if strings.HasPrefix(name, partial) {
			out = append(out, candidate{name: name, desc: n.desc})
		}
	}
	return out
}

// writeHelp prints aligned candidates to w.
func writeHelp(w io.Writer, candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].name < candidates[j].name })
	width := 12
	for _, c := range candidates {
		if len(c.name)+2 > width {
			width = len(c.name) + 2
		}
	}
	fmt.Fprintln(w, "Possible completions:")
	for _, c := range candidates {
		if c.desc != "" {
			fmt.Fprintf(w, "  %-*s %s\n", width, c.name, c.desc)
		} else {
			fmt.Fprintf(w, "  %s\n", c.name)
		}
	}
}

func commonPrefix(items []string) string {
	if len(items) == 0 {
		return ""
	}
	prefix := items[0]
	for _, s := range items[1:] {
		for !strings.HasPrefix(s, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}
