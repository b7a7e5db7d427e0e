package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/psaab/frrlab/pkg/frr"
	"github.com/psaab/frrlab/pkg/ifaddr"
	"github.com/psaab/frrlab/pkg/inspect"
	"github.com/psaab/frrlab/pkg/lab"
	"github.com/psaab/frrlab/pkg/logging"
	"github.com/psaab/frrlab/pkg/metrics"
	"github.com/psaab/frrlab/pkg/peering"
	"github.com/psaab/frrlab/pkg/settings"
	"github.com/psaab/frrlab/pkg/shell"
)

var (
	errDrift        = errors.New("lab on disk differs from the description")
	errSessionsDown = errors.New("expected BGP sessions are not established")
)

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "frrlab [file]",
		Short: "Generate Kathara FRR labs from a compact description",
		Long: "frrlab reads a lab description (machines, LANs, RIP/OSPF networks and AS\n" +
			"blocks) and writes a Kathara lab: lab.conf, startup scripts and FRR\n" +
			"configuration with BGP sessions inferred from shared LANs.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.generate(cmd.Context(), args[0])
		},
	}
	settings.AddGlobalFlags(root.PersistentFlags())
	settings.AddFlags(root.Flags())

	root.AddCommand(
		a.generateCmd(),
		a.checkCmd(),
		a.inspectCmd(),
		a.shellCmd(),
		a.applyCmd(),
		a.verifyCmd(),
	)
	return root
}

// setup merges settings and installs logging before any command runs.
func (a *app) setup(cmd *cobra.Command) error {
	s, err := settings.Load(a.v, cmd.Flags())
	if err != nil {
		return err
	}
	opts := s.LogOptions()
	opts.Output = a.stderr
	rec, err := logging.Setup(opts)
	if err != nil {
		return err
	}
	a.settings = s
	a.rec = rec
	return nil
}

func (a *app) generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Write the lab directory for a description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generate(cmd.Context(), args[0])
		},
	}
	settings.AddFlags(cmd.Flags())
	return cmd
}

func (a *app) load(path string) (*lab.Lab, error) {
	return lab.Load(path, a.settings.PeeringOptions())
}

func (a *app) generate(ctx context.Context, path string) error {
	start := time.Now()
	l, err := a.load(path)
	if err != nil {
		return err
	}
	tree, err := l.Render(ctx, a.settings.RenderOptions())
	if err != nil {
		return err
	}

	w := &lab.Writer{Fs: a.fs, Clean: a.settings.Clean}
	root, err := w.Write(a.settings.Output, tree)
	if err != nil {
		return err
	}

	stats := lab.NewStats(l, tree, time.Since(start))
	if a.settings.MetricsFile != "" {
		if err := metrics.WriteFile(a.settings.MetricsFile, l.Name, stats); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.stdout, "%s: %d machines, %d BGP sessions, %d files written to %s\n",
		l.Name, stats.Machines, stats.BGPSessions, stats.Files, root)
	return nil
}

func (a *app) checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Compare the lab on disk with what the description generates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.load(args[0])
			if err != nil {
				return err
			}
			tree, err := l.Render(cmd.Context(), a.settings.RenderOptions())
			if err != nil {
				return err
			}
			diffs, err := lab.Diff(a.fs, a.settings.Output, tree)
			if err != nil {
				return err
			}
			root := filepath.Join(a.settings.Output, tree.Root)
			if len(diffs) == 0 {
				fmt.Fprintf(a.stdout, "%s is up to date\n", root)
				return nil
			}
			a.printDiffs(diffs)
			fmt.Fprintf(a.stdout, "%s: %d files differ\n", root, len(diffs))
			return errDrift
		},
	}
	settings.AddFlags(cmd.Flags())
	return cmd
}

func (a *app) printDiffs(diffs []lab.FileDiff) {
	var (
		header  = color.New(color.Bold)
		removed = color.New(color.FgRed)
		added   = color.New(color.FgGreen)
		stale   = color.New(color.FgYellow)
	)
	for _, d := range diffs {
		switch d.Status {
		case lab.Missing:
			added.Fprintf(a.stdout, "+++ %s (missing)\n", d.Path)
		case lab.Stale:
			stale.Fprintf(a.stdout, "--- %s (no longer generated)\n", d.Path)
		case lab.Changed:
			header.Fprintf(a.stdout, "*** %s\n", d.Path)
			for _, line := range d.Lines {
				switch {
				case len(line) > 0 && line[0] == '-':
					removed.Fprintln(a.stdout, line)
				case len(line) > 0 && line[0] == '+':
					added.Fprintln(a.stdout, line)
				default:
					fmt.Fprintln(a.stdout, line)
				}
			}
		}
	}
}

func addAdvertiseFlag(cmd *cobra.Command) {
	cmd.Flags().String(settings.KeyAdvertise, peering.AdvertiseInterAS.String(),
		"shared LANs to announce: inter-as or all-shared")
}

func (a *app) inspectCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print machines, LANs and resolved BGP peering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.load(args[0])
			if err != nil {
				return err
			}
			return inspect.NewReport(l).Write(a.stdout, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", inspect.FormatTable, "output format: table, yaml or json")
	addAdvertiseFlag(cmd)
	return cmd
}

func (a *app) shellCmd() *cobra.Command {
	var history string
	cmd := &cobra.Command{
		Use:   "shell <file>",
		Short: "Explore a lab interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.load(args[0])
			if err != nil {
				return err
			}
			return shell.New(shell.Config{
				Path:     args[0],
				Lab:      l,
				Peering:  a.settings.PeeringOptions(),
				Render:   a.settings.RenderOptions(),
				Recorder: a.rec,
				History:  history,
				Out:      a.stdout,
			}).Run()
		},
	}
	cmd.Flags().StringVar(&history, "history", "", "readline history file")
	settings.AddFlags(cmd.Flags())
	return cmd
}

func (a *app) applyCmd() *cobra.Command {
	var machine string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "apply <file>",
		Short: "Configure this container's interfaces as machine --machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.load(args[0])
			if err != nil {
				return err
			}
			m := l.Topology.Machine(machine)
			if m == nil {
				return fmt.Errorf("unknown machine %q", machine)
			}
			plan, err := ifaddr.Plan(l.Topology, m)
			if err != nil {
				return err
			}
			if dryRun {
				for _, as := range plan {
					fmt.Fprintln(a.stdout, as)
				}
				return nil
			}
			nl, err := a.netlink()
			if err != nil {
				return err
			}
			return ifaddr.Apply(nl, plan)
		},
	}
	cmd.Flags().StringVarP(&machine, "machine", "m", "", "machine to configure")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print the addresses without changing anything")
	cmd.MarkFlagRequired("machine")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	var machine string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Check the running FRR of machine --machine has the inferred BGP sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.load(args[0])
			if err != nil {
				return err
			}
			res := l.Peering[machine]
			if res == nil {
				if l.Topology.Machine(machine) == nil {
					return fmt.Errorf("unknown machine %q", machine)
				}
				fmt.Fprintf(a.stdout, "%s has no BGP sessions to verify\n", machine)
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			statuses, err := frr.QuerySessions(ctx, a.vtysh, res)
			if err != nil {
				return err
			}

			ok, bad := color.New(color.FgGreen), color.New(color.FgRed)
			failed := 0
			for _, st := range statuses {
				state := st.State
				if !st.Found {
					state = "not configured"
				} else if !st.ASMatch {
					state = "wrong remote AS"
				}
				if st.OK() {
					ok.Fprintf(a.stdout, "%-40s %s (%s prefixes)\n", st.Expected.Statement(), "up", state)
					continue
				}
				failed++
				bad.Fprintf(a.stdout, "%-40s %s\n", st.Expected.Statement(), state)
			}
			if failed > 0 {
				fmt.Fprintf(a.stdout, "%s: %d of %d sessions down\n", machine, failed, len(statuses))
				return errSessionsDown
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&machine, "machine", "m", "", "machine whose sessions to check")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "vtysh timeout")
	cmd.MarkFlagRequired("machine")
	addAdvertiseFlag(cmd)
	return cmd
}
