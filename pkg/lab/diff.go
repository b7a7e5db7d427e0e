package lab

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/afero"
)

// DiffStatus classifies a file difference.
type DiffStatus int

const (
	// Missing files are rendered but absent on disk.
	Missing DiffStatus = iota
	// Changed files exist with different content.
	Changed
	// Stale files are on disk but no longer generated.
	Stale
)

func (s DiffStatus) String() string {
	switch s {
	case Missing:
		return "missing"
	case Changed:
		return "changed"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// FileDiff is one difference between a rendered tree and a lab on disk.
type FileDiff struct {
	Path   string
	Status DiffStatus
	// Lines holds the changed lines of a Changed file, each prefixed with
	// '-' (on disk), '+' (rendered) or ' ' (context).
	Lines []string
}

const diffContext = 2

// Diff compares tree with the lab stored under dir/tree.Root.
func Diff(fs afero.Fs, dir string, tree *Tree) ([]FileDiff, error) {
	root := filepath.Join(dir, tree.Root)
	var diffs []FileDiff

	for _, rel := range tree.Paths() {
		want, _ := tree.Get(rel)
		data, err := afero.ReadFile(fs, filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			if os.IsNotExist(err) {
				diffs = append(diffs, FileDiff{Path: rel, Status: Missing})
				continue
			}
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		if got := string(data); got != want {
			diffs = append(diffs, FileDiff{Path: rel, Status: Changed, Lines: lineDiff(got, want)})
		}
	}

	var stale []string
	err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := tree.Get(rel); !ok {
			stale = append(stale, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(stale)
	for _, rel := range stale {
		diffs = append(diffs, FileDiff{Path: rel, Status: Stale})
	}
	return diffs, nil
}

// lineDiff returns a line-level diff of the file on disk against the
// rendered content, with a little surrounding context.
func lineDiff(onDisk, rendered string) []string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(onDisk, rendered)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []string
	for i, d := range diffs {
		text := strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n")
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			out = append(out, prefixed("-", text)...)
		case diffmatchpatch.DiffInsert:
			out = append(out, prefixed("+", text)...)
		case diffmatchpatch.DiffEqual:
			out = append(out, trimContext(text, i > 0, i < len(diffs)-1)...)
		}
	}
	return out
}

func prefixed(p string, lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = p + l
	}
	return out
}

// trimContext trims an unchanged run to the lines adjacent to a change.
func trimContext(lines []string, after, before bool) []string {
	if len(lines) <= 2*diffContext {
		return prefixed(" ", lines)
	}
	var keep []string
	if after {
		keep = append(keep, lines[:diffContext]...)
	}
	if after && before {
		keep = append(keep, "...")
	}
	if before {
		keep = append(keep, lines[len(lines)-diffContext:]...)
	}
	return prefixed(" ", keep)
}
