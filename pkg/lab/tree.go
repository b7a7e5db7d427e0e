package lab

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Tree is a rendered lab: file contents keyed by slash-separated path
// relative to the lab root.
type Tree struct {
	// Root is the lab directory name, derived from the input file name.
	Root  string
	files map[string]string
}

// NewTree creates an empty tree rooted at root.
func NewTree(root string) *Tree {
	return &Tree{Root: root, files: make(map[string]string)}
}

// Add stores a file. Adding the same path twice replaces the content.
func (t *Tree) Add(rel, content string) {
	t.files[path.Clean(rel)] = content
}

// Get returns the content of a file.
func (t *Tree) Get(rel string) (string, bool) {
	c, ok := t.files[path.Clean(rel)]
	return c, ok
}

// Paths returns all file paths in sorted order.
func (t *Tree) Paths() []string {
	paths := make([]string, 0, len(t.files))
	for p := range t.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len is the number of files.
func (t *Tree) Len() int {
	return len(t.files)
}

// Bytes is the total size of all files.
func (t *Tree) Bytes() int {
	n := 0
	for _, c := range t.files {
		n += len(c)
	}
	return n
}

// RootName derives the lab directory name from the input file path:
// the base name without its extension.
func RootName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
