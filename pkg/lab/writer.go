package lab

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Writer persists rendered trees.
type Writer struct {
	Fs afero.Fs
	// Clean removes the lab root before writing, so files from an earlier
	// run that are no longer generated disappear.
	Clean bool
}

// NewWriter returns a Writer on the OS filesystem.
func NewWriter() *Writer {
	return &Writer{Fs: afero.NewOsFs()}
}

// Write stores tree under dir/tree.Root and returns the lab directory.
func (w *Writer) Write(dir string, tree *Tree) (string, error) {
	root := filepath.Join(dir, tree.Root)
	if w.Clean {
		if err := w.Fs.RemoveAll(root); err != nil {
			return "", fmt.Errorf("clean %s: %w", root, err)
		}
	}
	if err := w.Fs.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", root, err)
	}
	for _, rel := range tree.Paths() {
		content, _ := tree.Get(rel)
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := w.Fs.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return "", fmt.Errorf("create %s: %w", filepath.Dir(full), err)
		}
		if err := afero.WriteFile(w.Fs, full, []byte(content), 0644); err != nil {
			return "", fmt.Errorf("write %s: %w", full, err)
		}
		slog.Debug("file written", "path", full, "bytes", len(content))
	}
	slog.Info("lab written", "path", root, "files", tree.Len())
	return root, nil
}

// Exists reports whether a lab directory is already present.
func (w *Writer) Exists(dir string, tree *Tree) (bool, error) {
	_, err := w.Fs.Stat(filepath.Join(dir, tree.Root))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
