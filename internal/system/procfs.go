package system

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProcFS reads kernel counters from a procfs mount. Root is normally /proc;
// tests point it at a fixture directory.
type ProcFS struct {
	Root string
}

func NewProcFS(root string) ProcFS {
	if root == "" {
		root = "/proc"
	}
	return ProcFS{Root: root}
}

func (p ProcFS) open(name string) (*os.File, error) {
	path := filepath.Join(p.Root, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
