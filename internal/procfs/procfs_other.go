//go:build !linux

package procfs

import "affinity-warden/internal/coreset"

const DefaultRoot = "/proc"

// ProcFS is only functional on Linux.
type ProcFS struct {
	Root string
}

var _ Inspector = (*ProcFS)(nil)

func New() *ProcFS {
	return &ProcFS{Root: DefaultRoot}
}

func (p *ProcFS) List() ([]Process, error) {
	return nil, ErrUnsupported
}

func (p *ProcFS) Affinity(_ int) (coreset.CoreSet, error) {
	return nil, ErrUnsupported
}

func (p *ProcFS) SetAffinity(_ int, _ coreset.CoreSet) error {
	return ErrUnsupported
}
