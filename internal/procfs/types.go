// Package procfs is the process inspection service: it enumerates live
// processes and reads or changes their CPU affinity.
package procfs

import (
	"errors"

	"affinity-warden/internal/coreset"
)

var (
	// ErrProcessVanished means the process exited between enumeration and the affinity call.
	ErrProcessVanished = errors.New("process no longer exists")
	// ErrAccessDenied means the caller lacks permission to inspect or change the process.
	ErrAccessDenied = errors.New("access denied")
	// ErrNotMovable means the kernel refuses to change this task's affinity,
	// as it does for per-CPU kernel threads.
	ErrNotMovable  = errors.New("affinity of this task cannot be changed")
	ErrUnsupported = errors.New("affinity control not supported on this platform")
)

// Process is a point-in-time view of one entry in the process table.
type Process struct {
	PID  int
	Name string
	// Kernel is set for kernel threads.
	Kernel bool
}

// Inspector is implemented by anything that can enumerate processes and manage their affinity.
type Inspector interface {
	List() ([]Process, error)
	Affinity(pid int) (coreset.CoreSet, error)
	SetAffinity(pid int, cores coreset.CoreSet) error
}

// IsExpected reports whether err is one of the races that callers swallow silently.
func IsExpected(err error) bool {
	return errors.Is(err, ErrProcessVanished) || errors.Is(err, ErrAccessDenied)
}
