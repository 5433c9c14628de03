//go:build linux

package procfs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"affinity-warden/internal/coreset"
)

const (
	DefaultRoot = "/proc"

	// Linux truncates /proc/<pid>/comm to this many bytes.
	commLimit = 15
	// CPU_SETSIZE from glibc, the width of unix.CPUSet.
	cpuSetBits = 1024
	// PF_KTHREAD in the flags field of /proc/<pid>/stat.
	flagKernelThread = 0x00200000
)

// ProcFS reads the process table from a procfs mount and uses
// sched_getaffinity/sched_setaffinity for affinity.
type ProcFS struct {
	Root string
}

var _ Inspector = (*ProcFS)(nil)

func New() *ProcFS {
	return &ProcFS{Root: DefaultRoot}
}

// List returns a snapshot of every process whose name could be read.
// Processes that exit while the table is being walked are left out.
func (p *ProcFS) List() ([]Process, error) {
	entries, err := os.ReadDir(p.root())
	if err != nil {
		return nil, classify(err)
	}

	procs := make([]Process, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			continue
		}
		proc, err := p.readProcess(pid)
		if err != nil {
			continue
		}
		procs = append(procs, proc)
	}

	sort.Slice(procs, func(i, j int) bool {
		return procs[i].PID < procs[j].PID
	})
	return procs, nil
}

func (p *ProcFS) Affinity(pid int) (coreset.CoreSet, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(pid, &set); err != nil {
		return nil, fmt.Errorf("sched_getaffinity pid %d: %w", pid, classify(err))
	}

	cores := make([]int, 0, set.Count())
	for cpu := 0; cpu < cpuSetBits; cpu++ {
		if set.IsSet(cpu) {
			cores = append(cores, cpu)
		}
	}
	return coreset.Normalize(cores), nil
}

// SetAffinity pins every thread of pid to cores. The main thread is set first
// so a vanished process is reported before any thread walk.
func (p *ProcFS) SetAffinity(pid int, cores coreset.CoreSet) error {
	if len(cores) == 0 {
		return fmt.Errorf("sched_setaffinity pid %d: empty core set", pid)
	}

	var set unix.CPUSet
	set.Zero()
	for _, core := range cores {
		set.Set(core)
	}

	if err := unix.SchedSetaffinity(pid, &set); err != nil {
		return fmt.Errorf("sched_setaffinity pid %d: %w", pid, classify(err))
	}

	for _, tid := range p.threads(pid) {
		if tid == pid {
			continue
		}
		if err := unix.SchedSetaffinity(tid, &set); err != nil {
			if errors.Is(err, unix.ESRCH) {
				continue
			}
			return fmt.Errorf("sched_setaffinity pid %d tid %d: %w", pid, tid, classify(err))
		}
	}
	return nil
}

func (p *ProcFS) readProcess(pid int) (Process, error) {
	dir := filepath.Join(p.root(), strconv.Itoa(pid))
	data, err := os.ReadFile(filepath.Join(dir, "comm"))
	if err != nil {
		return Process{}, err
	}
	name := strings.TrimSpace(string(data))
	cmdline, _ := os.ReadFile(filepath.Join(dir, "cmdline"))
	if len(name) >= commLimit {
		name = fullName(name, cmdline)
	}

	kernel, ok := readKernelFlag(dir)
	if !ok {
		// Kernel threads have no command line.
		kernel = len(cmdline) == 0
	}
	return Process{PID: pid, Name: name, Kernel: kernel}, nil
}

// fullName recovers a comm value truncated by the kernel from argv[0].
func fullName(comm string, cmdline []byte) string {
	if len(cmdline) == 0 {
		return comm
	}
	argv0 := string(cmdline)
	if idx := strings.IndexByte(argv0, 0); idx >= 0 {
		argv0 = argv0[:idx]
	}
	if full := baseName(argv0); strings.HasPrefix(full, comm) {
		return full
	}
	return comm
}

// readKernelFlag reports whether PF_KTHREAD is set in /proc/<pid>/stat.
// The second result is false when the flags cannot be read.
func readKernelFlag(dir string) (bool, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "stat"))
	if err != nil {
		return false, false
	}
	// comm may contain spaces and parentheses; fields restart after the last ')'.
	idx := bytes.LastIndexByte(data, ')')
	if idx < 0 {
		return false, false
	}
	fields := strings.Fields(string(data[idx+1:]))
	// fields[0] is the state (field 3), so flags (field 9) is fields[6].
	if len(fields) < 7 {
		return false, false
	}
	flags, err := strconv.ParseUint(fields[6], 10, 64)
	if err != nil {
		return false, false
	}
	return flags&flagKernelThread != 0, true
}

func (p *ProcFS) threads(pid int) []int {
	entries, err := os.ReadDir(filepath.Join(p.root(), strconv.Itoa(pid), "task"))
	if err != nil {
		return nil
	}
	tids := make([]int, 0, len(entries))
	for _, entry := range entries {
		tid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		tids = append(tids, tid)
	}
	return tids
}

func (p *ProcFS) root() string {
	if p.Root == "" {
		return DefaultRoot
	}
	return p.Root
}

// baseName strips both Unix and Windows directory prefixes, since
// processes running under Wine report paths like C:\app\worker.exe.
func baseName(path string) string {
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func classify(err error) error {
	switch {
	case errors.Is(err, unix.ESRCH), errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrProcessVanished, err)
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES), errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	case errors.Is(err, unix.EINVAL):
		return fmt.Errorf("%w: %v", ErrNotMovable, err)
	default:
		return err
	}
}
