package procfs

import (
	"fmt"
	"sort"
	"sync"

	"affinity-warden/internal/coreset"
)

// Memory is an in-process Inspector backed by a map. It records every
// affinity mutation so callers can assert on exactly what was changed.
type Memory struct {
	mu        sync.Mutex
	procs     map[int]*memoryProc
	listErr   error
	listCalls int
	setCalls  []SetCall
}

// SetCall is one SetAffinity invocation observed by Memory.
type SetCall struct {
	PID   int
	Cores coreset.CoreSet
}

type memoryProc struct {
	name     string
	kernel   bool
	affinity coreset.CoreSet
	getErr   error
	setErr   error
}

var _ Inspector = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{procs: make(map[int]*memoryProc)}
}

// Add registers a process with the given current affinity.
func (m *Memory) Add(pid int, name string, affinity ...int) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs[pid] = &memoryProc{name: name, affinity: coreset.CoreSet(affinity)}
	return m
}

// AddKernel registers a kernel thread.
func (m *Memory) AddKernel(pid int, name string, affinity ...int) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs[pid] = &memoryProc{name: name, kernel: true, affinity: coreset.CoreSet(affinity)}
	return m
}

func (m *Memory) Remove(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.procs, pid)
}

// FailGet makes Affinity(pid) return err.
func (m *Memory) FailGet(pid int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.procs[pid]; ok {
		p.getErr = err
	}
}

// FailSet makes SetAffinity(pid) return err.
func (m *Memory) FailSet(pid int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.procs[pid]; ok {
		p.setErr = err
	}
}

// FailList makes List return err until cleared with nil.
func (m *Memory) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

func (m *Memory) List() ([]Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}

	procs := make([]Process, 0, len(m.procs))
	for pid, p := range m.procs {
		procs = append(procs, Process{PID: pid, Name: p.name, Kernel: p.kernel})
	}
	sort.Slice(procs, func(i, j int) bool {
		return procs[i].PID < procs[j].PID
	})
	return procs, nil
}

func (m *Memory) Affinity(pid int) (coreset.CoreSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.procs[pid]
	if !ok {
		return nil, fmt.Errorf("%w: pid %d", ErrProcessVanished, pid)
	}
	if p.getErr != nil {
		return nil, p.getErr
	}
	return p.affinity.Ints(), nil
}

func (m *Memory) SetAffinity(pid int, cores coreset.CoreSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.procs[pid]
	if !ok {
		return fmt.Errorf("%w: pid %d", ErrProcessVanished, pid)
	}
	if p.setErr != nil {
		return p.setErr
	}
	p.affinity = coreset.Normalize(cores)
	m.setCalls = append(m.setCalls, SetCall{PID: pid, Cores: coreset.Normalize(cores)})
	return nil
}

// Current returns the affinity last stored for pid.
func (m *Memory) Current(pid int) coreset.CoreSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.procs[pid]; ok {
		return p.affinity.Ints()
	}
	return nil
}

func (m *Memory) SetCalls() []SetCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SetCall, len(m.setCalls))
	copy(out, m.setCalls)
	return out
}

// SetCallsFor returns how many times SetAffinity succeeded for pid.
func (m *Memory) SetCallsFor(pid int) int {
	count := 0
	for _, call := range m.SetCalls() {
		if call.PID == pid {
			count++
		}
	}
	return count
}

func (m *Memory) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}
