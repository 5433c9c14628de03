package affinity

import (
	"strings"

	"affinity-warden/internal/coreset"
)

// Role is the part a process plays, derived from its name on every poll.
type Role int

const (
	RoleUnclassified Role = iota
	RoleMain
	RoleWorker
)

func (r Role) String() string {
	switch r {
	case RoleMain:
		return "main"
	case RoleWorker:
		return "worker"
	default:
		return "unclassified"
	}
}

// NameSet matches process names exactly, ignoring case.
type NameSet struct {
	names []string
	index map[string]struct{}
}

func NewNameSet(names ...string) NameSet {
	set := NameSet{index: make(map[string]struct{}, len(names))}
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := set.index[key]; ok {
			continue
		}
		set.index[key] = struct{}{}
		set.names = append(set.names, trimmed)
	}
	return set
}

// ParseNameSet splits a comma-separated list such as "a.exe, b.exe".
func ParseNameSet(csv string) NameSet {
	return NewNameSet(strings.Split(csv, ",")...)
}

func (s NameSet) Contains(name string) bool {
	_, ok := s.index[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func (s NameSet) Len() int {
	return len(s.names)
}

// Names returns the configured names in their original spelling and order.
func (s NameSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s NameSet) String() string {
	return strings.Join(s.names, ",")
}

// Target maps each enforced role to its core set. It is fixed at startup.
type Target struct {
	Main   coreset.CoreSet
	Worker coreset.CoreSet
}

func NewTarget(mainCores coreset.CoreSet, totalCores int) Target {
	return Target{Main: mainCores, Worker: mainCores.Complement(totalCores)}
}

// NewTargetWithin gives workers every online core that is not reserved for
// main processes.
func NewTargetWithin(mainCores, online coreset.CoreSet) Target {
	return Target{Main: mainCores, Worker: online.Difference(mainCores)}
}

// For returns the cores for role, and false for an unclassified process.
func (t Target) For(role Role) (coreset.CoreSet, bool) {
	switch role {
	case RoleMain:
		return t.Main, true
	case RoleWorker:
		return t.Worker, true
	default:
		return nil, false
	}
}

// Outcome is what Enforce did to a single process.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeChanged
	// OutcomeSkipped means the process vanished or denied access.
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeChanged:
		return "changed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unchanged"
	}
}

// Result summarizes one ReconcileAll pass.
type Result struct {
	MainFound   bool
	WorkerFound bool

	Changed   int
	Unchanged int
	Skipped   int
	Failed    int
}

// AnyFound reports whether at least one configured process was seen.
func (r Result) AnyFound() bool {
	return r.MainFound || r.WorkerFound
}

func (r *Result) add(outcome Outcome) {
	switch outcome {
	case OutcomeChanged:
		r.Changed++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	default:
		r.Unchanged++
	}
}
