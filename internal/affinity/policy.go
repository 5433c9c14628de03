package affinity

import (
	"affinity-warden/internal/coreset"
	"affinity-warden/internal/logging"
	"affinity-warden/internal/metrics"
	"affinity-warden/internal/procfs"
)

// Classify assigns a role by exact, case-insensitive name match.
// The main list wins if a name is configured in both.
func Classify(name string, mainNames, workerNames NameSet) Role {
	switch {
	case mainNames.Contains(name):
		return RoleMain
	case workerNames.Contains(name):
		return RoleWorker
	default:
		return RoleUnclassified
	}
}

// Policy enforces per-role affinity through an Inspector.
type Policy struct {
	inspector procfs.Inspector
	logger    logging.Logger
	metrics   metrics.Collector
}

func NewPolicy(inspector procfs.Inspector, logger logging.Logger, collector metrics.Collector) *Policy {
	if logger == nil {
		logger = logging.NewNop()
	}
	if collector == nil {
		collector = metrics.NewNop()
	}
	return &Policy{inspector: inspector, logger: logger, metrics: collector}
}

// Enforce sets proc's affinity to target unless it already matches.
// Errors are absorbed here and reported through the returned Outcome.
func (p *Policy) Enforce(proc procfs.Process, role Role, target coreset.CoreSet) Outcome {
	current, err := p.inspector.Affinity(proc.PID)
	if err != nil {
		return p.absorb(proc, role, "read affinity", err)
	}

	current = coreset.Normalize(current)
	if current.Equal(target) {
		p.logger.Debug("affinity already set", "role", role, "pid", proc.PID, "name", proc.Name, "cores", current)
		return OutcomeUnchanged
	}

	p.logger.Debug("updating affinity", "role", role, "pid", proc.PID, "name", proc.Name,
		"from", current, "to", target)
	if err := p.inspector.SetAffinity(proc.PID, target); err != nil {
		return p.absorb(proc, role, "set affinity", err)
	}

	p.metrics.IncAffinityChange(role.String())
	p.logger.Info("affinity updated", "role", role, "pid", proc.PID, "name", proc.Name, "cores", target.Format())
	return OutcomeChanged
}

// ReconcileAll classifies every process once and enforces the target of
// each main or worker process. A failing process never stops the pass.
func (p *Policy) ReconcileAll(procs []procfs.Process, mainNames, workerNames NameSet, target Target) Result {
	var result Result
	for _, proc := range procs {
		role := Classify(proc.Name, mainNames, workerNames)
		cores, ok := target.For(role)
		if !ok {
			continue
		}

		switch role {
		case RoleMain:
			result.MainFound = true
		case RoleWorker:
			result.WorkerFound = true
		}
		p.logger.Debug("found process", "role", role, "pid", proc.PID, "name", proc.Name)
		result.add(p.Enforce(proc, role, cores))
	}

	if !result.MainFound {
		p.logger.Debug("no main processes found", "names", mainNames.String())
	}
	if !result.WorkerFound {
		p.logger.Debug("no worker processes found", "names", workerNames.String())
	}
	return result
}

func (p *Policy) absorb(proc procfs.Process, role Role, op string, err error) Outcome {
	if procfs.IsExpected(err) {
		p.metrics.IncAffinitySkip(role.String())
		p.logger.Debug("process skipped", "op", op, "role", role, "pid", proc.PID, "name", proc.Name, "error", err)
		return OutcomeSkipped
	}
	p.metrics.IncAffinityFailure(role.String())
	p.logger.Warn("affinity operation failed", "op", op, "role", role, "pid", proc.PID, "name", proc.Name, "error", err)
	return OutcomeFailed
}
