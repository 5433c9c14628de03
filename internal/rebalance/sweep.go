// Package rebalance moves stray processes off the reserved cores once at startup.
package rebalance

import (
	"errors"

	"affinity-warden/internal/affinity"
	"affinity-warden/internal/coreset"
	"affinity-warden/internal/logging"
	"affinity-warden/internal/metrics"
	"affinity-warden/internal/procfs"
)

// ReservedPIDThreshold protects kernel and init processes from being moved.
const ReservedPIDThreshold = 4

// Sweeper moves processes off the main cores once at startup.
type Sweeper struct {
	inspector    procfs.Inspector
	logger       logging.Logger
	metrics      metrics.Collector
	pidThreshold int
}

func NewSweeper(inspector procfs.Inspector, logger logging.Logger, collector metrics.Collector) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	if collector == nil {
		collector = metrics.NewNop()
	}
	return &Sweeper{
		inspector:    inspector,
		logger:       logger,
		metrics:      collector,
		pidThreshold: ReservedPIDThreshold,
	}
}

// WithPIDThreshold overrides the highest PID the sweep leaves alone.
func (s *Sweeper) WithPIDThreshold(threshold int) *Sweeper {
	if threshold >= 0 {
		s.pidThreshold = threshold
	}
	return s
}

// SweepMainCores moves every process whose affinity lies entirely within
// mainCores over to workerCores, except processes named in mainNames.
// It returns how many processes were moved.
func (s *Sweeper) SweepMainCores(mainCores, workerCores coreset.CoreSet, mainNames affinity.NameSet) int {
	if len(workerCores) == 0 {
		s.logger.Warn("no worker cores available to move processes to")
		return 0
	}

	s.logger.Info("moving processes from main cores to worker cores",
		"main_cores", mainCores.Format(), "worker_cores", workerCores.Format())

	procs, err := s.inspector.List()
	if err != nil {
		s.logger.Warn("cannot enumerate processes for startup sweep", "error", err)
		return 0
	}

	moved := 0
	for _, proc := range procs {
		if proc.PID <= s.pidThreshold {
			continue
		}
		if proc.Kernel {
			s.logger.Debug("keeping kernel thread", "pid", proc.PID, "name", proc.Name)
			continue
		}
		if mainNames.Contains(proc.Name) {
			s.logger.Debug("keeping main process on main cores", "pid", proc.PID, "name", proc.Name)
			continue
		}
		if s.move(proc, mainCores, workerCores) {
			moved++
		}
	}

	s.metrics.AddSwept(moved)
	s.logger.Info("moved processes from main cores to worker cores", "count", moved)
	return moved
}

func (s *Sweeper) move(proc procfs.Process, mainCores, workerCores coreset.CoreSet) bool {
	current, err := s.inspector.Affinity(proc.PID)
	if err != nil {
		s.absorb(proc, err)
		return false
	}
	current = coreset.Normalize(current)
	if len(current) == 0 || !current.SubsetOf(mainCores) {
		return false
	}

	s.logger.Debug("found process running on main cores", "pid", proc.PID, "name", proc.Name, "cores", current)
	if err := s.inspector.SetAffinity(proc.PID, workerCores); err != nil {
		s.absorb(proc, err)
		return false
	}
	s.logger.Debug("moved process to worker cores", "pid", proc.PID, "name", proc.Name, "cores", workerCores)
	return true
}

func (s *Sweeper) absorb(proc procfs.Process, err error) {
	// Per-CPU kernel threads refuse new masks with EINVAL.
	if procfs.IsExpected(err) || errors.Is(err, procfs.ErrNotMovable) {
		s.logger.Debug("process skipped during sweep", "pid", proc.PID, "name", proc.Name, "error", err)
		return
	}
	s.logger.Warn("cannot move process off main cores", "pid", proc.PID, "name", proc.Name, "error", err)
}
