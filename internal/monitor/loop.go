// Package monitor runs the reconciliation loop: guard, startup sweep, then
// poll and enforce on a fixed interval until cancelled.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"affinity-warden/internal/affinity"
	"affinity-warden/internal/guard"
	"affinity-warden/internal/logging"
	"affinity-warden/internal/metrics"
	"affinity-warden/internal/procfs"
	"affinity-warden/internal/rebalance"
)

var (
	ErrNoWorkerCores = errors.New("no cores available for worker processes")
	// ErrUnexpected wraps any failure that aborted a whole poll cycle.
	ErrUnexpected = errors.New("unexpected error in poll cycle")
)

const (
	DefaultInterval         = 10 * time.Second
	DefaultNoMatchThreshold = 5
)

type State int32

const (
	StateStarting State = iota
	StatePolling
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePolling:
		return "polling"
	case StateSleeping:
		return "sleeping"
	default:
		return "stopped"
	}
}

// Settings is the immutable configuration of a loop.
type Settings struct {
	Target      affinity.Target
	MainNames   affinity.NameSet
	WorkerNames affinity.NameSet
	Interval    time.Duration
	// NoMatchThreshold is how many consecutive empty cycles trigger a warning.
	NoMatchThreshold     int
	ReservedPIDThreshold int
}

// Deps are the collaborators of a loop. Only Inspector is required.
type Deps struct {
	Inspector procfs.Inspector
	Guard     *guard.Guard
	Logger    logging.Logger
	Metrics   metrics.Collector
	// Observer is called synchronously after the sweep and after every cycle.
	Observer func(Report)
}

// Report describes the loop after a sweep or poll cycle.
type Report struct {
	State  State
	Cycle  int
	Swept  int
	Result affinity.Result
	Err    error
	// Streak is the consecutive no-match count after this cycle.
	Streak int
	Took   time.Duration
	At     time.Time
}

type Loop struct {
	settings Settings
	deps     Deps
	policy   *affinity.Policy
	sweeper  *rebalance.Sweeper

	state  atomic.Int32
	cycle  int
	swept  int
	streak int
}

func New(settings Settings, deps Deps) (*Loop, error) {
	if len(settings.Target.Worker) == 0 {
		return nil, ErrNoWorkerCores
	}
	if deps.Inspector == nil {
		return nil, errors.New("process inspector is required")
	}
	if settings.Interval <= 0 {
		settings.Interval = DefaultInterval
	}
	if settings.NoMatchThreshold <= 0 {
		settings.NoMatchThreshold = DefaultNoMatchThreshold
	}
	if settings.ReservedPIDThreshold <= 0 {
		settings.ReservedPIDThreshold = rebalance.ReservedPIDThreshold
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}

	l := &Loop{
		settings: settings,
		deps:     deps,
		policy:   affinity.NewPolicy(deps.Inspector, deps.Logger, deps.Metrics),
		sweeper: rebalance.NewSweeper(deps.Inspector, deps.Logger, deps.Metrics).
			WithPIDThreshold(settings.ReservedPIDThreshold),
	}
	l.setState(StateStarting)
	return l, nil
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) Settings() Settings {
	return l.settings
}

// Run blocks until ctx is cancelled, returning nil, or until startup fails
// with guard.ErrAlreadyRunning.
func (l *Loop) Run(ctx context.Context) error {
	log := l.deps.Logger
	l.setState(StateStarting)

	if l.deps.Guard != nil {
		handle, err := l.deps.Guard.Acquire()
		switch {
		case errors.Is(err, guard.ErrAlreadyRunning):
			log.Error("another instance is already running", "lock", l.deps.Guard.Name())
			l.setState(StateStopped)
			return err
		case err != nil:
			log.Warn("single-instance guard unavailable, continuing without it", "error", err)
		default:
			defer handle.Release()
		}
	}

	target := l.settings.Target
	l.swept = l.sweeper.SweepMainCores(target.Main, target.Worker, l.settings.MainNames)
	l.notify(Report{State: StateStarting, Swept: l.swept, At: time.Now()})

	for {
		if ctx.Err() != nil {
			return l.stop()
		}

		l.setState(StatePolling)
		l.notify(l.pollOnce())

		l.setState(StateSleeping)
		log.Debug("sleeping", "interval", l.settings.Interval)
		timer := time.NewTimer(l.settings.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return l.stop()
		case <-timer.C:
		}
	}
}

func (l *Loop) stop() error {
	l.setState(StateStopped)
	l.deps.Logger.Info("exiting")
	return nil
}

func (l *Loop) pollOnce() Report {
	log := l.deps.Logger
	start := time.Now()
	l.cycle++
	log.Debug("checking processes", "cycle", l.cycle)

	result, err := l.reconcile()
	if err != nil {
		log.Error("error in main loop", "cycle", l.cycle, "error", err)
		l.deps.Metrics.IncCycleError()
		result = affinity.Result{}
	}

	if result.AnyFound() {
		l.streak = 0
	} else {
		l.streak++
		if l.streak >= l.settings.NoMatchThreshold {
			log.Warn("no target processes found for consecutive checks",
				"checks", l.settings.NoMatchThreshold,
				"main_names", l.settings.MainNames.String(),
				"worker_names", l.settings.WorkerNames.String())
			l.streak = 0
		}
	}

	took := time.Since(start)
	l.deps.Metrics.ObserveCycle(result.MainFound, result.WorkerFound, took)
	l.deps.Metrics.SetNoMatchStreak(l.streak)

	return Report{
		State:  StatePolling,
		Cycle:  l.cycle,
		Swept:  l.swept,
		Result: result,
		Err:    err,
		Streak: l.streak,
		Took:   took,
		At:     start,
	}
}

// reconcile runs one pass over a fresh snapshot. A panic anywhere below is
// turned into ErrUnexpected so the loop keeps going.
func (l *Loop) reconcile() (result affinity.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = affinity.Result{}
			err = fmt.Errorf("%w: panic: %v", ErrUnexpected, r)
		}
	}()

	procs, err := l.deps.Inspector.List()
	if err != nil {
		return affinity.Result{}, fmt.Errorf("%w: list processes: %w", ErrUnexpected, err)
	}
	s := l.settings
	return l.policy.ReconcileAll(procs, s.MainNames, s.WorkerNames, s.Target), nil
}

func (l *Loop) notify(report Report) {
	if l.deps.Observer != nil {
		l.deps.Observer(report)
	}
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}
