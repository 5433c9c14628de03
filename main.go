package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"affinity-warden/cmd"
	"affinity-warden/internal/config"
	"affinity-warden/internal/coreset"
	"affinity-warden/internal/guard"
	"affinity-warden/internal/logging"
	"affinity-warden/internal/metrics"
	"affinity-warden/internal/monitor"
	"affinity-warden/internal/procfs"
	"affinity-warden/internal/topology"
	"affinity-warden/internal/ui"
)

func main() {
	os.Exit(exitCode(start()))
}

// start returns instead of exiting so deferred cleanup runs first.
func start() error {
	opts, err := cmd.ParseFlags()
	if err != nil {
		return err
	}

	if err := cmd.Validate(opts); err != nil {
		return err
	}

	topo, err := topology.Detect()
	if err != nil {
		return err
	}

	if opts.ShowTopology {
		if opts.JSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(topo)
		}
		ui.PrintTopology(topo)
		return nil
	}

	rt, err := cmd.Resolve(opts, topo.Online)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, rt, topo, opts.TUI)
}

func run(ctx context.Context, rt *cmd.Runtime, topo *topology.CPUTopology, tui bool) error {
	cfg := rt.Config
	lockDir := cfg.LockDir
	if lockDir == "" {
		lockDir = guard.DefaultLockDir()
	}

	var logOut io.Writer = os.Stderr
	if tui {
		file, err := openLogFile(lockDir, cfg.LockName)
		if err != nil {
			return err
		}
		defer file.Close()
		logOut = file
	}
	log := logging.New(logOut, cfg.Verbose)

	summary := ui.Summary{
		TotalCPUs:   rt.TotalCPUs,
		MainCores:   rt.Target.Main,
		WorkerCores: rt.Target.Worker,
		MainNames:   rt.MainNames.String(),
		WorkerNames: rt.WorkerNames.String(),
		Interval:    cfg.Interval.Duration(),
		Warnings:    rt.Warnings(topo),
	}
	logStartup(log, rt, summary.Warnings)

	var collector metrics.Collector = metrics.NewNop()
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector = metrics.NewPrometheus(reg, "")
		server := metrics.NewServer(cfg.MetricsAddr, reg)
		serverCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := server.Run(serverCtx); err != nil {
				log.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
		log.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	notify := ui.PrintNotice
	var dashboard *ui.Dashboard
	if tui {
		dashboard = ui.NewDashboard(summary)
		// The alt screen owns the terminal, so notices go to the log.
		notify = func(message string) { log.Warn(message) }
	}

	deps := monitor.Deps{
		Inspector: procfs.New(),
		Guard:     guard.New(guard.NewFileLock(lockDir, notify), cfg.LockName),
		Logger:    log,
		Metrics:   collector,
	}
	if dashboard != nil {
		deps.Observer = dashboard.Observe
	}

	loop, err := monitor.New(monitor.Settings{
		Target:               rt.Target,
		MainNames:            rt.MainNames,
		WorkerNames:          rt.WorkerNames,
		Interval:             cfg.Interval.Duration(),
		NoMatchThreshold:     cfg.NoMatchThreshold,
		ReservedPIDThreshold: cfg.ReservedPIDThreshold,
	}, deps)
	if err != nil {
		log.Error("no cores available for worker processes", "main_cores", rt.Target.Main.Format(), "total_cores", rt.TotalCPUs)
		return err
	}

	if dashboard != nil {
		return dashboard.Run(ctx, loop.Run)
	}
	ui.PrintStartup(summary)
	return loop.Run(ctx)
}

func logStartup(log logging.Logger, rt *cmd.Runtime, warnings []string) {
	log.Info("starting cpu affinity manager", "total_cores", rt.TotalCPUs)
	log.Info("main processes", "names", rt.MainNames.String(), "cores", rt.Target.Main.Format())
	log.Info("worker processes", "names", rt.WorkerNames.String(), "cores", rt.Target.Worker.Format())
	log.Debug("poll settings", "interval", rt.Config.Interval.Duration(), "no_match_threshold", rt.Config.NoMatchThreshold)
	for _, w := range warnings {
		log.Warn(w)
	}
}

func openLogFile(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, name+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// exitCode reports err to the operator and maps it to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, cmd.ErrInvalidArguments),
		errors.Is(err, coreset.ErrParse),
		errors.Is(err, coreset.ErrValidation),
		errors.Is(err, config.ErrInvalidConfig):
		ui.PrintError(err)
		return 2
	case errors.Is(err, topology.ErrTopologyUnavailable):
		ui.PrintError(errors.New("Cannot read CPU topology. Are you running on a Linux system?"))
		return 3
	case errors.Is(err, monitor.ErrNoWorkerCores):
		ui.PrintError(errors.New("No cores available for worker processes! Leave at least one core out of the main list."))
		return 4
	case errors.Is(err, procfs.ErrAccessDenied) || errors.Is(err, os.ErrPermission):
		ui.PrintError(errors.New("Permission denied. Try running with sudo."))
		return 5
	case errors.Is(err, guard.ErrAlreadyRunning):
		return 1
	default:
		ui.PrintError(err)
		return 1
	}
}
