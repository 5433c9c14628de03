package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"affinity-warden/internal/affinity"
	"affinity-warden/internal/config"
	"affinity-warden/internal/coreset"
	"affinity-warden/internal/topology"
)

type Options struct {
	// Cores is the optional positional main core list, e.g. "0-2-4".
	Cores        string
	Interval     float64
	MainName     string
	Workers      string
	Verbose      bool
	ConfigPath   string
	MetricsAddr  string
	LockDir      string
	TUI          bool
	ShowTopology bool
	JSON         bool

	set map[string]bool
}

var ErrInvalidArguments = errors.New("invalid arguments")

func ParseFlags() (*Options, error) {
	return ParseArgs(os.Args[1:], os.Stderr)
}

// ParseArgs parses args with a private FlagSet. Flags may appear before or
// after the core list.
func ParseArgs(args []string, output io.Writer) (*Options, error) {
	defaults := config.DefaultConfig()
	opts := &Options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("affinity-warden", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: affinity-warden [flags] [main-cores]")
		fmt.Fprintln(fs.Output(), "  main-cores  hyphen-separated core list for main processes, e.g. 0-2-4")
		fs.PrintDefaults()
	}
	fs.Float64Var(&opts.Interval, "interval", defaults.Interval.Duration().Seconds(), "Seconds between process checks")
	fs.StringVar(&opts.MainName, "main-name", defaults.MainNames, "Comma-separated main process names")
	fs.StringVar(&opts.Workers, "workers", defaults.WorkerNames, "Comma-separated worker process names")
	fs.BoolVar(&opts.Verbose, "v", false, "Enable debug logging (shorthand)")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Enable debug logging")
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	fs.StringVar(&opts.LockDir, "lock-dir", "", "Directory for the single-instance lock")
	fs.BoolVar(&opts.TUI, "tui", false, "Show a live dashboard instead of log output")
	fs.BoolVar(&opts.ShowTopology, "topology", false, "Show CPU topology and exit")
	fs.BoolVar(&opts.JSON, "json", false, "Output in JSON format (with --topology)")

	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
		}
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		rest = rest[1:]
	}

	switch len(positional) {
	case 0:
	case 1:
		opts.Cores = positional[0]
	default:
		return nil, fmt.Errorf("%w: expected at most one core list, got %q", ErrInvalidArguments, positional)
	}

	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	return opts, nil
}

// IsSet reports whether the named flag was given on the command line.
func (o *Options) IsSet(name string) bool {
	return o.set[name]
}

func Validate(opts *Options) error {
	if opts == nil {
		return fmt.Errorf("%w: options are required", ErrInvalidArguments)
	}

	if opts.JSON && !opts.ShowTopology {
		return fmt.Errorf("%w: --json requires --topology", ErrInvalidArguments)
	}
	if opts.ShowTopology && opts.TUI {
		return fmt.Errorf("%w: --topology cannot be used with --tui", ErrInvalidArguments)
	}
	if opts.Interval <= 0 {
		return fmt.Errorf("%w: --interval must be positive, got %g", ErrInvalidArguments, opts.Interval)
	}
	if opts.IsSet("main-name") && strings.TrimSpace(opts.MainName) == "" {
		return fmt.Errorf("%w: --main-name must not be empty", ErrInvalidArguments)
	}
	if opts.IsSet("workers") && strings.TrimSpace(opts.Workers) == "" {
		return fmt.Errorf("%w: --workers must not be empty", ErrInvalidArguments)
	}
	return nil
}

// Runtime is everything the warden needs once flags and config are merged.
type Runtime struct {
	Config config.Config
	// TotalCPUs is the number of online CPUs, and Online lists them.
	TotalCPUs   int
	Online      coreset.CoreSet
	Target      affinity.Target
	MainNames   affinity.NameSet
	WorkerNames affinity.NameSet
}

// Resolve merges defaults, the optional config file and explicitly set
// flags, in that order, then computes the per-role core sets over the
// online CPUs.
func Resolve(opts *Options, online coreset.CoreSet) (*Runtime, error) {
	cfg := config.DefaultConfig()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.IsSet("interval") {
		cfg.Interval = config.Seconds(opts.Interval)
	}
	if opts.IsSet("main-name") {
		cfg.MainNames = opts.MainName
	}
	if opts.IsSet("workers") {
		cfg.WorkerNames = opts.Workers
	}
	if opts.IsSet("v") || opts.IsSet("verbose") {
		cfg.Verbose = opts.Verbose
	}
	if opts.IsSet("metrics-addr") {
		cfg.MetricsAddr = opts.MetricsAddr
	}
	if opts.IsSet("lock-dir") {
		cfg.LockDir = opts.LockDir
	}
	if opts.Cores != "" {
		cfg.MainCores = opts.Cores
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	online = coreset.Normalize(online)
	mainCores, err := resolveCores(cfg.MainCores, online)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		Config:      cfg,
		TotalCPUs:   len(online),
		Online:      online,
		Target:      affinity.NewTargetWithin(mainCores, online),
		MainNames:   affinity.ParseNameSet(cfg.MainNames),
		WorkerNames: affinity.ParseNameSet(cfg.WorkerNames),
	}, nil
}

// resolveCores picks the default tier by online CPU count and maps it
// onto the lowest online CPUs.
func resolveCores(spec string, online coreset.CoreSet) (coreset.CoreSet, error) {
	if strings.TrimSpace(spec) == "" {
		return online.Pick(coreset.Default(len(online))), nil
	}
	parsed, err := coreset.Parse(spec)
	if err != nil {
		return nil, err
	}
	return coreset.ValidateWithin(parsed, online)
}

// Warnings lists layout problems worth telling the operator about. None of
// them stop the warden.
func (r *Runtime) Warnings(topo *topology.CPUTopology) []string {
	if topo == nil {
		return nil
	}

	var warnings []string
	if groups := topo.GroupsSpanned(r.Target.Main); len(groups) > 1 {
		names := make([]string, 0, len(groups))
		for _, g := range groups {
			names = append(names, g.Name)
		}
		warnings = append(warnings, fmt.Sprintf("main cores %s span %d L3 caches (%s)",
			r.Target.Main.Format(), len(groups), strings.Join(names, ", ")))
	}

	var shared []int
	for _, sib := range topo.Siblings(r.Target.Main) {
		if r.Target.Worker.Contains(sib) {
			shared = append(shared, sib)
		}
	}
	if len(shared) > 0 {
		warnings = append(warnings, fmt.Sprintf("worker cores %s are SMT siblings of main cores",
			coreset.Normalize(shared).Format()))
	}
	return warnings
}
