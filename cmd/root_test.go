package cmd

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"affinity-warden/internal/config"
	"affinity-warden/internal/coreset"
	"affinity-warden/internal/topology"
)

func parse(t *testing.T, args ...string) *Options {
	t.Helper()
	opts, err := ParseArgs(args, io.Discard)
	require.NoError(t, err)
	return opts
}

func TestParseArgsDefaults(t *testing.T) {
	opts := parse(t)

	require.Equal(t, "", opts.Cores)
	require.Equal(t, 10.0, opts.Interval)
	require.Equal(t, "FastExecuteScript.exe,BrowserAutomationStudio.exe", opts.MainName)
	require.Equal(t, "worker.exe", opts.Workers)
	require.False(t, opts.Verbose)
	require.False(t, opts.IsSet("interval"))
	require.NoError(t, Validate(opts))
}

func TestParseArgsPositionalAnywhere(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "cores first", args: []string{"0-2", "--interval", "2.5", "-v"}},
		{name: "cores last", args: []string{"--interval=2.5", "--verbose", "0-2"}},
		{name: "cores between", args: []string{"-v", "0-2", "-interval", "2.5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := parse(t, tt.args...)
			require.Equal(t, "0-2", opts.Cores)
			require.Equal(t, 2.5, opts.Interval)
			require.True(t, opts.Verbose)
			require.True(t, opts.IsSet("interval"))
		})
	}
}

func TestParseArgsErrors(t *testing.T) {
	_, err := ParseArgs([]string{"0-1", "2-3"}, io.Discard)
	require.ErrorIs(t, err, ErrInvalidArguments)

	_, err = ParseArgs([]string{"--bogus"}, io.Discard)
	require.ErrorIs(t, err, ErrInvalidArguments)

	_, err = ParseArgs([]string{"--interval", "soon"}, io.Discard)
	require.ErrorIs(t, err, ErrInvalidArguments)

	_, err = ParseArgs([]string{"-h"}, io.Discard)
	require.ErrorIs(t, err, flag.ErrHelp)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "json without topology", args: []string{"--json"}},
		{name: "topology with tui", args: []string{"--topology", "--tui"}},
		{name: "zero interval", args: []string{"--interval", "0"}},
		{name: "negative interval", args: []string{"--interval", "-1"}},
		{name: "empty main names", args: []string{"--main-name", " "}},
		{name: "empty worker names", args: []string{"--workers", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, Validate(parse(t, tt.args...)), ErrInvalidArguments)
		})
	}

	require.ErrorIs(t, Validate(nil), ErrInvalidArguments)
	require.NoError(t, Validate(parse(t, "--topology", "--json")))
}

func TestResolveDefaults(t *testing.T) {
	rt, err := Resolve(parse(t), coreset.Range(0, 8))
	require.NoError(t, err)

	require.Equal(t, coreset.CoreSet{0, 1}, rt.Target.Main)
	require.Equal(t, coreset.CoreSet{2, 3, 4, 5, 6, 7}, rt.Target.Worker)
	require.Equal(t, 10*time.Second, rt.Config.Interval.Duration())
	require.True(t, rt.MainNames.Contains("browserautomationstudio.exe"))
	require.True(t, rt.WorkerNames.Contains("WORKER.EXE"))
}

func TestResolveExplicitCores(t *testing.T) {
	rt, err := Resolve(parse(t, "2-0", "--interval", "0.5"), coreset.Range(0, 4))
	require.NoError(t, err)
	require.Equal(t, coreset.CoreSet{0, 2}, rt.Target.Main)
	require.Equal(t, coreset.CoreSet{1, 3}, rt.Target.Worker)
	require.Equal(t, 500*time.Millisecond, rt.Config.Interval.Duration())

	_, err = Resolve(parse(t, "0-a"), coreset.Range(0, 4))
	require.ErrorIs(t, err, coreset.ErrParse)

	_, err = Resolve(parse(t, "0-4"), coreset.Range(0, 4))
	require.ErrorIs(t, err, coreset.ErrValidation)
}

func TestResolveOfflineCPUs(t *testing.T) {
	online := coreset.CoreSet{0, 1, 2}

	rt, err := Resolve(parse(t, "0"), online)
	require.NoError(t, err)
	require.Equal(t, 3, rt.TotalCPUs)
	require.Equal(t, coreset.CoreSet{1, 2}, rt.Target.Worker, "offline cpu3 is not a worker core")

	_, err = Resolve(parse(t, "3"), online)
	require.ErrorIs(t, err, coreset.ErrValidation)

	rt, err = Resolve(parse(t), coreset.CoreSet{0, 2, 3, 5, 6, 7, 8, 9, 10})
	require.NoError(t, err)
	require.Equal(t, coreset.CoreSet{0, 2}, rt.Target.Main, "default tier maps onto online CPUs")
	require.Equal(t, coreset.CoreSet{3, 5, 6, 7, 8, 9, 10}, rt.Target.Worker)
}

func TestResolveAllCoresLeavesNoWorkers(t *testing.T) {
	rt, err := Resolve(parse(t, "0-1-2-3"), coreset.Range(0, 4))
	require.NoError(t, err)
	require.Empty(t, rt.Target.Worker)
}

func TestResolveConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.yaml")
	data := []byte("mainCores: \"1\"\ninterval: 3s\nworkerNames: helper.exe\nlockDir: /var/lock/warden\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	rt, err := Resolve(parse(t, "--config", path, "--workers", "cli.exe"), coreset.Range(0, 4))
	require.NoError(t, err)

	require.Equal(t, coreset.CoreSet{1}, rt.Target.Main, "file value kept without a positional list")
	require.Equal(t, 3*time.Second, rt.Config.Interval.Duration(), "file value kept when flag is unset")
	require.Equal(t, "cli.exe", rt.WorkerNames.String(), "explicit flag wins over file")
	require.Equal(t, config.DefaultMainNames, rt.Config.MainNames)
	require.Equal(t, "/var/lock/warden", rt.Config.LockDir)

	rt, err = Resolve(parse(t, "--config", path, "3"), coreset.Range(0, 4))
	require.NoError(t, err)
	require.Equal(t, coreset.CoreSet{3}, rt.Target.Main)
}

func TestResolveBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interval: -2s\n"), 0o644))

	_, err := Resolve(parse(t, "--config", path), coreset.Range(0, 4))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestWarnings(t *testing.T) {
	topo := &topology.CPUTopology{
		TotalCPUs: 8,
		CoreGroups: []topology.CoreGroup{
			{ID: 0, Name: "L3 group 0", AllCPUs: coreset.CoreSet{0, 1, 4, 5}},
			{ID: 1, Name: "L3 group 1", AllCPUs: coreset.CoreSet{2, 3, 6, 7}},
		},
		CPUs: []topology.CPUInfo{
			{ID: 0, ThreadSiblings: []int{0, 4}},
			{ID: 1, ThreadSiblings: []int{1, 5}},
			{ID: 2, ThreadSiblings: []int{2, 6}},
			{ID: 4, ThreadSiblings: []int{0, 4}},
			{ID: 5, ThreadSiblings: []int{1, 5}},
		},
	}

	rt, err := Resolve(parse(t, "0-1-4-5"), coreset.Range(0, 8))
	require.NoError(t, err)
	require.Empty(t, rt.Warnings(topo))

	rt, err = Resolve(parse(t, "0-1-2"), coreset.Range(0, 8))
	require.NoError(t, err)
	warnings := rt.Warnings(topo)
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0], "span 2 L3 caches")
	require.Contains(t, warnings[1], "4-6")

	require.Nil(t, rt.Warnings(nil))
}
