package affinity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"affinity-warden/internal/coreset"
	"affinity-warden/internal/logging"
	"affinity-warden/internal/procfs"
)

var (
	mainNames   = ParseNameSet("main.exe,BrowserAutomationStudio.exe")
	workerNames = ParseNameSet("worker.exe")
	target      = NewTarget(coreset.CoreSet{0, 1}, 4)
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Role
	}{
		{name: "main.exe", want: RoleMain},
		{name: "MAIN.EXE", want: RoleMain},
		{name: "browserautomationstudio.exe", want: RoleMain},
		{name: "worker.exe", want: RoleWorker},
		{name: "Worker.Exe", want: RoleWorker},
		{name: "notmain.exe", want: RoleUnclassified},
		{name: "main.exe.bak", want: RoleUnclassified},
		{name: "worker", want: RoleUnclassified},
		{name: "", want: RoleUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.name, mainNames, workerNames))
		})
	}
}

func TestClassifyOverlapPrefersMain(t *testing.T) {
	both := ParseNameSet("shared.exe")
	require.Equal(t, RoleMain, Classify("shared.exe", both, both))
}

func TestNameSet(t *testing.T) {
	set := ParseNameSet(" a.exe , B.exe,,a.EXE ")
	require.Equal(t, 2, set.Len())
	require.Equal(t, []string{"a.exe", "B.exe"}, set.Names())
	require.True(t, set.Contains("b.exe"))
	require.False(t, set.Contains(""))
	require.Equal(t, "a.exe,B.exe", set.String())
}

func TestTarget(t *testing.T) {
	require.Equal(t, coreset.CoreSet{0, 1}, target.Main)
	require.Equal(t, coreset.CoreSet{2, 3}, target.Worker)

	cores, ok := target.For(RoleWorker)
	require.True(t, ok)
	require.Equal(t, coreset.CoreSet{2, 3}, cores)

	_, ok = target.For(RoleUnclassified)
	require.False(t, ok)
}

func TestTargetWithinOnlineCores(t *testing.T) {
	// cpu3 is offline, so it must never become a worker core.
	within := NewTargetWithin(coreset.CoreSet{0}, coreset.CoreSet{0, 1, 2})
	require.Equal(t, coreset.CoreSet{1, 2}, within.Worker)
}

func TestEnforce(t *testing.T) {
	t.Run("updates when affinity differs", func(t *testing.T) {
		mem := procfs.NewMemory().Add(100, "worker.exe", 0, 1)
		p := NewPolicy(mem, logging.NewNop(), nil)

		outcome := p.Enforce(procfs.Process{PID: 100, Name: "worker.exe"}, RoleWorker, coreset.CoreSet{2, 3})
		require.Equal(t, OutcomeChanged, outcome)
		require.Equal(t, coreset.CoreSet{2, 3}, mem.Current(100))
		require.Equal(t, 1, mem.SetCallsFor(100))
	})

	t.Run("no update when already set", func(t *testing.T) {
		mem := procfs.NewMemory().Add(100, "worker.exe", 3, 2)
		p := NewPolicy(mem, nil, nil)

		outcome := p.Enforce(procfs.Process{PID: 100, Name: "worker.exe"}, RoleWorker, coreset.CoreSet{2, 3})
		require.Equal(t, OutcomeUnchanged, outcome)
		require.Empty(t, mem.SetCalls())
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		mem := procfs.NewMemory().Add(100, "main.exe", 2, 3)
		p := NewPolicy(mem, nil, nil)
		proc := procfs.Process{PID: 100, Name: "main.exe"}

		require.Equal(t, OutcomeChanged, p.Enforce(proc, RoleMain, coreset.CoreSet{0, 1}))
		require.Equal(t, OutcomeUnchanged, p.Enforce(proc, RoleMain, coreset.CoreSet{0, 1}))
		require.Equal(t, 1, mem.SetCallsFor(100))
	})

	t.Run("vanished and denied are skipped quietly", func(t *testing.T) {
		mem := procfs.NewMemory().Add(100, "worker.exe", 0).Add(101, "worker.exe", 0)
		mem.FailGet(101, procfs.ErrAccessDenied)
		rec := logging.NewRecorder()
		p := NewPolicy(mem, rec, nil)

		mem.Remove(100)
		require.Equal(t, OutcomeSkipped, p.Enforce(procfs.Process{PID: 100}, RoleWorker, coreset.CoreSet{2}))
		require.Equal(t, OutcomeSkipped, p.Enforce(procfs.Process{PID: 101}, RoleWorker, coreset.CoreSet{2}))
		require.Equal(t, 0, rec.Count("WARN", ""))
	})

	t.Run("unexpected failure is logged as warning", func(t *testing.T) {
		mem := procfs.NewMemory().Add(100, "worker.exe", 0)
		mem.FailSet(100, errors.New("invalid argument"))
		rec := logging.NewRecorder()
		p := NewPolicy(mem, rec, nil)

		outcome := p.Enforce(procfs.Process{PID: 100, Name: "worker.exe"}, RoleWorker, coreset.CoreSet{2})
		require.Equal(t, OutcomeFailed, outcome)
		require.Equal(t, 1, rec.Count("WARN", "affinity operation failed"))
	})
}

func TestReconcileAll(t *testing.T) {
	t.Run("finds both roles", func(t *testing.T) {
		mem := procfs.NewMemory().
			Add(10, "main.exe", 2, 3).
			Add(11, "worker.exe", 0, 1).
			Add(12, "other", 0, 1)
		p := NewPolicy(mem, nil, nil)
		procs, err := mem.List()
		require.NoError(t, err)

		result := p.ReconcileAll(procs, mainNames, workerNames, target)
		require.True(t, result.MainFound)
		require.True(t, result.WorkerFound)
		require.Equal(t, 2, result.Changed)
		require.Equal(t, coreset.CoreSet{0, 1}, mem.Current(10))
		require.Equal(t, coreset.CoreSet{2, 3}, mem.Current(11))
		require.Equal(t, coreset.CoreSet{0, 1}, mem.Current(12), "unclassified process must be untouched")
		require.Zero(t, mem.SetCallsFor(12))
	})

	t.Run("nothing matches", func(t *testing.T) {
		mem := procfs.NewMemory().Add(10, "notmain.exe", 2).Add(11, "workers.exe", 0)
		p := NewPolicy(mem, nil, nil)
		procs, _ := mem.List()

		result := p.ReconcileAll(procs, mainNames, workerNames, target)
		require.Equal(t, Result{}, result)
		require.False(t, result.AnyFound())
		require.Empty(t, mem.SetCalls())
	})

	t.Run("failure on one process does not stop the rest", func(t *testing.T) {
		mem := procfs.NewMemory().
			Add(10, "worker.exe", 0).
			Add(11, "worker.exe", 0).
			Add(12, "worker.exe", 0).
			Add(13, "main.exe", 3)
		mem.FailSet(10, errors.New("io error"))
		mem.FailGet(11, procfs.ErrProcessVanished)
		p := NewPolicy(mem, nil, nil)
		procs, _ := mem.List()

		result := p.ReconcileAll(procs, mainNames, workerNames, target)
		require.True(t, result.MainFound)
		require.True(t, result.WorkerFound)
		require.Equal(t, 1, result.Failed)
		require.Equal(t, 1, result.Skipped)
		require.Equal(t, 2, result.Changed)
		require.Equal(t, coreset.CoreSet{2, 3}, mem.Current(12))
		require.Equal(t, coreset.CoreSet{0, 1}, mem.Current(13))
	})

	t.Run("vanished process still counts as found", func(t *testing.T) {
		mem := procfs.NewMemory().Add(10, "main.exe", 0)
		p := NewPolicy(mem, nil, nil)
		procs, _ := mem.List()
		mem.Remove(10)

		result := p.ReconcileAll(procs, mainNames, workerNames, target)
		require.True(t, result.MainFound)
		require.Equal(t, 1, result.Skipped)
	})
}
