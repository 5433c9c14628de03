package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "")

	p.ObserveCycle(true, true, 5*time.Millisecond)
	p.ObserveCycle(false, false, time.Millisecond)
	p.ObserveCycle(false, false, time.Millisecond)
	p.IncCycleError()
	p.IncAffinityChange("worker")
	p.IncAffinityChange("worker")
	p.IncAffinityChange("main")
	p.IncAffinitySkip("main")
	p.IncAffinityFailure("worker")
	p.AddSwept(3)
	p.SetNoMatchStreak(2)

	require.InDelta(t, 1, testutil.ToFloat64(p.cycles.WithLabelValues("both")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(p.cycles.WithLabelValues("none")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.cycleErrors), 0)
	require.InDelta(t, 2, testutil.ToFloat64(p.changes.WithLabelValues("worker")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.changes.WithLabelValues("main")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.skips.WithLabelValues("main")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.failures.WithLabelValues("worker")), 0)
	require.InDelta(t, 3, testutil.ToFloat64(p.swept), 0)
	require.InDelta(t, 2, testutil.ToFloat64(p.noMatchStreak), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "affinity_warden_reconcile_cycles_total")
	require.Contains(t, names, "affinity_warden_sweep_moved_total")
}

func TestMatchLabel(t *testing.T) {
	require.Equal(t, "both", matchLabel(true, true))
	require.Equal(t, "main", matchLabel(true, false))
	require.Equal(t, "worker", matchLabel(false, true))
	require.Equal(t, "none", matchLabel(false, false))
}
