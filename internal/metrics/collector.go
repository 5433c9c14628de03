// Package metrics exposes reconciliation counters.
package metrics

import "time"

// Collector receives reconciliation events. Implementations must be safe to
// call from the loop goroutine while an HTTP scrape is in progress.
type Collector interface {
	// ObserveCycle is called once per poll cycle.
	ObserveCycle(mainFound, workerFound bool, duration time.Duration)
	// IncCycleError counts poll cycles that failed as a whole.
	IncCycleError()
	// IncAffinityChange counts successful affinity writes for role.
	IncAffinityChange(role string)
	// IncAffinitySkip counts processes that vanished or denied access.
	IncAffinitySkip(role string)
	// IncAffinityFailure counts unexpected per-process OS failures.
	IncAffinityFailure(role string)
	// AddSwept records processes moved off the reserved cores at startup.
	AddSwept(count int)
	SetNoMatchStreak(streak int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

var _ Collector = (*NopMetrics)(nil)

func NewNop() *NopMetrics {
	return &NopMetrics{}
}

func (n *NopMetrics) ObserveCycle(_, _ bool, _ time.Duration) {}
func (n *NopMetrics) IncCycleError() {}
func (n *NopMetrics) IncAffinityChange(_ string) {}
func (n *NopMetrics) IncAffinitySkip(_ string) {}
func (n *NopMetrics) IncAffinityFailure(_ string) {}
func (n *NopMetrics) AddSwept(_ int) {}
func (n *NopMetrics) SetNoMatchStreak(_ int) {}
