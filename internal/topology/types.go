package topology

import "affinity-warden/internal/coreset"

type CPUTopology struct {
	// TotalCPUs counts online logical CPUs only.
	TotalCPUs    int         `json:"total_cpus"`
	TotalCores   int         `json:"total_cores"`
	HasSMT       bool        `json:"has_smt"`
	CoreGroups   []CoreGroup `json:"core_groups"`
	DetectMethod string      `json:"detect_method"`

	// Online lists the logical CPUs that can run tasks.
	Online coreset.CoreSet `json:"online"`
	CPUs   []CPUInfo       `json:"-"`
}

// CoreGroup is a set of CPUs sharing an L3 cache (a CCD on AMD parts).
type CoreGroup struct {
	ID           int             `json:"id"`
	PackageID    int             `json:"package_id"`
	Name         string          `json:"name"`
	L3CacheID    int             `json:"l3_cache_id"`
	PhysicalCPUs coreset.CoreSet `json:"physical_cpus"`
	AllCPUs      coreset.CoreSet `json:"all_cpus"`
}

type CPUInfo struct {
	ID             int
	PackageID      int
	CoreID         int
	L3CacheID      int
	ThreadSiblings []int
	IsFirstThread  bool
}

// GroupsSpanned returns the groups that contain at least one of cores.
func (t *CPUTopology) GroupsSpanned(cores coreset.CoreSet) []CoreGroup {
	var groups []CoreGroup
	for _, g := range t.CoreGroups {
		for _, core := range cores {
			if g.AllCPUs.Contains(core) {
				groups = append(groups, g)
				break
			}
		}
	}
	return groups
}

// Siblings returns SMT siblings of cores that are not themselves in cores.
func (t *CPUTopology) Siblings(cores coreset.CoreSet) coreset.CoreSet {
	var extra []int
	for _, info := range t.CPUs {
		if !cores.Contains(info.ID) {
			continue
		}
		for _, sib := range info.ThreadSiblings {
			if !cores.Contains(sib) {
				extra = append(extra, sib)
			}
		}
	}
	return coreset.Normalize(extra)
}
