package topology

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"affinity-warden/internal/coreset"
)

var ErrTopologyUnavailable = errors.New("topology unavailable")

// Detect reads the CPU layout from the live sysfs tree.
func Detect() (*CPUTopology, error) {
	return DetectAt(SysfsBasePath)
}

// DetectAt reads the CPU layout from a sysfs cpu directory rooted at base.
func DetectAt(base string) (*CPUTopology, error) {
	info, err := os.Stat(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: sysfs base path not found", ErrTopologyUnavailable)
		}
		if os.IsPermission(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTopologyUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: sysfs base path not a directory", ErrTopologyUnavailable)
	}

	cpuIDs, err := ListCPUs(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTopologyUnavailable, err)
	}
	if len(cpuIDs) == 0 {
		return nil, fmt.Errorf("%w: no CPUs found", ErrTopologyUnavailable)
	}

	online, err := readOnline(base, cpuIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTopologyUnavailable, err)
	}
	if len(online) == 0 {
		return nil, fmt.Errorf("%w: no online CPUs", ErrTopologyUnavailable)
	}

	infos := make([]CPUInfo, 0, len(online))
	for _, id := range online {
		info, err := readCPUInfo(base, id)
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrTopologyUnavailable, err)
		}
		infos = append(infos, *info)
	}

	return buildTopology(infos), nil
}

func buildTopology(infos []CPUInfo) *CPUTopology {
	totalCores := 0
	for _, info := range infos {
		if info.IsFirstThread {
			totalCores++
		}
	}

	method := "l3_cache"
	for _, info := range infos {
		if info.L3CacheID < 0 {
			method = "generic"
			break
		}
	}

	return &CPUTopology{
		TotalCPUs:    len(infos),
		TotalCores:   totalCores,
		HasSMT:       len(infos) > totalCores,
		CoreGroups:   groupByL3(infos, method),
		DetectMethod: method,
		Online:       onlineIDs(infos),
		CPUs:         infos,
	}
}

func readCPUInfo(base string, cpuID int) (*CPUInfo, error) {
	packageID, err := readOptionalInt(cpuPath(base, cpuID, "physical_package_id"), 0)
	if err != nil {
		return nil, err
	}
	coreID, err := readOptionalInt(cpuPath(base, cpuID, "core_id"), cpuID)
	if err != nil {
		return nil, err
	}

	l3CacheID, err := ReadL3CacheID(base, cpuID)
	if err != nil {
		l3CacheID = -1
	}

	siblings, err := readOptionalList(cpuPath(base, cpuID, "thread_siblings_list"), []int{cpuID})
	if err != nil {
		return nil, err
	}

	return &CPUInfo{
		ID:             cpuID,
		PackageID:      packageID,
		CoreID:         coreID,
		L3CacheID:      l3CacheID,
		ThreadSiblings: siblings,
		IsFirstThread:  len(siblings) == 0 || cpuID == siblings[0],
	}, nil
}

// groupByL3 puts every CPU sharing an L3 cache into one group. Without
// cache information all CPUs form a single group.
func groupByL3(cpus []CPUInfo, method string) []CoreGroup {
	type key struct {
		pkgID int
		l3ID  int
	}
	groups := make(map[key]*CoreGroup)

	for _, cpu := range cpus {
		groupKey := key{pkgID: cpu.PackageID, l3ID: cpu.L3CacheID}
		if method != "l3_cache" {
			groupKey = key{l3ID: -1}
		}
		cg, exists := groups[groupKey]
		if !exists {
			cg = &CoreGroup{PackageID: groupKey.pkgID, L3CacheID: groupKey.l3ID}
			groups[groupKey] = cg
		}
		cg.AllCPUs = append(cg.AllCPUs, cpu.ID)
		if cpu.IsFirstThread {
			cg.PhysicalCPUs = append(cg.PhysicalCPUs, cpu.ID)
		}
	}

	list := make([]CoreGroup, 0, len(groups))
	for _, cg := range groups {
		cg.AllCPUs = coreset.Normalize(cg.AllCPUs)
		cg.PhysicalCPUs = coreset.Normalize(cg.PhysicalCPUs)
		list = append(list, *cg)
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].PackageID == list[j].PackageID {
			return list[i].L3CacheID < list[j].L3CacheID
		}
		return list[i].PackageID < list[j].PackageID
	})

	for i := range list {
		list[i].ID = i
		if method == "l3_cache" {
			list[i].Name = fmt.Sprintf("L3 group %d", i)
		} else {
			list[i].Name = "All Cores"
		}
	}
	return list
}

// readOnline returns the CPUs listed in <base>/online that also have a cpuN
// directory. Offline CPUs keep their directory but drop out of this list.
// Without the file every listed CPU is assumed online.
func readOnline(base string, cpuIDs []int) (coreset.CoreSet, error) {
	listed, err := ReadListFile(filepath.Join(base, "online"))
	if err != nil {
		if os.IsNotExist(err) {
			return coreset.Normalize(cpuIDs), nil
		}
		return nil, err
	}
	present := coreset.Normalize(cpuIDs)
	online := make([]int, 0, len(listed))
	for _, id := range listed {
		if present.Contains(id) {
			online = append(online, id)
		}
	}
	return coreset.Normalize(online), nil
}

func onlineIDs(infos []CPUInfo) coreset.CoreSet {
	ids := make([]int, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.ID)
	}
	return coreset.Normalize(ids)
}

func readOptionalInt(path string, defaultValue int) (int, error) {
	value, err := ReadIntFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultValue, nil
		}
		return 0, err
	}
	return value, nil
}

func readOptionalList(path string, defaultValue []int) ([]int, error) {
	values, err := ReadListFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			copyValue := make([]int, len(defaultValue))
			copy(copyValue, defaultValue)
			return copyValue, nil
		}
		return nil, err
	}
	return values, nil
}
