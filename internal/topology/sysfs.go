package topology

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const SysfsBasePath = "/sys/devices/system/cpu"

func ReadIntFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return 0, errors.New("empty file")
	}
	return strconv.Atoi(value)
}

// ReadListFile parses the kernel's cpulist format, e.g. "0-3,8,10-11".
func ReadListFile(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCPUList(string(data))
}

func ParseCPUList(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []int{}, nil
	}

	var values []int
	for _, part := range strings.Split(raw, ",") {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		if !strings.Contains(item, "-") {
			parsed, err := strconv.Atoi(item)
			if err != nil {
				return nil, err
			}
			values = append(values, parsed)
			continue
		}

		bounds := strings.SplitN(item, "-", 2)
		start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
		if err != nil {
			return nil, err
		}
		end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err != nil {
			return nil, err
		}
		if end < start {
			return nil, errors.New("range end before start")
		}
		for i := start; i <= end; i++ {
			values = append(values, i)
		}
	}

	sort.Ints(values)
	return dedupeSorted(values), nil
}

// ListCPUs returns the IDs of the cpuN directories under base.
func ListCPUs(base string) ([]int, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}

	cpus := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		suffix, ok := strings.CutPrefix(entry.Name(), "cpu")
		if !ok || suffix == "" {
			continue
		}
		id, err := strconv.Atoi(suffix)
		if err != nil || id < 0 {
			continue
		}
		cpus = append(cpus, id)
	}

	sort.Ints(cpus)
	return cpus, nil
}

func cpuPath(base string, cpuID int, element string) string {
	return filepath.Join(base, "cpu"+strconv.Itoa(cpuID), "topology", element)
}

// ReadL3CacheID finds the level 3 cache index of a CPU and returns its id.
func ReadL3CacheID(base string, cpuID int) (int, error) {
	cacheBase := filepath.Join(base, "cpu"+strconv.Itoa(cpuID), "cache")
	entries, err := os.ReadDir(cacheBase)
	if err != nil {
		return -1, err
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "index") {
			continue
		}
		level, err := ReadIntFile(filepath.Join(cacheBase, entry.Name(), "level"))
		if err != nil || level != 3 {
			continue
		}
		return ReadIntFile(filepath.Join(cacheBase, entry.Name(), "id"))
	}

	return -1, errors.New("L3 cache not found")
}

func dedupeSorted(values []int) []int {
	if len(values) == 0 {
		return values
	}
	result := make([]int, 0, len(values))
	last := values[0] - 1
	for _, value := range values {
		if value == last {
			continue
		}
		result = append(result, value)
		last = value
	}
	return result
}
