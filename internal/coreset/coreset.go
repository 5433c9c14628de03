package coreset

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrParse      = errors.New("invalid core format")
	ErrValidation = errors.New("invalid core numbers")
)

// CoreSet is a sorted list of unique CPU indices.
type CoreSet []int

const specDelimiter = "-"

// Parse reads a hyphen-separated core list such as "0-2-4".
// Each token is a single core index, not a range.
func Parse(spec string) (CoreSet, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, fmt.Errorf("%w: empty core list, use hyphen-separated numbers (e.g. '0-2-4')", ErrParse)
	}

	parts := strings.Split(spec, specDelimiter)
	values := make([]int, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		value, err := strconv.Atoi(item)
		if err != nil || value < 0 {
			return nil, fmt.Errorf("%w: %q is not a core index, use hyphen-separated numbers (e.g. '0-2-4')", ErrParse, item)
		}
		values = append(values, value)
	}

	return Normalize(values), nil
}

// Validate checks that every core lies in [0, totalCores).
func Validate(cores CoreSet, totalCores int) (CoreSet, error) {
	for _, core := range cores {
		if core < 0 || core >= totalCores {
			return nil, fmt.Errorf("%w: core %d out of range, system has only %d cores", ErrValidation, core, totalCores)
		}
	}
	return cores, nil
}

// ValidateWithin checks that every core is one of the usable cores in online.
// It is Validate for systems whose online CPUs are not a dense range.
func ValidateWithin(cores, online CoreSet) (CoreSet, error) {
	for _, core := range cores {
		if !online.Contains(core) {
			return nil, fmt.Errorf("%w: core %d is not online, usable cores are %s", ErrValidation, core, online.Format())
		}
	}
	return cores, nil
}

// Default picks the reserved cores when none are given on the command line.
func Default(totalCores int) CoreSet {
	switch {
	case totalCores <= 4:
		return CoreSet{0}
	case totalCores <= 8:
		return CoreSet{0, 1}
	}

	count := totalCores / 4
	if count < 2 {
		count = 2
	}
	if count > 4 {
		count = 4
	}
	return Range(0, count)
}

// Range returns the cores [start, end).
func Range(start, end int) CoreSet {
	if end <= start {
		return CoreSet{}
	}
	result := make(CoreSet, 0, end-start)
	for i := start; i < end; i++ {
		result = append(result, i)
	}
	return result
}

// Normalize sorts and dedupes a raw core list, for example one returned by the OS.
func Normalize(values []int) CoreSet {
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	return CoreSet(dedupeSorted(sorted))
}

// Complement returns every core in [0, totalCores) not present in c.
func (c CoreSet) Complement(totalCores int) CoreSet {
	result := make(CoreSet, 0, totalCores)
	for i := 0; i < totalCores; i++ {
		if !c.Contains(i) {
			result = append(result, i)
		}
	}
	return result
}

// Difference returns the cores of c that are not in other.
func (c CoreSet) Difference(other CoreSet) CoreSet {
	result := make(CoreSet, 0, len(c))
	for _, core := range c {
		if !other.Contains(core) {
			result = append(result, core)
		}
	}
	return result
}

// Pick returns the cores of c at the given positions, skipping positions past the end.
func (c CoreSet) Pick(positions CoreSet) CoreSet {
	result := make(CoreSet, 0, len(positions))
	for _, pos := range positions {
		if pos >= 0 && pos < len(c) {
			result = append(result, c[pos])
		}
	}
	return result
}

func (c CoreSet) Contains(core int) bool {
	idx := sort.SearchInts(c, core)
	return idx < len(c) && c[idx] == core
}

func (c CoreSet) Equal(other CoreSet) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every core in c is also in other.
// An empty set is a subset of anything.
func (c CoreSet) SubsetOf(other CoreSet) bool {
	for _, core := range c {
		if !other.Contains(core) {
			return false
		}
	}
	return true
}

func (c CoreSet) Ints() []int {
	result := make([]int, len(c))
	copy(result, c)
	return result
}

// Format renders the set in compact range form, e.g. "0-3,8,10-11".
func (c CoreSet) Format() string {
	if len(c) == 0 {
		return ""
	}
	sorted := Normalize(c)

	parts := make([]string, 0, len(sorted))
	start := sorted[0]
	prev := sorted[0]
	for i := 1; i < len(sorted); i++ {
		current := sorted[i]
		if current == prev+1 {
			prev = current
			continue
		}
		parts = append(parts, formatRange(start, prev))
		start = current
		prev = current
	}
	parts = append(parts, formatRange(start, prev))

	return strings.Join(parts, ",")
}

func (c CoreSet) String() string {
	items := make([]string, 0, len(c))
	for _, core := range c {
		items = append(items, strconv.Itoa(core))
	}
	return "[" + strings.Join(items, " ") + "]"
}

func formatRange(start, end int) string {
	if start == end {
		return strconv.Itoa(start)
	}
	return strconv.Itoa(start) + "-" + strconv.Itoa(end)
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
