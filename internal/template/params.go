package template

import "strings"

// Data-dependent node parameters. All of these are resolved during graph
// construction so edges and node configs carry only concrete values.

// threadBudget caps a step's thread count at the number of items it will
// process: extra threads beyond one-per-volume buy nothing. Floored at 1 so
// a degenerate empty list still yields a schedulable step.
func threadBudget(items, maxThreads int) int {
	n := items
	if maxThreads < n {
		n = maxThreads
	}
	if n < 1 {
		n = 1
	}
	return n
}

// iterationSchedule returns the bias-correction iteration schedule: five
// 50-iteration levels normally, three in sloppy mode.
func iterationSchedule(sloppy bool) []int {
	levels := 5
	if sloppy {
		levels -= 2
	}
	out := make([]int, levels)
	for i := range out {
		out[i] = 50
	}
	return out
}

// memoryBudgetGB estimates the registration step's peak memory: roughly two
// gigabytes per volume held in flight, minus the one shared with the
// evolving template.
func memoryBudgetGB(items int) float64 {
	return float64(2*items - 1)
}

// derivedFilename inserts suffix before the file extension, treating the
// compound ".nii.gz" extension as a unit.
func derivedFilename(base, suffix string) string {
	for _, ext := range []string{".nii.gz", ".nii"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext) + suffix + ext
		}
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		return base[:i] + suffix + base[i:]
	}
	return base + suffix
}
