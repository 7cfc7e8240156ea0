package table

import (
	"sort"
	"strconv"
	"strings"
)

// CompareKeys orders key text numerically when both sides are numbers and
// lexically otherwise; numbers sort before text.
func CompareKeys(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// SortKeys sorts keys in place with CompareKeys
func SortKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool { return CompareKeys(keys[i], keys[j]) < 0 })
}
