package differenceutil

import "sort"

// DifferenceAndIntersectionStrings splits two string sets, each result sorted.
// O(len(src) + len(des))
func DifferenceAndIntersectionStrings(src, des []string) (onlySrc, intersection, onlyDes []string) {
	m := make(map[string]uint8)
	for _, k := range src {
		m[k] |= 1 << 0
	}
	for _, k := range des {
		m[k] |= 1 << 1
	}

	for k, v := range m {
		a := v&(1<<0) != 0
		b := v&(1<<1) != 0
		switch {
		case a && b:
			intersection = append(intersection, k)
		case a && !b:
			onlySrc = append(onlySrc, k)
		case !a && b:
			onlyDes = append(onlyDes, k)
		}
	}
	sort.Strings(onlySrc)
	sort.Strings(intersection)
	sort.Strings(onlyDes)
	return
}

// Keys returns the keys of m in sorted order.
func Keys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
