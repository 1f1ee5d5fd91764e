// internal/engine/search.go
package engine

// NotFound is the index BinarySearch returns when the target is absent.
const NotFound = -1

// LinearSearch scans s from the front for an element whose key equals
// target. comparisons counts every element inspected.
func LinearSearch[T any](s []T, key func(T) int, target int) (found bool, comparisons int) {
	for i := range s {
		comparisons++
		if key(s[i]) == target {
			return true, comparisons
		}
	}
	return false, comparisons
}

// BinarySearch looks for target in s, which must already be sorted
// ascending by key. Unsorted input is not detected and may yield a false
// NotFound. One comparison is counted per probe of the window.
func BinarySearch[T any](s []T, key func(T) int, target int) (index int, comparisons int) {
	left, right := 0, len(s)-1
	for left <= right {
		mid := left + (right-left)/2
		comparisons++
		k := key(s[mid])
		switch {
		case k == target:
			return mid, comparisons
		case k < target:
			left = mid + 1
		default:
			right = mid - 1
		}
	}
	return NotFound, comparisons
}
