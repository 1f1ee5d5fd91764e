// internal/engine/sort.go
package engine

// Less reports whether a must be ordered before b. Implementations must
// define a strict weak ordering.
type Less[T any] func(a, b T) bool

// Counting wraps less so every call increments the returned counter.
func Counting[T any](less Less[T]) (Less[T], *int) {
	n := new(int)
	return func(a, b T) bool {
		*n++
		return less(a, b)
	}, n
}

// BubbleSort sorts s in place and returns the number of swaps performed.
// Every pass scans its full range; there is no early exit on a sorted pass.
func BubbleSort[T any](s []T, less Less[T]) int {
	swaps := 0
	n := len(s)
	for i := 0; i < n-1; i++ {
		for j := 0; j < n-i-1; j++ {
			if less(s[j+1], s[j]) {
				s[j], s[j+1] = s[j+1], s[j]
				swaps++
			}
		}
	}
	return swaps
}

// QuickSort sorts s in place using last-element (Lomuto) partitioning and
// returns the number of swaps performed, pivot placements included.
func QuickSort[T any](s []T, less Less[T]) int {
	swaps := 0
	quickSort(s, 0, len(s)-1, less, &swaps)
	return swaps
}

func quickSort[T any](s []T, low, high int, less Less[T], swaps *int) {
	for low < high {
		p := partition(s, low, high, less, swaps)
		// Recurse into the smaller side to keep the stack logarithmic.
		if p-low < high-p {
			quickSort(s, low, p-1, less, swaps)
			low = p + 1
		} else {
			quickSort(s, p+1, high, less, swaps)
			high = p - 1
		}
	}
}

func partition[T any](s []T, low, high int, less Less[T], swaps *int) int {
	pivot := s[high]
	i := low - 1
	for j := low; j < high; j++ {
		if less(s[j], pivot) {
			i++
			s[i], s[j] = s[j], s[i]
			*swaps++
		}
	}
	s[i+1], s[high] = s[high], s[i+1]
	*swaps++
	return i + 1
}
