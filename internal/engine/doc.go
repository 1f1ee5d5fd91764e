// internal/engine/doc.go

// Package engine holds the instrumented sort and search routines the
// inventory is built around.
//
// Sorts take the ordering as a parameter and report the number of element
// swaps they performed; searches take a key extractor and report the number
// of key comparisons. Nothing here prints, times, allocates a copy of the
// input or locks: callers own the slice for the duration of the call and
// layer timing and synchronization on top.
package engine
