// internal/catalog/domain.go
package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"shelfsort/internal/engine"
)

var (
	ErrBookNotFound       = errors.New("book not found")
	ErrInsufficientCopies = errors.New("insufficient copies available")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrUnknownAlgorithm   = errors.New("unknown algorithm")
	ErrUnknownOrder       = errors.New("unknown sort order")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrTooManyIDs         = errors.New("too many ids")
)

// MaxLookupIDs bounds the number of ids a single search may look up.
const MaxLookupIDs = 100_000

// Book is one catalog entry.
type Book struct {
	ID              int     `json:"id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	YearPublished   int     `json:"year_published"`
	Genre           string  `json:"genre"`
	Price           float64 `json:"price"`
	CopiesAvailable int     `json:"copies_available"`
	Rating          float64 `json:"rating"`
}

// BookID is the key the search engine looks books up by.
func BookID(b Book) int { return b.ID }

// ByID is the canonical ordering: ascending book id.
func ByID(a, b Book) bool { return a.ID < b.ID }

func ByTitle(a, b Book) bool { return a.Title < b.Title }

func ByYear(a, b Book) bool { return a.YearPublished < b.YearPublished }

func ByPrice(a, b Book) bool { return a.Price < b.Price }

func ByRating(a, b Book) bool { return a.Rating < b.Rating }

// Order names an ordering of books.
type Order string

const (
	OrderID     Order = "id"
	OrderTitle  Order = "title"
	OrderYear   Order = "year"
	OrderPrice  Order = "price"
	OrderRating Order = "rating"
)

var orders = map[Order]engine.Less[Book]{
	OrderID:     ByID,
	OrderTitle:  ByTitle,
	OrderYear:   ByYear,
	OrderPrice:  ByPrice,
	OrderRating: ByRating,
}

// Comparator returns the ordering registered under o.
func (o Order) Comparator() (engine.Less[Book], error) {
	less, ok := orders[o.normalized()]
	if !ok {
		return nil, ErrUnknownOrder
	}
	return less, nil
}

func (o Order) normalized() Order {
	return Order(strings.ToLower(strings.TrimSpace(string(o))))
}

// Algorithm names a sort or search routine.
type Algorithm string

const (
	AlgorithmBubble Algorithm = "bubble"
	AlgorithmQuick  Algorithm = "quick"
	AlgorithmLinear Algorithm = "linear"
	AlgorithmBinary Algorithm = "binary"
)

func (a Algorithm) normalized() Algorithm {
	return Algorithm(strings.ToLower(strings.TrimSpace(string(a))))
}

// SortResult describes a completed sort run.
type SortResult struct {
	RunID       uuid.UUID     `json:"run_id"`
	Algorithm   Algorithm     `json:"algorithm"`
	Order       Order         `json:"order"`
	Size        int           `json:"size"`
	Swaps       int           `json:"swaps"`
	Comparisons int           `json:"comparisons"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// Probe is the outcome of looking up a single id.
type Probe struct {
	ID          int  `json:"id"`
	Found       bool `json:"found"`
	Index       int  `json:"index"`
	Comparisons int  `json:"comparisons"`
}

// SearchResult describes a completed batch of lookups.
type SearchResult struct {
	RunID       uuid.UUID     `json:"run_id"`
	Algorithm   Algorithm     `json:"algorithm"`
	Size        int           `json:"size"`
	Probes      []Probe       `json:"probes"`
	Found       int           `json:"found"`
	Comparisons int           `json:"comparisons"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	// SortedByID is false when binary search ran on a catalog not ordered
	// by id; misses in that case may be false negatives.
	SortedByID bool `json:"sorted_by_id"`
}

// PurchaseReceipt is returned for a successful purchase.
type PurchaseReceipt struct {
	BookID          int     `json:"book_id"`
	Quantity        int     `json:"quantity"`
	TotalCost       float64 `json:"total_cost"`
	CopiesRemaining int     `json:"copies_remaining"`
}

// Run is a sort or search run as kept in the run log.
type Run struct {
	ID        uuid.UUID     `json:"id"`
	Kind      string        `json:"kind"`
	Algorithm Algorithm     `json:"algorithm"`
	Order     Order         `json:"order,omitempty"`
	Size      int           `json:"size"`
	Probes    int           `json:"probes,omitempty"`
	Count     int           `json:"count"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	CreatedAt time.Time     `json:"created_at"`
}

// RunStats aggregates the run log per kind and algorithm.
type RunStats struct {
	Kind       string        `json:"kind"`
	Algorithm  Algorithm     `json:"algorithm"`
	Runs       int           `json:"runs"`
	AvgCount   float64       `json:"avg_count"`
	AvgElapsed time.Duration `json:"avg_elapsed_ns"`
}

const (
	RunKindSort   = "sort"
	RunKindSearch = "search"
)
