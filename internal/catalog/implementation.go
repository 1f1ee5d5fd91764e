// internal/catalog/implementation.go
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"shelfsort/internal/engine"
)

// DisplayLimit is how many books Books returns when no limit is given.
const DisplayLimit = 100

// ErrRunLogDisabled is returned by run queries when no recorder is configured.
var ErrRunLogDisabled = errors.New("run log disabled")

// Options configures a catalog service.
type Options struct {
	// Size is the number of generated books. Ignored when Books is set.
	Size int
	// Seed seeds the generator; zero picks a time based seed.
	Seed int64
	// Books, when non-nil, becomes the catalog. The service takes ownership.
	Books []Book
	// Runs receives every sort and search run. Optional.
	Runs RunRecorder
	// PurchasesPerMinute caps Purchase calls; zero means unlimited.
	PurchasesPerMinute int
	// MeterProvider records run metrics. Nil uses the global provider.
	MeterProvider metric.MeterProvider
	Logger        *slog.Logger
}

// service implements the Service interface. The engine itself is
// unsynchronized; mu serializes sorts and purchases against readers.
type service struct {
	mu         sync.RWMutex
	books      []Book
	sortedByID bool
	size       int
	gen        *Generator

	runs    RunRecorder
	limiter *rate.Limiter
	logger  *slog.Logger
	tracer  trace.Tracer

	swaps       metric.Int64Counter
	comparisons metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewService creates a new catalog service instance.
func NewService(opts Options) (Service, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &service{
		gen:     NewGenerator(seed),
		runs:    opts.Runs,
		limiter: newPurchaseLimiter(opts.PurchasesPerMinute),
		logger:  logger.With("component", "catalog"),
		tracer:  otel.Tracer("shelfsort/catalog"),
	}

	if opts.Books != nil {
		s.books = opts.Books
		s.size = len(opts.Books)
		s.sortedByID = slices.IsSortedFunc(s.books, func(a, b Book) int { return a.ID - b.ID })
	} else {
		if opts.Size < 0 {
			return nil, fmt.Errorf("catalog size must not be negative, got %d", opts.Size)
		}
		s.size = opts.Size
		s.fill()
	}

	meters := opts.MeterProvider
	if meters == nil {
		meters = otel.GetMeterProvider()
	}
	if err := s.initMetrics(meters.Meter("shelfsort/catalog")); err != nil {
		return nil, err
	}
	return s, nil
}

func newPurchaseLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

func (s *service) initMetrics(meter metric.Meter) error {
	var err error
	if s.swaps, err = meter.Int64Counter("catalog.sort.swaps",
		metric.WithDescription("Element swaps performed by sort runs")); err != nil {
		return fmt.Errorf("create swaps counter: %w", err)
	}
	if s.comparisons, err = meter.Int64Counter("catalog.comparisons",
		metric.WithDescription("Comparisons performed by sort and search runs")); err != nil {
		return fmt.Errorf("create comparisons counter: %w", err)
	}
	if s.duration, err = meter.Float64Histogram("catalog.run.duration",
		metric.WithDescription("Wall clock time of sort and search runs"),
		metric.WithUnit("ms")); err != nil {
		return fmt.Errorf("create duration histogram: %w", err)
	}
	return nil
}

// fill replaces the catalog with generated, shuffled books. Callers hold mu.
func (s *service) fill() {
	s.books = s.gen.Books(s.size)
	s.gen.Shuffle(s.books)
	s.sortedByID = len(s.books) <= 1
}

// Books returns a copy of the first limit books in catalog order.
func (s *service) Books(ctx context.Context, limit int) ([]Book, error) {
	_, span := s.tracer.Start(ctx, "catalog.books", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	if limit <= 0 {
		limit = DisplayLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.books[:min(limit, len(s.books))]), nil
}

// Sort reorders the catalog in place with the named algorithm and order.
func (s *service) Sort(ctx context.Context, algorithm Algorithm, order Order) (*SortResult, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.sort",
		trace.WithAttributes(
			attribute.String("sort.algorithm", string(algorithm)),
			attribute.String("sort.order", string(order)),
		),
	)
	defer span.End()

	less, err := order.Comparator()
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, order)
	}
	algorithm = algorithm.normalized()
	var sortFn func([]Book, engine.Less[Book]) int
	switch algorithm {
	case AlgorithmBubble:
		sortFn = engine.BubbleSort[Book]
	case AlgorithmQuick:
		sortFn = engine.QuickSort[Book]
	default:
		return nil, fmt.Errorf("%w: %q is not a sort", ErrUnknownAlgorithm, algorithm)
	}

	counted, comparisons := engine.Counting(less)

	s.mu.Lock()
	size := len(s.books)
	start := time.Now()
	swaps := sortFn(s.books, counted)
	elapsed := time.Since(start)
	s.sortedByID = order.normalized() == OrderID || size <= 1
	s.mu.Unlock()

	result := &SortResult{
		RunID:       uuid.New(),
		Algorithm:   algorithm,
		Order:       order.normalized(),
		Size:        size,
		Swaps:       swaps,
		Comparisons: *comparisons,
		Elapsed:     elapsed,
	}

	attrs := metric.WithAttributes(attribute.String("algorithm", string(algorithm)))
	s.swaps.Add(ctx, int64(swaps), attrs)
	s.comparisons.Add(ctx, int64(*comparisons), attrs)
	s.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	span.SetAttributes(
		attribute.Int("sort.size", size),
		attribute.Int("sort.swaps", swaps),
		attribute.Int("sort.comparisons", *comparisons),
	)

	s.logger.InfoContext(ctx, "sort completed",
		"run_id", result.RunID, "algorithm", algorithm, "order", result.Order,
		"size", size, "swaps", swaps, "comparisons", *comparisons, "elapsed", elapsed)

	s.record(ctx, Run{
		ID:        result.RunID,
		Kind:      RunKindSort,
		Algorithm: algorithm,
		Order:     result.Order,
		Size:      size,
		Count:     swaps,
		Elapsed:   elapsed,
	})
	return result, nil
}

// Search looks up every id with the named algorithm.
func (s *service) Search(ctx context.Context, algorithm Algorithm, ids []int) (*SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.search",
		trace.WithAttributes(
			attribute.String("search.algorithm", string(algorithm)),
			attribute.Int("search.probes", len(ids)),
		),
	)
	defer span.End()

	algorithm = algorithm.normalized()
	if algorithm != AlgorithmLinear && algorithm != AlgorithmBinary {
		return nil, fmt.Errorf("%w: %q is not a search", ErrUnknownAlgorithm, algorithm)
	}
	if len(ids) > MaxLookupIDs {
		return nil, fmt.Errorf("%w: %d ids, at most %d", ErrTooManyIDs, len(ids), MaxLookupIDs)
	}

	result := &SearchResult{
		RunID:     uuid.New(),
		Algorithm: algorithm,
		Probes:    make([]Probe, len(ids)),
	}

	s.mu.RLock()
	result.Size = len(s.books)
	result.SortedByID = s.sortedByID
	start := time.Now()
	for i, id := range ids {
		p := Probe{ID: id, Index: engine.NotFound}
		if algorithm == AlgorithmLinear {
			p.Found, p.Comparisons = engine.LinearSearch(s.books, BookID, id)
		} else {
			p.Index, p.Comparisons = engine.BinarySearch(s.books, BookID, id)
			p.Found = p.Index != engine.NotFound
		}
		result.Probes[i] = p
	}
	result.Elapsed = time.Since(start)
	s.mu.RUnlock()

	for _, p := range result.Probes {
		result.Comparisons += p.Comparisons
		if p.Found {
			result.Found++
		}
	}

	if algorithm == AlgorithmBinary && !result.SortedByID {
		s.logger.WarnContext(ctx, "binary search on a catalog not sorted by id; misses may be false negatives",
			"run_id", result.RunID)
	}

	attrs := metric.WithAttributes(attribute.String("algorithm", string(algorithm)))
	s.comparisons.Add(ctx, int64(result.Comparisons), attrs)
	s.duration.Record(ctx, float64(result.Elapsed)/float64(time.Millisecond), attrs)
	span.SetAttributes(
		attribute.Int("search.found", result.Found),
		attribute.Int("search.comparisons", result.Comparisons),
		attribute.Bool("search.sorted_by_id", result.SortedByID),
	)

	s.logger.InfoContext(ctx, "search completed",
		"run_id", result.RunID, "algorithm", algorithm, "probes", len(ids),
		"found", result.Found, "comparisons", result.Comparisons, "elapsed", result.Elapsed)

	s.record(ctx, Run{
		ID:        result.RunID,
		Kind:      RunKindSearch,
		Algorithm: algorithm,
		Size:      result.Size,
		Probes:    len(ids),
		Count:     result.Comparisons,
		Elapsed:   result.Elapsed,
	})
	return result, nil
}

// record appends run to the run log. Failures are logged, not returned:
// the run already happened.
func (s *service) record(ctx context.Context, run Run) {
	if s.runs == nil {
		return
	}
	run.CreatedAt = time.Now().UTC()
	if err := s.runs.Append(ctx, run); err != nil {
		s.logger.ErrorContext(ctx, "failed to record run", "run_id", run.ID, "error", err)
	}
}

// ProbeIDs draws n random ids, some beyond the end of the catalog.
func (s *service) ProbeIDs(ctx context.Context, n int) ([]int, error) {
	if n < 0 {
		return nil, fmt.Errorf("probe count must not be negative, got %d", n)
	}
	if n > MaxLookupIDs {
		return nil, fmt.Errorf("%w: %d requested, at most %d", ErrTooManyIDs, n, MaxLookupIDs)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen.ProbeIDs(n, len(s.books)), nil
}

// TotalValue sums price times available copies over the catalog.
func (s *service) TotalValue(ctx context.Context) (float64, error) {
	_, span := s.tracer.Start(ctx, "catalog.total_value")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0.0
	for _, b := range s.books {
		total += b.Price * float64(b.CopiesAvailable)
	}
	return total, nil
}

// HighlyRated returns books rated strictly above threshold, in catalog order.
func (s *service) HighlyRated(ctx context.Context, threshold float64) ([]Book, error) {
	_, span := s.tracer.Start(ctx, "catalog.highly_rated",
		trace.WithAttributes(attribute.Float64("threshold", threshold)))
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rated []Book
	for _, b := range s.books {
		if b.Rating > threshold {
			rated = append(rated, b)
		}
	}
	span.SetAttributes(attribute.Int("books.matched", len(rated)))
	return rated, nil
}

// Purchase removes quantity copies of a book from stock.
func (s *service) Purchase(ctx context.Context, bookID, quantity int) (*PurchaseReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.purchase",
		trace.WithAttributes(
			attribute.Int("book.id", bookID),
			attribute.Int("quantity", quantity),
		),
	)
	defer span.End()

	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(bookID)
	if i == engine.NotFound {
		return nil, fmt.Errorf("book %d: %w", bookID, ErrBookNotFound)
	}
	book := &s.books[i]
	if book.CopiesAvailable < quantity {
		return nil, fmt.Errorf("book %d has %d copies, %d requested: %w",
			bookID, book.CopiesAvailable, quantity, ErrInsufficientCopies)
	}
	book.CopiesAvailable -= quantity

	receipt := &PurchaseReceipt{
		BookID:          bookID,
		Quantity:        quantity,
		TotalCost:       book.Price * float64(quantity),
		CopiesRemaining: book.CopiesAvailable,
	}
	s.logger.InfoContext(ctx, "purchase completed",
		"book_id", bookID, "quantity", quantity, "total_cost", receipt.TotalCost)
	return receipt, nil
}

// indexOf locates id, using binary search when the catalog is known to be
// sorted by id. Callers hold mu.
func (s *service) indexOf(id int) int {
	if s.sortedByID {
		i, _ := engine.BinarySearch(s.books, BookID, id)
		return i
	}
	for i := range s.books {
		if s.books[i].ID == id {
			return i
		}
	}
	return engine.NotFound
}

var csvHeader = []string{"BookID", "Title", "Author", "YearPublished", "Genre", "Price", "CopiesAvailable", "Rating"}

// ExportCSV writes the catalog as CSV in its current order.
func (s *service) ExportCSV(ctx context.Context, w io.Writer) error {
	_, span := s.tracer.Start(ctx, "catalog.export_csv")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, b := range s.books {
		if err := writer.Write(bookRecord(b)); err != nil {
			return fmt.Errorf("write book %d: %w", b.ID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	span.SetAttributes(attribute.Int("books.exported", len(s.books)))
	return nil
}

func bookRecord(b Book) []string {
	return []string{
		strconv.Itoa(b.ID),
		b.Title,
		b.Author,
		strconv.Itoa(b.YearPublished),
		b.Genre,
		strconv.FormatFloat(b.Price, 'f', -1, 64),
		strconv.Itoa(b.CopiesAvailable),
		strconv.FormatFloat(b.Rating, 'f', -1, 64),
	}
}

// Regenerate replaces the catalog with freshly generated books.
func (s *service) Regenerate(ctx context.Context, seed int64) error {
	_, span := s.tracer.Start(ctx, "catalog.regenerate", trace.WithAttributes(attribute.Int64("seed", seed)))
	defer span.End()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = NewGenerator(seed)
	s.fill()
	s.logger.InfoContext(ctx, "catalog regenerated", "size", s.size, "seed", seed)
	return nil
}

// Runs returns the most recent runs from the run log.
func (s *service) Runs(ctx context.Context, limit int) ([]Run, error) {
	if s.runs == nil {
		return nil, ErrRunLogDisabled
	}
	return s.runs.List(ctx, limit)
}

// RunSummary returns per-algorithm averages from the run log.
func (s *service) RunSummary(ctx context.Context) ([]RunStats, error) {
	if s.runs == nil {
		return nil, ErrRunLogDisabled
	}
	return s.runs.Summary(ctx)
}
