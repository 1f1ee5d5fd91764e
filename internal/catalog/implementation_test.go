package catalog

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewServiceGeneratesShuffledCatalog(t *testing.T) {
	svc := newTestService(t, Options{Size: 500, Seed: 7})

	books, err := svc.Books(context.Background(), 1000)
	require.NoError(t, err)
	require.Len(t, books, 500)

	ids := bookIDs(books)
	assert.False(t, slices.IsSorted(ids), "generated catalog should start unsorted")
	slices.Sort(ids)
	for i, id := range ids {
		require.Equal(t, i+1, id)
	}
	for _, b := range books {
		assert.GreaterOrEqual(t, b.YearPublished, 1900)
		assert.LessOrEqual(t, b.YearPublished, 2024)
		assert.GreaterOrEqual(t, b.Price, 100.0)
		assert.LessOrEqual(t, b.Price, 1000.0)
		assert.GreaterOrEqual(t, b.CopiesAvailable, 1)
		assert.LessOrEqual(t, b.CopiesAvailable, 20)
		assert.GreaterOrEqual(t, b.Rating, 0.1)
		assert.LessOrEqual(t, b.Rating, 10.0)
	}
}

func TestNewServiceRejectsNegativeSize(t *testing.T) {
	_, err := NewService(Options{Size: -1, Logger: quietLogger()})
	assert.Error(t, err)
}

func TestBooksLimit(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(3, 1, 2)})

	books, err := svc.Books(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, bookIDs(books))

	books, err = svc.Books(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, books, 3)

	// Returned slices are copies.
	books[0].Title = "changed"
	again, _ := svc.Books(context.Background(), 1)
	assert.Equal(t, "Book 3", again[0].Title)
}

func TestSortBubble(t *testing.T) {
	runs := &memRuns{}
	svc := newTestService(t, Options{Books: sampleBooks(5, 3, 1, 4, 2), Runs: runs})

	result, err := svc.Sort(context.Background(), AlgorithmBubble, OrderID)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Swaps)
	assert.Equal(t, 10, result.Comparisons)
	assert.Equal(t, 5, result.Size)
	assert.Equal(t, OrderID, result.Order)
	assert.NotZero(t, result.RunID)

	books, _ := svc.Books(context.Background(), 0)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, bookIDs(books))

	recorded := runs.snapshot()
	require.Len(t, recorded, 1)
	assert.Equal(t, result.RunID, recorded[0].ID)
	assert.Equal(t, RunKindSort, recorded[0].Kind)
	assert.Equal(t, 7, recorded[0].Count)
	assert.False(t, recorded[0].CreatedAt.IsZero())
}

func TestSortQuickAlternativeOrder(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(5, 3, 1, 4, 2)})

	result, err := svc.Sort(context.Background(), AlgorithmQuick, "Rating")
	require.NoError(t, err)
	assert.Equal(t, OrderRating, result.Order)

	books, _ := svc.Books(context.Background(), 0)
	assert.True(t, slices.IsSortedFunc(books, func(a, b Book) int {
		switch {
		case a.Rating < b.Rating:
			return -1
		case a.Rating > b.Rating:
			return 1
		}
		return 0
	}))
}

func TestSortErrors(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(2, 1)})

	_, err := svc.Sort(context.Background(), "heap", OrderID)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = svc.Sort(context.Background(), AlgorithmBinary, OrderID)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = svc.Sort(context.Background(), AlgorithmQuick, "isbn")
	assert.ErrorIs(t, err, ErrUnknownOrder)

	books, _ := svc.Books(context.Background(), 0)
	assert.Equal(t, []int{2, 1}, bookIDs(books), "failed sorts must not touch the catalog")
}

func TestSearchLinear(t *testing.T) {
	runs := &memRuns{}
	svc := newTestService(t, Options{Books: sampleBooks(5, 4, 3, 2, 1), Runs: runs})

	result, err := svc.Search(context.Background(), AlgorithmLinear, []int{1, 5, 42})
	require.NoError(t, err)
	require.Len(t, result.Probes, 3)

	assert.Equal(t, Probe{ID: 1, Found: true, Index: -1, Comparisons: 5}, result.Probes[0])
	assert.Equal(t, Probe{ID: 5, Found: true, Index: -1, Comparisons: 1}, result.Probes[1])
	assert.Equal(t, Probe{ID: 42, Found: false, Index: -1, Comparisons: 5}, result.Probes[2])
	assert.Equal(t, 2, result.Found)
	assert.Equal(t, 11, result.Comparisons)
	assert.False(t, result.SortedByID)

	recorded := runs.snapshot()
	require.Len(t, recorded, 1)
	assert.Equal(t, RunKindSearch, recorded[0].Kind)
	assert.Equal(t, 3, recorded[0].Probes)
	assert.Equal(t, 11, recorded[0].Count)
}

func TestSearchBinaryAfterSort(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(5, 3, 1, 4, 2)})

	_, err := svc.Sort(context.Background(), AlgorithmQuick, OrderID)
	require.NoError(t, err)

	result, err := svc.Search(context.Background(), AlgorithmBinary, []int{3, 6, 1, 5})
	require.NoError(t, err)
	assert.True(t, result.SortedByID)
	assert.Equal(t, []Probe{
		{ID: 3, Found: true, Index: 2, Comparisons: 1},
		{ID: 6, Found: false, Index: -1, Comparisons: 3},
		{ID: 1, Found: true, Index: 0, Comparisons: 2},
		{ID: 5, Found: true, Index: 4, Comparisons: 3},
	}, result.Probes)
	assert.Equal(t, 9, result.Comparisons)
}

func TestSearchBinaryReportsBrokenPrecondition(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(1, 2, 3, 4, 5)})
	require.True(t, svc.sortedByID)

	_, err := svc.Sort(context.Background(), AlgorithmBubble, OrderTitle)
	require.NoError(t, err)

	result, err := svc.Search(context.Background(), AlgorithmBinary, []int{1})
	require.NoError(t, err)
	assert.False(t, result.SortedByID)
}

func TestSearchEmptyCatalog(t *testing.T) {
	svc := newTestService(t, Options{Books: []Book{}})

	for _, alg := range []Algorithm{AlgorithmLinear, AlgorithmBinary} {
		result, err := svc.Search(context.Background(), alg, []int{1})
		require.NoError(t, err)
		assert.False(t, result.Probes[0].Found)
		assert.Zero(t, result.Comparisons)
	}

	for _, alg := range []Algorithm{AlgorithmBubble, AlgorithmQuick} {
		result, err := svc.Sort(context.Background(), alg, OrderID)
		require.NoError(t, err)
		assert.Zero(t, result.Swaps)
	}
}

func TestSearchUnknownAlgorithm(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(1)})
	_, err := svc.Search(context.Background(), AlgorithmQuick, []int{1})
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestRunLogFailureDoesNotFailRun(t *testing.T) {
	runs := &memRuns{err: errors.New("disk full")}
	svc := newTestService(t, Options{Books: sampleBooks(2, 1), Runs: runs})

	result, err := svc.Sort(context.Background(), AlgorithmQuick, OrderID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Swaps)
}

func TestRunsWithoutRecorder(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(1)})

	_, err := svc.Runs(context.Background(), 10)
	assert.ErrorIs(t, err, ErrRunLogDisabled)
	_, err = svc.RunSummary(context.Background())
	assert.ErrorIs(t, err, ErrRunLogDisabled)
}

func TestProbeIDs(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(1, 2, 3)})

	ids, err := svc.ProbeIDs(context.Background(), 200)
	require.NoError(t, err)
	require.Len(t, ids, 200)
	for _, id := range ids {
		assert.GreaterOrEqual(t, id, 1)
		assert.LessOrEqual(t, id, 3+probeOverflow)
	}

	_, err = svc.ProbeIDs(context.Background(), -1)
	assert.Error(t, err)
}

func TestTotalValueAndHighlyRated(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(1, 2, 3, 4, 5)})

	total, err := svc.TotalValue(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 550.0, total, 1e-9)

	rated, err := svc.HighlyRated(context.Background(), 4.5)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, bookIDs(rated))

	rated, err = svc.HighlyRated(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, rated)
}

func TestPurchase(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(3, 1, 2)})
	ctx := context.Background()

	receipt, err := svc.Purchase(ctx, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, &PurchaseReceipt{BookID: 3, Quantity: 2, TotalCost: 60, CopiesRemaining: 1}, receipt)

	_, err = svc.Purchase(ctx, 3, 2)
	assert.ErrorIs(t, err, ErrInsufficientCopies)

	_, err = svc.Purchase(ctx, 99, 1)
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = svc.Purchase(ctx, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	total, _ := svc.TotalValue(ctx)
	assert.InDelta(t, 30.0+10+40, total, 1e-9)
}

func TestPurchaseUsesBinarySearchWhenSorted(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(4, 2, 5, 1, 3)})
	ctx := context.Background()

	_, err := svc.Sort(ctx, AlgorithmQuick, OrderID)
	require.NoError(t, err)

	for id := 1; id <= 5; id++ {
		receipt, err := svc.Purchase(ctx, id, 1)
		require.NoError(t, err)
		assert.Equal(t, id-1, receipt.CopiesRemaining)
	}
}

func TestPurchaseRateLimit(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(10), PurchasesPerMinute: 1})

	_, err := svc.Purchase(context.Background(), 10, 1)
	require.NoError(t, err)
	_, err = svc.Purchase(context.Background(), 10, 1)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestExportCSV(t *testing.T) {
	svc := newTestService(t, Options{Books: []Book{
		{ID: 2, Title: "War, and Peace", Author: "Leo Tolstoy", YearPublished: 1869, Genre: "Drama", Price: 100, CopiesAvailable: 4, Rating: 9.1},
		{ID: 1, Title: "Moby Dick", Author: "Herman Melville", YearPublished: 1851, Genre: "Adventure", Price: 523, CopiesAvailable: 3, Rating: 7.5},
	}})

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), &buf))
	assert.Equal(t,
		"BookID,Title,Author,YearPublished,Genre,Price,CopiesAvailable,Rating\n"+
			"2,\"War, and Peace\",Leo Tolstoy,1869,Drama,100,4,9.1\n"+
			"1,Moby Dick,Herman Melville,1851,Adventure,523,3,7.5\n",
		buf.String())
}

func TestRegenerateIsDeterministicPerSeed(t *testing.T) {
	a := newTestService(t, Options{Size: 50, Seed: 1})
	b := newTestService(t, Options{Size: 50, Seed: 2})
	ctx := context.Background()

	require.NoError(t, a.Regenerate(ctx, 99))
	require.NoError(t, b.Regenerate(ctx, 99))

	booksA, _ := a.Books(ctx, 50)
	booksB, _ := b.Books(ctx, 50)
	assert.Equal(t, booksA, booksB)
	assert.False(t, a.sortedByID)
}

func TestConcurrentSortAndSearch(t *testing.T) {
	svc := newTestService(t, Options{Size: 300, Seed: 3})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Sort(ctx, AlgorithmQuick, OrderID)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Search(ctx, AlgorithmLinear, []int{1, 150, 300, 301})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	result, err := svc.Search(ctx, AlgorithmBinary, []int{1, 150, 300, 301})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Found)
}

func TestAlgorithmNamesAreNormalized(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(5, 3, 1, 4, 2)})

	sorted, err := svc.Sort(context.Background(), " Bubble ", "ID")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmBubble, sorted.Algorithm)
	assert.Equal(t, 7, sorted.Swaps)

	found, err := svc.Search(context.Background(), "BINARY", []int{4})
	require.NoError(t, err)
	assert.Equal(t, AlgorithmBinary, found.Algorithm)
	assert.Equal(t, 1, found.Found)
}

func TestLookupSizeLimits(t *testing.T) {
	svc := newTestService(t, Options{Books: sampleBooks(1, 2, 3)})

	ids, err := svc.ProbeIDs(context.Background(), MaxLookupIDs)
	require.NoError(t, err)
	assert.Len(t, ids, MaxLookupIDs)

	_, err = svc.ProbeIDs(context.Background(), MaxLookupIDs+1)
	assert.ErrorIs(t, err, ErrTooManyIDs)

	_, err = svc.Search(context.Background(), AlgorithmLinear, make([]int, MaxLookupIDs+1))
	assert.ErrorIs(t, err, ErrTooManyIDs)
}

// metricByName returns the named metric from a collection.
func metricByName(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not recorded", name)
	return metricdata.Metrics{}
}

func TestRunMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	svc := newTestService(t, Options{Books: sampleBooks(5, 3, 1, 4, 2), MeterProvider: provider})
	ctx := context.Background()

	_, err := svc.Sort(ctx, AlgorithmBubble, OrderID)
	require.NoError(t, err)
	_, err = svc.Search(ctx, AlgorithmBinary, []int{3, 6})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	bubble := attribute.NewSet(attribute.String("algorithm", "bubble"))
	binary := attribute.NewSet(attribute.String("algorithm", "binary"))

	swaps, ok := metricByName(t, rm, "catalog.sort.swaps").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, swaps.DataPoints, 1)
	assert.True(t, swaps.DataPoints[0].Attributes.Equals(&bubble))
	assert.Equal(t, int64(7), swaps.DataPoints[0].Value)

	comparisons, ok := metricByName(t, rm, "catalog.comparisons").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	byAlgorithm := map[attribute.Distinct]int64{}
	for _, dp := range comparisons.DataPoints {
		byAlgorithm[dp.Attributes.Equivalent()] = dp.Value
	}
	assert.Equal(t, int64(10), byAlgorithm[bubble.Equivalent()])
	assert.Equal(t, int64(4), byAlgorithm[binary.Equivalent()])

	duration, ok := metricByName(t, rm, "catalog.run.duration").Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var runs uint64
	for _, dp := range duration.DataPoints {
		runs += dp.Count
	}
	assert.Equal(t, uint64(2), runs)
}
