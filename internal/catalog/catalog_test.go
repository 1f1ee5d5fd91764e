package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// memRuns is an in-memory RunRecorder.
type memRuns struct {
	mu   sync.Mutex
	runs []Run
	err  error
}

func (m *memRuns) Append(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRuns) List(ctx context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Run, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *memRuns) Summary(ctx context.Context) ([]RunStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	index := map[Algorithm]int{}
	var stats []RunStats
	for _, r := range m.runs {
		i, ok := index[r.Algorithm]
		if !ok {
			i = len(stats)
			index[r.Algorithm] = i
			stats = append(stats, RunStats{Kind: r.Kind, Algorithm: r.Algorithm})
		}
		stats[i].Runs++
	}
	return stats, nil
}

func (m *memRuns) snapshot() []Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Run(nil), m.runs...)
}

func sampleBooks(ids ...int) []Book {
	books := make([]Book, len(ids))
	for i, id := range ids {
		books[i] = Book{
			ID:              id,
			Title:           fmt.Sprintf("Book %d", id),
			Author:          "Homer",
			YearPublished:   1900 + id,
			Genre:           "Classic",
			Price:           float64(id * 10),
			CopiesAvailable: id,
			Rating:          float64(id) * 1.5,
		}
	}
	return books
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t testing.TB, opts Options) *service {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	svc, err := NewService(opts)
	require.NoError(t, err)
	return svc.(*service)
}

func bookIDs(books []Book) []int {
	ids := make([]int, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	return ids
}
