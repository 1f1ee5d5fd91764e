// internal/catalog/service.go
package catalog

import (
	"context"
	"io"
)

// Service defines the interface for the inventory catalog.
type Service interface {
	Books(ctx context.Context, limit int) ([]Book, error)
	Sort(ctx context.Context, algorithm Algorithm, order Order) (*SortResult, error)
	Search(ctx context.Context, algorithm Algorithm, ids []int) (*SearchResult, error)
	ProbeIDs(ctx context.Context, n int) ([]int, error)
	TotalValue(ctx context.Context) (float64, error)
	HighlyRated(ctx context.Context, threshold float64) ([]Book, error)
	Purchase(ctx context.Context, bookID, quantity int) (*PurchaseReceipt, error)
	ExportCSV(ctx context.Context, w io.Writer) error
	Regenerate(ctx context.Context, seed int64) error
	Runs(ctx context.Context, limit int) ([]Run, error)
	RunSummary(ctx context.Context) ([]RunStats, error)
}

// RunRecorder persists completed runs.
type RunRecorder interface {
	Append(ctx context.Context, run Run) error
	List(ctx context.Context, limit int) ([]Run, error)
	Summary(ctx context.Context) ([]RunStats, error)
}
