// Package source defines how search criteria obtain their raw datasets.
package source

import (
	"context"
	"fmt"

	"cscexplorer/internal/domain"
)

// FetchRequest names one dataset: a category, where it lives, and for
// year-scoped categories, which year.
type FetchRequest struct {
	Category string
	Scope    domain.Scope
	Year     string
}

// Key identifies the dataset for caching and request coalescing.
func (r FetchRequest) Key() string {
	if r.Scope == domain.ScopeYear {
		return fmt.Sprintf("%s:year:%s", r.Category, r.Year)
	}
	return fmt.Sprintf("%s:global", r.Category)
}

// DataSource fetches every raw record for one category. Failures are
// returned as *FetchError where the implementation can classify them.
type DataSource interface {
	Fetch(ctx context.Context, req FetchRequest) ([]domain.RawRecord, error)
}

// DataSourceFunc adapts a function to DataSource.
type DataSourceFunc func(ctx context.Context, req FetchRequest) ([]domain.RawRecord, error)

func (f DataSourceFunc) Fetch(ctx context.Context, req FetchRequest) ([]domain.RawRecord, error) {
	return f(ctx, req)
}
