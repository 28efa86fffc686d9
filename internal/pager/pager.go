// Package pager walks the SpaceTraders page/limit listings.
package pager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papaburgs/fluffy-miner/internal/types"
)

// DefaultPageSize is the largest page the API serves.
const DefaultPageSize = 20

// PageFunc fetches one page. A nil Meta means the endpoint did not paginate.
type PageFunc[T any] func(ctx context.Context, page, limit int) ([]T, *types.Meta, error)

// FetchAll requests page 1 and, when the returned meta says there is more,
// the remaining pages one after the other. Items keep page order.
// Any failed page aborts the listing.
func FetchAll[T any](ctx context.Context, fetch PageFunc[T]) ([]T, error) {
	l := slog.With("function", "pager.FetchAll")

	items, meta, err := fetch(ctx, 1, DefaultPageSize)
	if err != nil {
		return nil, fmt.Errorf("page 1: %w", err)
	}
	pages := TotalPages(meta)
	if pages <= 1 {
		return items, nil
	}
	l.Debug("fetching remaining pages", "total", meta.Total, "pages", pages)

	all := make([]T, 0, meta.Total)
	all = append(all, items...)
	for p := 2; p <= pages; p++ {
		next, _, err := fetch(ctx, p, DefaultPageSize)
		if err != nil {
			return nil, fmt.Errorf("page %d of %d: %w", p, pages, err)
		}
		all = append(all, next...)
	}
	return all, nil
}

// TotalPages is ceil(total/limit), or 1 when meta is missing or has no usable limit.
func TotalPages(meta *types.Meta) int {
	if meta == nil || meta.Limit <= 0 {
		return 1
	}
	return (meta.Total + meta.Limit - 1) / meta.Limit
}
