package adapter

import (
	"context"

	"imagegen-dashboard/internal/domain/model"
)

// RowLog is the port for the tabular generation log (a spreadsheet or similar).
// Appends are fire-and-forget for the pipeline: callers report failures but never block on them.
type RowLog interface {
	Append(ctx context.Context, row model.LogRow) error
}

// RowReader is implemented by row logs that can read their rows back, oldest first.
type RowReader interface {
	Rows(ctx context.Context) ([]model.LogRow, error)
}

// SourceFetcher downloads the bytes behind a URL.
type SourceFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
