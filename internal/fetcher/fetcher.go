// Package fetcher downloads registry pages and reads tabular input files.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface sources use to reach remote registries.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string, opts ...RequestOption) (io.ReadCloser, error)

	// GetJSON fetches the URL and decodes its JSON body into v.
	GetJSON(ctx context.Context, url string, v any, opts ...RequestOption) error
}
