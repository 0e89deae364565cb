package fetcher

import (
	"context"
	"time"
)

// Fetcher is the interface for page fetchers. A Fetcher is a session: it is
// opened for one operation and closed when that operation ends.
type Fetcher interface {
	// Fetch retrieves the page at rawURL.
	Fetch(ctx context.Context, rawURL string) (*Page, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// Factory opens a new fetcher session.
type Factory func() (Fetcher, error)

// Page is a successfully fetched document.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	// Body is the decoded UTF-8 text of the response.
	Body     string
	Size     int
	Duration time.Duration
}
