package registry

import "context"

// SearchOptions narrows a text search. Zero values disable each filter.
type SearchOptions struct {
	// ContentType matches the file extension of file_name ("mp4") or the
	// mime type subtype, case-insensitively.
	ContentType string

	// MaxPrice excludes listings priced above this many sats. Zero means no limit.
	MaxPrice uint64

	// Limit caps the number of results. Zero means no cap.
	Limit int
}

// Searcher answers ranked free-text queries over listings.
type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]Listing, error)
}
