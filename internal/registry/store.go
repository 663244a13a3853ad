package registry

import (
	"context"
	"time"
)

// Store is the durable home of listings, seeder announcements, manufacturers
// and the admin audit trail. Every mutation is atomic. Implementations wrap
// persistence failures in ErrStoreUnavailable.
type Store interface {
	// Listing operations

	// PutListing inserts a listing. If one with the same content hash exists,
	// it returns ErrConflict unless overwrite is set, in which case mutable
	// fields are replaced (created_at and creator_pubkey are kept; a different
	// creator is still ErrConflict). Returns the stored listing.
	PutListing(ctx context.Context, listing *Listing, overwrite bool) (*Listing, error)

	// GetListing returns the listing for hash or ErrNotFound.
	GetListing(ctx context.Context, hash string) (*Listing, error)

	// ListListings returns every listing ordered by created_at ascending.
	ListListings(ctx context.Context) ([]Listing, error)

	// ClearListings deletes every listing in one transaction and returns the count.
	ClearListings(ctx context.Context) (int64, error)

	// Seeder operations

	// UpsertSeeder inserts an announcement or refreshes the existing one for
	// the same (content_hash, seeder_pubkey) pair. Returns the stored row.
	UpsertSeeder(ctx context.Context, announcement *SeederAnnouncement) (*SeederAnnouncement, error)

	// ListSeeders returns announcements for hash, or all of them when hash is
	// empty, freshest first.
	ListSeeders(ctx context.Context, hash string) ([]SeederAnnouncement, error)

	// DeleteSeedersBefore removes announcements older than cutoff.
	DeleteSeedersBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// ClearSeeders deletes every announcement in one transaction and returns the count.
	ClearSeeders(ctx context.Context) (int64, error)

	// Manufacturer operations

	// PutManufacturer inserts a manufacturer or returns ErrConflict.
	PutManufacturer(ctx context.Context, m *Manufacturer) error

	// GetManufacturer returns the manufacturer for pkHex or ErrNotFound.
	GetManufacturer(ctx context.Context, pkHex string) (*Manufacturer, error)

	// ListManufacturers returns every manufacturer ordered by registration time.
	ListManufacturers(ctx context.Context) ([]Manufacturer, error)

	// DeleteManufacturer removes a manufacturer or returns ErrNotFound.
	DeleteManufacturer(ctx context.Context, pkHex string) error

	// ClearManufacturers deletes every manufacturer and returns the count.
	ClearManufacturers(ctx context.Context) (int64, error)

	// Admin audit

	// RecordAdminOperation appends an audit record and returns it with its ID.
	RecordAdminOperation(ctx context.Context, op *AdminOperation) (*AdminOperation, error)

	// ListAdminOperations returns up to limit audit records, newest first.
	ListAdminOperations(ctx context.Context, limit int) ([]AdminOperation, error)

	// Close releases the underlying connection.
	Close() error
}
