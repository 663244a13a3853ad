package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultHistoryLimit caps AdminHistory when the caller passes no limit.
const DefaultHistoryLimit = 100

// Service is the registry's single entry point. Every transport (HTTP, CLI)
// maps a request onto exactly one Service method.
type Service struct {
	store    Store
	searcher Searcher
	logger   Logger
	clock    Clock
}

// NewService creates a Service with the provided dependencies.
func NewService(store Store, searcher Searcher, logger Logger, clock Clock) *Service {
	return &Service{
		store:    store,
		searcher: searcher,
		logger:   logger,
		clock:    clock,
	}
}

// RegisterOptions controls RegisterListing.
type RegisterOptions struct {
	// Overwrite replaces the mutable fields of an existing listing owned by
	// the same creator instead of failing with ErrConflict.
	Overwrite bool
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// RegisterListing validates and stores a new listing. created_at is stamped
// from the service clock and is kept on overwrite.
func (s *Service) RegisterListing(ctx context.Context, l Listing, opts RegisterOptions) (*Listing, error) {
	normalizeListing(&l)
	if err := validateRecord(&l); err != nil {
		return nil, err
	}
	l.CreatedAt = s.clock.Now()

	stored, err := s.store.PutListing(ctx, &l, opts.Overwrite)
	if err != nil {
		return nil, fmt.Errorf("registering listing %s: %w", l.ContentHash, err)
	}

	s.logger.Info("listing registered",
		"content_hash", stored.ContentHash,
		"title", stored.Title,
		"overwrite", opts.Overwrite,
	)
	return stored, nil
}

// GetListing returns one listing or ErrNotFound.
func (s *Service) GetListing(ctx context.Context, hash string) (*Listing, error) {
	h, err := ParseContentHash(hash)
	if err != nil {
		return nil, err
	}
	l, err := s.store.GetListing(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("getting listing: %w", err)
	}
	return l, nil
}

// ListListings returns every listing, oldest first.
func (s *Service) ListListings(ctx context.Context) ([]Listing, error) {
	listings, err := s.store.ListListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing listings: %w", err)
	}
	return listings, nil
}

// Search runs a ranked text query. An empty query matches nothing.
func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) ([]Listing, error) {
	if strings.TrimSpace(query) == "" {
		return []Listing{}, nil
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	results, err := s.searcher.Search(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	return results, nil
}

// AnnounceSeeder records or refreshes a seeder announcement. The content hash
// need not match a listing. Repeating an announcement refreshes announced_at.
func (s *Service) AnnounceSeeder(ctx context.Context, a SeederAnnouncement) (*SeederAnnouncement, error) {
	normalizeSeeder(&a)
	if err := validateRecord(&a); err != nil {
		return nil, err
	}
	a.AnnouncedAt = s.clock.Now()

	stored, err := s.store.UpsertSeeder(ctx, &a)
	if err != nil {
		return nil, fmt.Errorf("announcing seeder: %w", err)
	}

	s.logger.Debug("seeder announced", "content_hash", stored.ContentHash, "seeder_pubkey", stored.SeederPubkey)
	return stored, nil
}

// ListSeeders returns the stored announcements for hash, or all of them when
// hash is empty. Stale announcements are included; Discover filters them.
func (s *Service) ListSeeders(ctx context.Context, hash string) ([]SeederAnnouncement, error) {
	h := ""
	if strings.TrimSpace(hash) != "" {
		var err error
		if h, err = ParseContentHash(hash); err != nil {
			return nil, err
		}
	}
	seeders, err := s.store.ListSeeders(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("listing seeders: %w", err)
	}
	return seeders, nil
}

// ListManufacturers returns every registered manufacturer.
func (s *Service) ListManufacturers(ctx context.Context) ([]Manufacturer, error) {
	ms, err := s.store.ListManufacturers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing manufacturers: %w", err)
	}
	return ms, nil
}

// GetManufacturer returns one manufacturer or ErrNotFound.
func (s *Service) GetManufacturer(ctx context.Context, pkHex string) (*Manufacturer, error) {
	pk := NormalizePubkey(pkHex)
	if pk == "" {
		return nil, fmt.Errorf("%w: pk_hex is required", ErrInvalidInput)
	}
	m, err := s.store.GetManufacturer(ctx, pk)
	if err != nil {
		return nil, fmt.Errorf("getting manufacturer: %w", err)
	}
	return m, nil
}

// SweepSeeders deletes announcements older than retention. Retention shorter
// than FreshnessWindow is raised to it, so sweeping never changes what
// Discover returns. Returns the number of announcements removed.
func (s *Service) SweepSeeders(ctx context.Context, retention time.Duration) (int64, error) {
	if retention < FreshnessWindow {
		retention = FreshnessWindow
	}
	cutoff := s.clock.Now().Add(-retention)
	n, err := s.store.DeleteSeedersBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping seeders: %w", err)
	}
	if n > 0 {
		s.logger.Info("swept stale seeders", "removed", n, "cutoff", cutoff)
	}
	return n, nil
}

// StartSweepJob runs SweepSeeders immediately and then every interval until
// ctx is cancelled. It blocks; run it in its own goroutine.
func (s *Service) StartSweepJob(ctx context.Context, interval, retention time.Duration) {
	sweep := func() {
		if _, err := s.SweepSeeders(ctx, retention); err != nil {
			s.logger.Error("seeder sweep failed", "error", err)
		}
	}

	sweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
