package registry

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// FreshnessWindow is the maximum age of a seeder announcement that discovery
// still treats as live. Older announcements stay in the store but are filtered
// out at read time.
const FreshnessWindow = 30 * time.Minute

// IsFresh reports whether an announcement made at announcedAt is live at now.
// An announcement exactly FreshnessWindow old is still live.
func IsFresh(announcedAt, now time.Time) bool {
	return !announcedAt.Before(now.Add(-FreshnessWindow))
}

// Discover resolves a content hash to the sources that can serve it now:
// the creator (when a listing exists) followed by fresh seeders, freshest first.
// A hash nobody knows about yields an empty source list, not an error.
func (s *Service) Discover(ctx context.Context, hash string) (*Discovery, error) {
	h, err := ParseContentHash(hash)
	if err != nil {
		return nil, err
	}

	listing, err := s.store.GetListing(ctx, h)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("looking up listing: %w", err)
	}

	seeders, err := s.store.ListSeeders(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("listing seeders: %w", err)
	}

	// Seeders of the encrypted distribution copy serve the same content.
	if listing != nil && listing.EncryptedHash != "" && listing.EncryptedHash != h {
		encrypted, err := s.store.ListSeeders(ctx, listing.EncryptedHash)
		if err != nil {
			return nil, fmt.Errorf("listing seeders for encrypted hash: %w", err)
		}
		seeders = append(seeders, encrypted...)
	}

	now := s.clock.Now()
	sources := Aggregate(listing, seeders, now)

	s.logger.Debug("discovery resolved",
		"content_hash", h,
		"listing", listing != nil,
		"announcements", len(seeders),
		"sources", len(sources),
	)

	return &Discovery{
		ContentHash: h,
		Listing:     listing,
		Sources:     sources,
	}, nil
}

// Aggregate merges a listing's creator and a set of announcements into an
// ordered source list. Stale announcements are dropped, and announcements are
// deduplicated by seeder pubkey keeping the freshest. listing may be nil.
func Aggregate(listing *Listing, announcements []SeederAnnouncement, now time.Time) []Source {
	sources := make([]Source, 0, len(announcements)+1)

	if listing != nil {
		sources = append(sources, Source{
			Role:      RoleCreator,
			Pubkey:    listing.CreatorPubkey,
			Address:   listing.CreatorAddress,
			LNAddress: listing.CreatorLNAddress,
			Alias:     listing.CreatorAlias,
		})
	}

	latest := make(map[string]SeederAnnouncement, len(announcements))
	for _, a := range announcements {
		if !IsFresh(a.AnnouncedAt, now) {
			continue
		}
		if prev, ok := latest[a.SeederPubkey]; ok && !a.AnnouncedAt.After(prev.AnnouncedAt) {
			continue
		}
		latest[a.SeederPubkey] = a
	}

	live := make([]SeederAnnouncement, 0, len(latest))
	for _, a := range latest {
		live = append(live, a)
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].AnnouncedAt.Equal(live[j].AnnouncedAt) {
			return live[i].AnnouncedAt.After(live[j].AnnouncedAt)
		}
		return live[i].SeederPubkey < live[j].SeederPubkey
	})

	for _, a := range live {
		sources = append(sources, Source{
			Role:           RoleSeeder,
			Pubkey:         a.SeederPubkey,
			Address:        a.SeederAddress,
			LNAddress:      a.SeederLNAddress,
			Alias:          a.SeederAlias,
			TransportPrice: a.TransportPrice,
			ChunkCount:     a.ChunkCount,
			LastSeen:       a.AnnouncedAt,
		})
	}

	return sources
}
