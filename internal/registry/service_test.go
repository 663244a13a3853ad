package registry_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"conduit-registry/internal/registry"
	"conduit-registry/internal/testutil"
)

func midnightRun() registry.Listing {
	return registry.Listing{
		ContentHash:    testutil.ContentHash("midnight run"),
		Title:          "Midnight Run",
		Description:    "A film about running at night",
		FileName:       "midnight_run.mp4",
		MimeType:       "video/mp4",
		SizeBytes:      1 << 20,
		PriceSats:      1000,
		CreatorPubkey:  "creator-pk",
		CreatorAddress: "10.0.0.1:7000",
		CreatorAlias:   "director",
	}
}

func TestService_RegisterListing(t *testing.T) {
	ctx := context.Background()

	t.Run("stores with clock timestamp and defaults", func(t *testing.T) {
		r := testutil.NewTestRegistry(t)
		in := midnightRun()
		in.ContentHash = "  " + strings.ToUpper(in.ContentHash) + " "

		got, err := r.Service.RegisterListing(ctx, in, registry.RegisterOptions{})
		if err != nil {
			t.Fatalf("RegisterListing() error = %v", err)
		}
		if got.ContentHash != testutil.ContentHash("midnight run") {
			t.Errorf("ContentHash = %q, want normalized lowercase hash", got.ContentHash)
		}
		if !got.CreatedAt.Equal(r.Clock.Now()) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, r.Clock.Now())
		}
		if got.PlaybackPolicy != registry.DefaultPlaybackPolicy {
			t.Errorf("PlaybackPolicy = %q, want %q", got.PlaybackPolicy, registry.DefaultPlaybackPolicy)
		}
	})

	t.Run("title defaults to file name", func(t *testing.T) {
		r := testutil.NewTestRegistry(t)
		in := midnightRun()
		in.Title = ""

		got, err := r.Service.RegisterListing(ctx, in, registry.RegisterOptions{})
		if err != nil {
			t.Fatalf("RegisterListing() error = %v", err)
		}
		if got.Title != "midnight_run.mp4" {
			t.Errorf("Title = %q, want file name", got.Title)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*registry.Listing)
		}{
			{"short hash", func(l *registry.Listing) { l.ContentHash = "abc123" }},
			{"non-hex hash", func(l *registry.Listing) { l.ContentHash = strings.Repeat("z", 64) }},
			{"missing creator", func(l *registry.Listing) { l.CreatorPubkey = "" }},
			{"missing title and file name", func(l *registry.Listing) { l.Title, l.FileName = "", "" }},
			{"bad encrypted hash", func(l *registry.Listing) { l.EncryptedHash = "nothex" }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				r := testutil.NewTestRegistry(t)
				in := midnightRun()
				tt.mutate(&in)

				_, err := r.Service.RegisterListing(ctx, in, registry.RegisterOptions{})
				if !errors.Is(err, registry.ErrInvalidInput) {
					t.Errorf("RegisterListing() error = %v, want ErrInvalidInput", err)
				}
			})
		}
	})

	t.Run("duplicate is a conflict and keeps the original", func(t *testing.T) {
		r := testutil.NewTestRegistry(t)
		if _, err := r.Service.RegisterListing(ctx, midnightRun(), registry.RegisterOptions{}); err != nil {
			t.Fatalf("first RegisterListing() error = %v", err)
		}

		again := midnightRun()
		again.Title = "Another Title"
		_, err := r.Service.RegisterListing(ctx, again, registry.RegisterOptions{})
		if !errors.Is(err, registry.ErrConflict) {
			t.Fatalf("second RegisterListing() error = %v, want ErrConflict", err)
		}

		got, err := r.Service.GetListing(ctx, again.ContentHash)
		if err != nil {
			t.Fatalf("GetListing() error = %v", err)
		}
		if got.Title != "Midnight Run" {
			t.Errorf("Title = %q, want original", got.Title)
		}
	})

	t.Run("overwrite keeps created_at", func(t *testing.T) {
		r := testutil.NewTestRegistry(t)
		first, err := r.Service.RegisterListing(ctx, midnightRun(), registry.RegisterOptions{})
		if err != nil {
			t.Fatalf("first RegisterListing() error = %v", err)
		}

		r.Clock.Advance(time.Hour)
		update := midnightRun()
		update.Title = "Midnight Run (Director's Cut)"
		got, err := r.Service.RegisterListing(ctx, update, registry.RegisterOptions{Overwrite: true})
		if err != nil {
			t.Fatalf("overwrite RegisterListing() error = %v", err)
		}
		if got.Title != update.Title {
			t.Errorf("Title = %q, want %q", got.Title, update.Title)
		}
		if !got.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, first.CreatedAt)
		}
	})
}

func TestService_GetListing(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewTestRegistry(t)

	_, err := r.Service.GetListing(ctx, testutil.ContentHash("absent"))
	if !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("GetListing(absent) error = %v, want ErrNotFound", err)
	}

	_, err = r.Service.GetListing(ctx, "not-a-hash")
	if !errors.Is(err, registry.ErrInvalidInput) {
		t.Errorf("GetListing(malformed) error = %v, want ErrInvalidInput", err)
	}
}

func TestService_AnnounceSeeder(t *testing.T) {
	ctx := context.Background()

	t.Run("repeat announce is idempotent and refreshes the timestamp", func(t *testing.T) {
		r := testutil.NewTestRegistry(t)
		a := registry.SeederAnnouncement{
			ContentHash:   testutil.ContentHash("midnight run"),
			SeederPubkey:  "seeder-1",
			SeederAddress: "10.0.0.2:7000",
		}

		if _, err := r.Service.AnnounceSeeder(ctx, a); err != nil {
			t.Fatalf("first AnnounceSeeder() error = %v", err)
		}
		r.Clock.Advance(5 * time.Minute)
		got, err := r.Service.AnnounceSeeder(ctx, a)
		if err != nil {
			t.Fatalf("second AnnounceSeeder() error = %v", err)
		}
		if !got.AnnouncedAt.Equal(r.Clock.Now()) {
			t.Errorf("AnnouncedAt = %v, want second call's clock %v", got.AnnouncedAt, r.Clock.Now())
		}

		all, err := r.Service.ListSeeders(ctx, a.ContentHash)
		if err != nil {
			t.Fatalf("ListSeeders() error = %v", err)
		}
		if len(all) != 1 {
			t.Errorf("len(ListSeeders()) = %d, want 1", len(all))
		}
	})

	t.Run("orphan announcement is accepted", func(t *testing.T) {
		r := testutil.NewTestRegistry(t)
		a := registry.SeederAnnouncement{
			ContentHash:   testutil.ContentHash("nobody listed this"),
			SeederPubkey:  "seeder-1",
			SeederAddress: "10.0.0.2:7000",
		}
		if _, err := r.Service.AnnounceSeeder(ctx, a); err != nil {
			t.Errorf("AnnounceSeeder() error = %v", err)
		}
	})

	t.Run("requires pubkey and address", func(t *testing.T) {
		r := testutil.NewTestRegistry(t)
		for _, a := range []registry.SeederAnnouncement{
			{ContentHash: testutil.ContentHash("x"), SeederAddress: "addr"},
			{ContentHash: testutil.ContentHash("x"), SeederPubkey: "pk"},
			{ContentHash: "short", SeederPubkey: "pk", SeederAddress: "addr"},
		} {
			if _, err := r.Service.AnnounceSeeder(ctx, a); !errors.Is(err, registry.ErrInvalidInput) {
				t.Errorf("AnnounceSeeder(%+v) error = %v, want ErrInvalidInput", a, err)
			}
		}
	})
}

func TestService_ListSeeders(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewTestRegistry(t)

	for _, name := range []string{"a", "b"} {
		a := registry.SeederAnnouncement{
			ContentHash:   testutil.ContentHash(name),
			SeederPubkey:  "seeder",
			SeederAddress: "addr",
		}
		if _, err := r.Service.AnnounceSeeder(ctx, a); err != nil {
			t.Fatalf("AnnounceSeeder() error = %v", err)
		}
	}

	all, err := r.Service.ListSeeders(ctx, "")
	if err != nil || len(all) != 2 {
		t.Errorf("ListSeeders(all) = %d, %v; want 2", len(all), err)
	}
	one, err := r.Service.ListSeeders(ctx, testutil.ContentHash("a"))
	if err != nil || len(one) != 1 {
		t.Errorf("ListSeeders(a) = %d, %v; want 1", len(one), err)
	}
	if _, err := r.Service.ListSeeders(ctx, "bogus"); !errors.Is(err, registry.ErrInvalidInput) {
		t.Errorf("ListSeeders(bogus) error = %v, want ErrInvalidInput", err)
	}
}

func TestService_Search(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewTestRegistry(t)

	if _, err := r.Service.RegisterListing(ctx, midnightRun(), registry.RegisterOptions{}); err != nil {
		t.Fatalf("RegisterListing() error = %v", err)
	}

	got, err := r.Service.Search(ctx, "midnight", registry.SearchOptions{})
	if err != nil {
		t.Fatalf("Search(midnight) error = %v", err)
	}
	if len(got) != 1 || got[0].Title != "Midnight Run" {
		t.Errorf("Search(midnight) = %+v, want [Midnight Run]", got)
	}

	got, err = r.Service.Search(ctx, "xyz-none", registry.SearchOptions{})
	if err != nil {
		t.Fatalf("Search(xyz-none) error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search(xyz-none) = %+v, want empty", got)
	}

	got, err = r.Service.Search(ctx, "", registry.SearchOptions{})
	if err != nil || len(got) != 0 {
		t.Errorf("Search(\"\") = %+v, %v; want empty, nil", got, err)
	}

	if _, err := r.Service.Search(ctx, "midnight", registry.SearchOptions{Limit: -1}); !errors.Is(err, registry.ErrInvalidInput) {
		t.Errorf("Search(limit=-1) error = %v, want ErrInvalidInput", err)
	}
}

func TestService_SweepSeeders(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewTestRegistry(t)

	announce := func(pk string) {
		t.Helper()
		a := registry.SeederAnnouncement{ContentHash: testutil.ContentHash("c"), SeederPubkey: pk, SeederAddress: "addr"}
		if _, err := r.Service.AnnounceSeeder(ctx, a); err != nil {
			t.Fatalf("AnnounceSeeder() error = %v", err)
		}
	}

	announce("old")
	r.Clock.Advance(2 * time.Hour)
	announce("fresh")

	// A retention below the freshness window is raised to it.
	n, err := r.Service.SweepSeeders(ctx, time.Minute)
	if err != nil {
		t.Fatalf("SweepSeeders() error = %v", err)
	}
	if n != 1 {
		t.Errorf("SweepSeeders() = %d, want 1", n)
	}

	left, _ := r.Service.ListSeeders(ctx, "")
	if len(left) != 1 || left[0].SeederPubkey != "fresh" {
		t.Errorf("remaining seeders = %+v, want only fresh", left)
	}

	// Nothing within the window is ever swept.
	r.Clock.Advance(registry.FreshnessWindow)
	n, err = r.Service.SweepSeeders(ctx, 0)
	if err != nil || n != 0 {
		t.Errorf("SweepSeeders() at window edge = %d, %v; want 0, nil", n, err)
	}
}

func TestService_StartSweepJob(t *testing.T) {
	r := testutil.NewTestRegistry(t)
	a := registry.SeederAnnouncement{ContentHash: testutil.ContentHash("c"), SeederPubkey: "old", SeederAddress: "addr"}
	if _, err := r.Service.AnnounceSeeder(context.Background(), a); err != nil {
		t.Fatalf("AnnounceSeeder() error = %v", err)
	}
	r.Clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Service.StartSweepJob(ctx, time.Hour, registry.FreshnessWindow)
		close(done)
	}()

	// The job sweeps once on start.
	deadline := time.Now().Add(5 * time.Second)
	for {
		left, err := r.Store.ListSeeders(context.Background(), "")
		if err == nil && len(left) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("StartSweepJob() did not sweep on start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StartSweepJob() did not return after cancel")
	}
}

func TestService_OversizedCountersAreInvalidInput(t *testing.T) {
	ctx := context.Background()
	r := testutil.NewTestRegistry(t)

	listings := map[string]func(*registry.Listing){
		"size_bytes":  func(l *registry.Listing) { l.SizeBytes = math.MaxUint64 },
		"price_sats":  func(l *registry.Listing) { l.PriceSats = math.MaxInt64 + 1 },
		"chunk_size":  func(l *registry.Listing) { l.ChunkSize = math.MaxUint64 },
		"chunk_count": func(l *registry.Listing) { l.ChunkCount = math.MaxUint64 },
	}
	for field, mutate := range listings {
		l := midnightRun()
		mutate(&l)
		_, err := r.Service.RegisterListing(ctx, l, registry.RegisterOptions{})
		if !errors.Is(err, registry.ErrInvalidInput) {
			t.Errorf("RegisterListing(%s overflow) error = %v, want ErrInvalidInput", field, err)
		}
		if errors.Is(err, registry.ErrStoreUnavailable) {
			t.Errorf("RegisterListing(%s overflow) reported a store outage", field)
		}
	}

	a := registry.SeederAnnouncement{
		ContentHash:    midnightRun().ContentHash,
		SeederPubkey:   "s",
		SeederAddress:  "addr",
		TransportPrice: math.MaxUint64,
	}
	if _, err := r.Service.AnnounceSeeder(ctx, a); !errors.Is(err, registry.ErrInvalidInput) {
		t.Errorf("AnnounceSeeder(transport_price overflow) error = %v, want ErrInvalidInput", err)
	}

	l := midnightRun()
	l.SizeBytes = math.MaxInt64
	if _, err := r.Service.RegisterListing(ctx, l, registry.RegisterOptions{}); err != nil {
		t.Errorf("RegisterListing(size_bytes = MaxInt64) error = %v", err)
	}
}
