package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"conduit-registry/internal/database/migrations"
	"conduit-registry/internal/registry"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements registry.Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	queries *Queries
	path    string
}

// NewSQLiteStore opens the database at path. path can be a file path or
// ":memory:". The schema is not touched; call Migrate or CheckMigrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{
		db:      db,
		queries: NewQueries(db),
		path:    path,
	}, nil
}

// NewSQLiteStoreFromDB wraps an existing connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:      db,
		queries: NewQueries(db),
	}
}

// OpenConnection opens and configures a SQLite connection.
//
// File databases use WAL so readers proceed during a write, a busy timeout so
// concurrent writers queue instead of failing, and BEGIN IMMEDIATE so a
// transaction takes the write lock up front. An in-memory database is pinned
// to one connection because every new connection would get its own empty
// database.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path
	if path != MemoryPath {
		// SQLite decodes %XX escapes in a file: URI, so '?', '#' and '%' in
		// the path cannot be mistaken for the query.
		dsn = "file:" + (&url.URL{Path: path}).EscapedPath() +
			"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}

// unavailable tags a driver failure with ErrStoreUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, registry.ErrStoreUnavailable, err)
}

// Listing operations

func (s *SQLiteStore) PutListing(ctx context.Context, l *registry.Listing, overwrite bool) (*registry.Listing, error) {
	if !overwrite {
		n, err := s.queries.InsertListing(ctx, l)
		if err != nil {
			return nil, unavailable("inserting listing", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("listing %s already exists: %w", l.ContentHash, registry.ErrConflict)
		}
		stored := *l
		return &stored, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("starting transaction", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	n, err := qtx.InsertListing(ctx, l)
	if err != nil {
		return nil, unavailable("inserting listing", err)
	}
	if n == 0 {
		existing, err := qtx.GetListing(ctx, l.ContentHash)
		if err != nil {
			return nil, unavailable("reading existing listing", err)
		}
		if existing.CreatorPubkey != l.CreatorPubkey {
			return nil, fmt.Errorf("listing %s belongs to another creator: %w", l.ContentHash, registry.ErrConflict)
		}
		if err := qtx.UpdateListing(ctx, l); err != nil {
			return nil, unavailable("updating listing", err)
		}
	}

	stored, err := qtx.GetListing(ctx, l.ContentHash)
	if err != nil {
		return nil, unavailable("reading stored listing", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("committing transaction", err)
	}
	return stored, nil
}

func (s *SQLiteStore) GetListing(ctx context.Context, hash string) (*registry.Listing, error) {
	l, err := s.queries.GetListing(ctx, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("listing %s: %w", hash, registry.ErrNotFound)
		}
		return nil, unavailable("getting listing", err)
	}
	return l, nil
}

func (s *SQLiteStore) ListListings(ctx context.Context) ([]registry.Listing, error) {
	items, err := s.queries.ListListings(ctx)
	if err != nil {
		return nil, unavailable("listing listings", err)
	}
	return items, nil
}

func (s *SQLiteStore) ClearListings(ctx context.Context) (int64, error) {
	return s.clear(ctx, "clearing listings", (*Queries).DeleteAllListings)
}

// Seeder operations

func (s *SQLiteStore) UpsertSeeder(ctx context.Context, a *registry.SeederAnnouncement) (*registry.SeederAnnouncement, error) {
	stored, err := s.queries.UpsertSeeder(ctx, a)
	if err != nil {
		return nil, unavailable("upserting seeder", err)
	}
	return stored, nil
}

func (s *SQLiteStore) ListSeeders(ctx context.Context, hash string) ([]registry.SeederAnnouncement, error) {
	items, err := s.queries.ListSeeders(ctx, hash)
	if err != nil {
		return nil, unavailable("listing seeders", err)
	}
	return items, nil
}

func (s *SQLiteStore) DeleteSeedersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.queries.DeleteSeedersBefore(ctx, cutoff)
	if err != nil {
		return 0, unavailable("deleting stale seeders", err)
	}
	return n, nil
}

func (s *SQLiteStore) ClearSeeders(ctx context.Context) (int64, error) {
	return s.clear(ctx, "clearing seeders", (*Queries).DeleteAllSeeders)
}

// Manufacturer operations

func (s *SQLiteStore) PutManufacturer(ctx context.Context, m *registry.Manufacturer) error {
	n, err := s.queries.InsertManufacturer(ctx, m)
	if err != nil {
		return unavailable("inserting manufacturer", err)
	}
	if n == 0 {
		return fmt.Errorf("manufacturer %s already exists: %w", m.PKHex, registry.ErrConflict)
	}
	return nil
}

func (s *SQLiteStore) GetManufacturer(ctx context.Context, pkHex string) (*registry.Manufacturer, error) {
	m, err := s.queries.GetManufacturer(ctx, pkHex)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("manufacturer %s: %w", pkHex, registry.ErrNotFound)
		}
		return nil, unavailable("getting manufacturer", err)
	}
	return m, nil
}

func (s *SQLiteStore) ListManufacturers(ctx context.Context) ([]registry.Manufacturer, error) {
	items, err := s.queries.ListManufacturers(ctx)
	if err != nil {
		return nil, unavailable("listing manufacturers", err)
	}
	return items, nil
}

func (s *SQLiteStore) DeleteManufacturer(ctx context.Context, pkHex string) error {
	n, err := s.queries.DeleteManufacturer(ctx, pkHex)
	if err != nil {
		return unavailable("deleting manufacturer", err)
	}
	if n == 0 {
		return fmt.Errorf("manufacturer %s: %w", pkHex, registry.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ClearManufacturers(ctx context.Context) (int64, error) {
	return s.clear(ctx, "clearing manufacturers", (*Queries).DeleteAllManufacturers)
}

// Admin audit

func (s *SQLiteStore) RecordAdminOperation(ctx context.Context, op *registry.AdminOperation) (*registry.AdminOperation, error) {
	id, err := s.queries.InsertAdminOperation(ctx, op)
	if err != nil {
		return nil, unavailable("recording admin operation", err)
	}
	stored := *op
	stored.ID = id
	return &stored, nil
}

func (s *SQLiteStore) ListAdminOperations(ctx context.Context, limit int) ([]registry.AdminOperation, error) {
	ops, err := s.queries.ListAdminOperations(ctx, limit)
	if err != nil {
		return nil, unavailable("listing admin operations", err)
	}
	return ops, nil
}

// clear runs a bulk delete in its own transaction. Readers see either every
// row or none.
func (s *SQLiteStore) clear(ctx context.Context, op string, del func(*Queries, context.Context) (int64, error)) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable(op, err)
	}
	defer tx.Rollback()

	n, err := del(s.queries.WithTx(tx), ctx)
	if err != nil {
		return 0, unavailable(op, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, unavailable(op, err)
	}
	return n, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteStore) Path() string {
	return s.path
}

// Migrate applies pending schema migrations.
func (s *SQLiteStore) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrationStatus reports the schema version against the embedded migrations.
func (s *SQLiteStore) MigrationStatus() (migrations.Status, error) {
	return migrations.ReadStatus(s.db)
}

// BackupTo writes a consistent copy of the database to destPath using VACUUM INTO.
// destPath must not exist.
func (s *SQLiteStore) BackupTo(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ registry.Store = (*SQLiteStore)(nil)
