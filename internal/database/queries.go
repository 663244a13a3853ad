package database

import (
	"context"
	"database/sql"
	"time"

	"conduit-registry/internal/registry"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the registry's SQL. It runs against a connection or, through
// WithTx, inside a transaction.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// scanner is the common subset of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// Listings

const listingColumns = `content_hash, encrypted_hash, title, description, file_name, mime_type,
	size_bytes, price_sats, chunk_size, chunk_count, plaintext_root, encrypted_root,
	creator_pubkey, creator_address, creator_ln_address, creator_alias,
	pre_c1_hex, pre_c2_hex, pre_pk_creator_hex, playback_policy, creator_signature, created_at`

func scanListing(row scanner) (*registry.Listing, error) {
	var l registry.Listing
	var createdAt int64
	err := row.Scan(
		&l.ContentHash, &l.EncryptedHash, &l.Title, &l.Description, &l.FileName, &l.MimeType,
		&l.SizeBytes, &l.PriceSats, &l.ChunkSize, &l.ChunkCount, &l.PlaintextRoot, &l.EncryptedRoot,
		&l.CreatorPubkey, &l.CreatorAddress, &l.CreatorLNAddress, &l.CreatorAlias,
		&l.PreC1Hex, &l.PreC2Hex, &l.PrePKCreatorHex, &l.PlaybackPolicy, &l.CreatorSignature, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	l.CreatedAt = fromNanos(createdAt)
	return &l, nil
}

const insertListing = `INSERT INTO listings (` + listingColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(content_hash) DO NOTHING`

// InsertListing returns the number of rows inserted: 0 when the hash exists.
func (q *Queries) InsertListing(ctx context.Context, l *registry.Listing) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertListing,
		l.ContentHash, l.EncryptedHash, l.Title, l.Description, l.FileName, l.MimeType,
		l.SizeBytes, l.PriceSats, l.ChunkSize, l.ChunkCount, l.PlaintextRoot, l.EncryptedRoot,
		l.CreatorPubkey, l.CreatorAddress, l.CreatorLNAddress, l.CreatorAlias,
		l.PreC1Hex, l.PreC2Hex, l.PrePKCreatorHex, l.PlaybackPolicy, l.CreatorSignature, toNanos(l.CreatedAt),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// created_at, content_hash and creator_pubkey are never updated.
const updateListing = `UPDATE listings SET
	encrypted_hash = ?, title = ?, description = ?, file_name = ?, mime_type = ?,
	size_bytes = ?, price_sats = ?, chunk_size = ?, chunk_count = ?,
	plaintext_root = ?, encrypted_root = ?,
	creator_address = ?, creator_ln_address = ?, creator_alias = ?,
	pre_c1_hex = ?, pre_c2_hex = ?, pre_pk_creator_hex = ?, playback_policy = ?, creator_signature = ?
WHERE content_hash = ?`

func (q *Queries) UpdateListing(ctx context.Context, l *registry.Listing) error {
	_, err := q.db.ExecContext(ctx, updateListing,
		l.EncryptedHash, l.Title, l.Description, l.FileName, l.MimeType,
		l.SizeBytes, l.PriceSats, l.ChunkSize, l.ChunkCount,
		l.PlaintextRoot, l.EncryptedRoot,
		l.CreatorAddress, l.CreatorLNAddress, l.CreatorAlias,
		l.PreC1Hex, l.PreC2Hex, l.PrePKCreatorHex, l.PlaybackPolicy, l.CreatorSignature,
		l.ContentHash,
	)
	return err
}

const getListing = `SELECT ` + listingColumns + ` FROM listings WHERE content_hash = ?`

func (q *Queries) GetListing(ctx context.Context, hash string) (*registry.Listing, error) {
	return scanListing(q.db.QueryRowContext(ctx, getListing, hash))
}

const listListings = `SELECT ` + listingColumns + ` FROM listings ORDER BY created_at ASC, content_hash ASC`

func (q *Queries) ListListings(ctx context.Context) ([]registry.Listing, error) {
	rows, err := q.db.QueryContext(ctx, listListings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []registry.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *l)
	}
	return items, rows.Err()
}

func (q *Queries) DeleteAllListings(ctx context.Context) (int64, error) {
	return q.execCount(ctx, `DELETE FROM listings`)
}

// Seeders

const seederColumns = `content_hash, seeder_pubkey, seeder_address, seeder_ln_address,
	seeder_alias, transport_price, chunk_count, announced_at`

func scanSeeder(row scanner) (*registry.SeederAnnouncement, error) {
	var a registry.SeederAnnouncement
	var announcedAt int64
	err := row.Scan(
		&a.ContentHash, &a.SeederPubkey, &a.SeederAddress, &a.SeederLNAddress,
		&a.SeederAlias, &a.TransportPrice, &a.ChunkCount, &announcedAt,
	)
	if err != nil {
		return nil, err
	}
	a.AnnouncedAt = fromNanos(announcedAt)
	return &a, nil
}

const upsertSeeder = `INSERT INTO seeders (` + seederColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(content_hash, seeder_pubkey) DO UPDATE SET
	seeder_address = excluded.seeder_address,
	seeder_ln_address = excluded.seeder_ln_address,
	seeder_alias = excluded.seeder_alias,
	transport_price = excluded.transport_price,
	chunk_count = excluded.chunk_count,
	announced_at = excluded.announced_at
RETURNING ` + seederColumns

func (q *Queries) UpsertSeeder(ctx context.Context, a *registry.SeederAnnouncement) (*registry.SeederAnnouncement, error) {
	row := q.db.QueryRowContext(ctx, upsertSeeder,
		a.ContentHash, a.SeederPubkey, a.SeederAddress, a.SeederLNAddress,
		a.SeederAlias, a.TransportPrice, a.ChunkCount, toNanos(a.AnnouncedAt),
	)
	return scanSeeder(row)
}

const listSeeders = `SELECT ` + seederColumns + ` FROM seeders
ORDER BY announced_at DESC, seeder_pubkey ASC`

const listSeedersByHash = `SELECT ` + seederColumns + ` FROM seeders
WHERE content_hash = ?
ORDER BY announced_at DESC, seeder_pubkey ASC`

// ListSeeders returns every announcement when hash is empty.
func (q *Queries) ListSeeders(ctx context.Context, hash string) ([]registry.SeederAnnouncement, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if hash == "" {
		rows, err = q.db.QueryContext(ctx, listSeeders)
	} else {
		rows, err = q.db.QueryContext(ctx, listSeedersByHash, hash)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []registry.SeederAnnouncement{}
	for rows.Next() {
		a, err := scanSeeder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

func (q *Queries) DeleteSeedersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return q.execCount(ctx, `DELETE FROM seeders WHERE announced_at < ?`, toNanos(cutoff))
}

func (q *Queries) DeleteAllSeeders(ctx context.Context) (int64, error) {
	return q.execCount(ctx, `DELETE FROM seeders`)
}

// Manufacturers

const manufacturerColumns = `pk_hex, name, description, website, registered_at`

func scanManufacturer(row scanner) (*registry.Manufacturer, error) {
	var m registry.Manufacturer
	var registeredAt int64
	if err := row.Scan(&m.PKHex, &m.Name, &m.Description, &m.Website, &registeredAt); err != nil {
		return nil, err
	}
	m.RegisteredAt = fromNanos(registeredAt)
	return &m, nil
}

func (q *Queries) InsertManufacturer(ctx context.Context, m *registry.Manufacturer) (int64, error) {
	return q.execCount(ctx, `INSERT INTO manufacturers (`+manufacturerColumns+`)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(pk_hex) DO NOTHING`,
		m.PKHex, m.Name, m.Description, m.Website, toNanos(m.RegisteredAt))
}

func (q *Queries) GetManufacturer(ctx context.Context, pkHex string) (*registry.Manufacturer, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+manufacturerColumns+` FROM manufacturers WHERE pk_hex = ?`, pkHex)
	return scanManufacturer(row)
}

func (q *Queries) ListManufacturers(ctx context.Context) ([]registry.Manufacturer, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+manufacturerColumns+` FROM manufacturers
ORDER BY registered_at ASC, pk_hex ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []registry.Manufacturer{}
	for rows.Next() {
		m, err := scanManufacturer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

func (q *Queries) DeleteManufacturer(ctx context.Context, pkHex string) (int64, error) {
	return q.execCount(ctx, `DELETE FROM manufacturers WHERE pk_hex = ?`, pkHex)
}

func (q *Queries) DeleteAllManufacturers(ctx context.Context) (int64, error) {
	return q.execCount(ctx, `DELETE FROM manufacturers`)
}

// Admin operations

func (q *Queries) InsertAdminOperation(ctx context.Context, op *registry.AdminOperation) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO admin_operations
(operation, parameters, actor, started_at, status, affected)
VALUES (?, ?, ?, ?, ?, ?)`,
		op.Operation, op.Parameters, op.Actor, toNanos(op.StartedAt), op.Status, op.Affected)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) ListAdminOperations(ctx context.Context, limit int) ([]registry.AdminOperation, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, operation, parameters, actor, started_at, status, affected
FROM admin_operations
ORDER BY started_at DESC, id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []registry.AdminOperation{}
	for rows.Next() {
		var op registry.AdminOperation
		var startedAt int64
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Actor, &startedAt, &op.Status, &op.Affected); err != nil {
			return nil, err
		}
		op.StartedAt = fromNanos(startedAt)
		items = append(items, op)
	}
	return items, rows.Err()
}

func (q *Queries) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
