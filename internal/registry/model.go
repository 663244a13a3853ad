package registry

import "time"

// DefaultPlaybackPolicy is applied to listings that do not declare one.
const DefaultPlaybackPolicy = "open"

// Listing is a published content item, keyed by the SHA-256 of its plaintext.
type Listing struct {
	ContentHash   string `json:"content_hash" validate:"required,contenthash"`
	EncryptedHash string `json:"encrypted_hash" validate:"omitempty,contenthash"`

	Title       string `json:"title" validate:"required,max=512"`
	Description string `json:"description" validate:"max=8192"`
	FileName    string `json:"file_name" validate:"max=512"`
	MimeType    string `json:"mime_type" validate:"max=255"`

	// Counters must fit a signed 64-bit SQLite integer.
	SizeBytes  uint64 `json:"size_bytes" validate:"max=9223372036854775807"`
	PriceSats  uint64 `json:"price_sats" validate:"max=9223372036854775807"`
	ChunkSize  uint64 `json:"chunk_size" validate:"max=9223372036854775807"`
	ChunkCount uint64 `json:"chunk_count" validate:"max=9223372036854775807"`

	PlaintextRoot string `json:"plaintext_root" validate:"omitempty,hexdigits"`
	EncryptedRoot string `json:"encrypted_root" validate:"omitempty,hexdigits"`

	CreatorPubkey    string `json:"creator_pubkey" validate:"required,max=256"`
	CreatorAddress   string `json:"creator_address" validate:"max=512"`
	CreatorLNAddress string `json:"creator_ln_address" validate:"max=512"`
	CreatorAlias     string `json:"creator_alias" validate:"max=128"`

	// Proxy re-encryption material and the creator signature are stored
	// verbatim for clients; the registry does not interpret them.
	PreC1Hex         string `json:"pre_c1_hex" validate:"omitempty,hexdigits"`
	PreC2Hex         string `json:"pre_c2_hex" validate:"omitempty,hexdigits"`
	PrePKCreatorHex  string `json:"pre_pk_creator_hex" validate:"omitempty,hexdigits"`
	PlaybackPolicy   string `json:"playback_policy" validate:"max=64"`
	CreatorSignature string `json:"creator_signature" validate:"max=1024"`

	CreatedAt time.Time `json:"created_at"`
}

// SeederAnnouncement records that a peer claims to serve a content item.
// The pair (ContentHash, SeederPubkey) identifies the announcement.
type SeederAnnouncement struct {
	ContentHash     string `json:"content_hash" validate:"required,contenthash"`
	SeederPubkey    string `json:"seeder_pubkey" validate:"required,max=256"`
	SeederAddress   string `json:"seeder_address" validate:"required,max=512"`
	SeederLNAddress string `json:"seeder_ln_address" validate:"max=512"`
	SeederAlias     string `json:"seeder_alias" validate:"max=128"`
	TransportPrice  uint64 `json:"transport_price" validate:"max=9223372036854775807"`
	ChunkCount      uint64 `json:"chunk_count" validate:"max=9223372036854775807"`

	AnnouncedAt time.Time `json:"announced_at"`
}

// Manufacturer is a trust anchor for hardware attestation.
type Manufacturer struct {
	PKHex        string    `json:"pk_hex" validate:"required,hexdigits,min=16,max=130"`
	Name         string    `json:"name" validate:"required,max=256"`
	Description  string    `json:"description" validate:"max=4096"`
	Website      string    `json:"website" validate:"omitempty,url,max=512"`
	RegisteredAt time.Time `json:"registered_at"`
}

// SourceRole tags a discovery source.
type SourceRole string

const (
	RoleCreator SourceRole = "creator"
	RoleSeeder  SourceRole = "seeder"
)

// Source is one place a buyer can fetch content from.
type Source struct {
	Role      SourceRole `json:"role"`
	Pubkey    string     `json:"pubkey"`
	Address   string     `json:"address"`
	LNAddress string     `json:"ln_address,omitempty"`
	Alias     string     `json:"alias,omitempty"`

	// Seeder-only fields.
	TransportPrice uint64    `json:"transport_price,omitempty"`
	ChunkCount     uint64    `json:"chunk_count,omitempty"`
	LastSeen       time.Time `json:"last_seen,omitzero"`
}

// Discovery is the answer to "who can serve this content right now".
// Listing is nil when only seeders are known for the hash.
type Discovery struct {
	ContentHash string   `json:"content_hash"`
	Listing     *Listing `json:"listing,omitempty"`
	Sources     []Source `json:"sources"`
}

// AdminOperation is an audit record of a privileged call.
type AdminOperation struct {
	ID         int64     `json:"id"`
	Operation  string    `json:"operation"`
	Parameters string    `json:"parameters"`
	Actor      string    `json:"actor"`
	StartedAt  time.Time `json:"started_at"`
	Status     string    `json:"status"` // "success" or "error"
	Affected   int64     `json:"affected"`
}
