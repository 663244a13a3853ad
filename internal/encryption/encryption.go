package encryption

import (
	"errors"
	"io"
)

// ErrKeysExist is returned by GenerateKeys when a key pair is already present
// at the configured paths.
var ErrKeysExist = errors.New("snapshot keys already exist")

// ErrNotConfigured is returned when an operation needs keys that have not
// been generated yet.
var ErrNotConfigured = errors.New("snapshot keys not configured")

// Encryptor seals registry snapshots before they leave the host.
// Sealing needs only the public key. Opening a snapshot requires the
// passphrase that protects the private key.
type Encryptor interface {
	// GenerateKeys creates a key pair and protects the private half with
	// passphrase. It never replaces existing keys.
	GenerateKeys(passphrase string) error

	// Seal encrypts r into w.
	Seal(r io.Reader, w io.Writer) error

	// Unlock returns an Opener for the lifetime of a restore.
	Unlock(passphrase string) (Opener, error)

	// Recipient returns the public key snapshots are sealed to.
	Recipient() (string, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// Opener decrypts sealed snapshots. The unlocked key stays in memory.
type Opener interface {
	Open(r io.Reader, w io.Writer) error
}
