package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"conduit-registry/internal/database"
	"conduit-registry/internal/database/migrations"
	"conduit-registry/internal/encryption"
	"conduit-registry/internal/registry"
	"conduit-registry/internal/vault"
)

// snapshotTimeFormat sorts lexically in time order and stays inside the
// vault's name alphabet.
const snapshotTimeFormat = "20060102T150405.000000000Z"

// SnapshotName returns the vault name of a snapshot taken at t.
func SnapshotName(t time.Time) string {
	return "registry-" + t.UTC().Format(snapshotTimeFormat) + ".snap"
}

// backupSource is a database that can copy itself to a file.
type backupSource interface {
	BackupTo(ctx context.Context, destPath string) error
}

// Snapshotter copies the registry database, seals it and stores it in a
// vault. Restores run the same pipeline backwards into a new file.
type Snapshotter struct {
	db     backupSource
	vault  vault.Vault
	enc    encryption.Encryptor
	clock  registry.Clock
	logger registry.Logger
}

func NewSnapshotter(db backupSource, v vault.Vault, enc encryption.Encryptor, clock registry.Clock, logger registry.Logger) *Snapshotter {
	return &Snapshotter{db: db, vault: v, enc: enc, clock: clock, logger: logger}
}

// Create takes a consistent copy with VACUUM INTO, seals it and uploads it.
func (s *Snapshotter) Create(ctx context.Context) (*vault.SnapshotInfo, error) {
	if !s.enc.IsConfigured() {
		return nil, fmt.Errorf("creating snapshot: %w (run `registry keys init`)", encryption.ErrNotConfigured)
	}

	tmpDir, err := os.MkdirTemp("", "registry-snapshot-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	plainPath := filepath.Join(tmpDir, "registry.db")
	if err := s.db.BackupTo(ctx, plainPath); err != nil {
		return nil, fmt.Errorf("copying database: %w", err)
	}

	sealedPath := filepath.Join(tmpDir, "registry.snap")
	size, err := s.seal(plainPath, sealedPath)
	if err != nil {
		return nil, err
	}

	sealed, err := os.Open(sealedPath)
	if err != nil {
		return nil, fmt.Errorf("opening sealed snapshot: %w", err)
	}
	defer sealed.Close()

	now := s.clock.Now().UTC()
	name := SnapshotName(now)
	if err := s.vault.PutSnapshot(ctx, name, sealed, size); err != nil {
		return nil, fmt.Errorf("storing snapshot in vault %s: %w", s.vault.Name(), err)
	}

	s.logger.Info("snapshot created", "name", name, "size", size, "vault", s.vault.Name())
	return &vault.SnapshotInfo{Name: name, Size: size, CreatedAt: now}, nil
}

func (s *Snapshotter) seal(plainPath, sealedPath string) (int64, error) {
	plain, err := os.Open(plainPath)
	if err != nil {
		return 0, fmt.Errorf("opening database copy: %w", err)
	}
	defer plain.Close()

	out, err := os.OpenFile(sealedPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return 0, fmt.Errorf("creating sealed snapshot: %w", err)
	}
	if err := s.enc.Seal(plain, out); err != nil {
		out.Close()
		return 0, fmt.Errorf("sealing snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("closing sealed snapshot: %w", err)
	}

	info, err := os.Stat(sealedPath)
	if err != nil {
		return 0, fmt.Errorf("stat sealed snapshot: %w", err)
	}
	return info.Size(), nil
}

// List returns the snapshots in the vault, oldest first.
func (s *Snapshotter) List(ctx context.Context) ([]vault.SnapshotInfo, error) {
	infos, err := s.vault.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots in vault %s: %w", s.vault.Name(), err)
	}
	return infos, nil
}

// Restore decrypts the named snapshot into destPath, which must not exist,
// and checks that the result is a registry database.
func (s *Snapshotter) Restore(ctx context.Context, name, passphrase, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("restore target %s already exists", destPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking restore target: %w", err)
	}

	opener, err := s.enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking snapshot key: %w", err)
	}

	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0700); err != nil {
		return fmt.Errorf("creating restore directory: %w", err)
	}

	sealed, err := os.CreateTemp(destDir, ".restore-sealed-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(sealed.Name())
	defer sealed.Close()

	if err := s.vault.GetSnapshot(ctx, name, sealed); err != nil {
		return fmt.Errorf("fetching snapshot %s: %w", name, err)
	}
	if _, err := sealed.Seek(0, 0); err != nil {
		return fmt.Errorf("rewinding snapshot: %w", err)
	}

	plain, err := os.CreateTemp(destDir, ".restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	plainPath := plain.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(plainPath)
		}
	}()

	if err := opener.Open(sealed, plain); err != nil {
		plain.Close()
		return fmt.Errorf("decrypting snapshot %s: %w", name, err)
	}
	if err := plain.Close(); err != nil {
		return fmt.Errorf("closing restored database: %w", err)
	}

	if err := verifyRegistryDB(plainPath); err != nil {
		return fmt.Errorf("snapshot %s is not a registry database: %w", name, err)
	}

	if err := os.Rename(plainPath, destPath); err != nil {
		return fmt.Errorf("moving restored database into place: %w", err)
	}
	success = true

	s.logger.Info("snapshot restored", "name", name, "path", destPath)
	return nil
}

func verifyRegistryDB(path string) error {
	store, err := database.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	status, err := store.MigrationStatus()
	if err != nil {
		return err
	}
	if status.Version == 0 {
		return migrations.ErrNoSchema
	}
	return nil
}
