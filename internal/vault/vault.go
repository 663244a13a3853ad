package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"time"
)

var (
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrInvalidSnapshotName = errors.New("invalid snapshot name")
)

// SnapshotInfo describes a stored snapshot.
type SnapshotInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Vault stores sealed registry snapshots off-host.
// All operations stream through io.Reader/io.Writer so a snapshot is never
// held in memory by the caller.
type Vault interface {
	// Name identifies the vault in logs and CLI output.
	Name() string

	// PutSnapshot stores size bytes read from r under name, replacing any
	// snapshot with the same name.
	PutSnapshot(ctx context.Context, name string, r io.Reader, size int64) error

	// GetSnapshot writes the named snapshot to w. It returns
	// ErrSnapshotNotFound when no such snapshot exists.
	GetSnapshot(ctx context.Context, name string, w io.Writer) error

	// ListSnapshots returns every snapshot ordered by name.
	ListSnapshots(ctx context.Context) ([]SnapshotInfo, error)

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

var snapshotNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateName rejects names that could escape a vault prefix or directory.
func ValidateName(name string) error {
	if !snapshotNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSnapshotName, name)
	}
	return nil
}

func sortSnapshots(infos []SnapshotInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
}

// countingReader records how many bytes have passed through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
