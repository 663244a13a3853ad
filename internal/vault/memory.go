package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryVault keeps snapshots in memory. It is safe for concurrent use.
type MemoryVault struct {
	name      string
	snapshots map[string]memorySnapshot
	now       func() time.Time
	mu        sync.RWMutex
}

type memorySnapshot struct {
	data      []byte
	createdAt time.Time
}

var _ Vault = (*MemoryVault)(nil)

func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:      name,
		snapshots: make(map[string]memorySnapshot),
		now:       time.Now,
	}
}

func (m *MemoryVault) Name() string {
	return m.name
}

func (m *MemoryVault) PutSnapshot(_ context.Context, name string, r io.Reader, size int64) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[name] = memorySnapshot{data: data, createdAt: m.now().UTC()}
	return nil
}

func (m *MemoryVault) GetSnapshot(_ context.Context, name string, w io.Writer) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	m.mu.RLock()
	snap, ok := m.snapshots[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if _, err := io.Copy(w, bytes.NewReader(snap.data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (m *MemoryVault) ListSnapshots(context.Context) ([]SnapshotInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SnapshotInfo, 0, len(m.snapshots))
	for name, snap := range m.snapshots {
		infos = append(infos, SnapshotInfo{Name: name, Size: int64(len(snap.data)), CreatedAt: snap.createdAt})
	}
	sortSnapshots(infos)
	return infos, nil
}

func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}
