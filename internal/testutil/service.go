package testutil

import (
	"testing"

	"conduit-registry/internal/database"
	"conduit-registry/internal/registry"
	"conduit-registry/internal/search"
)

// TestRegistry bundles a Service with the store and clock behind it.
type TestRegistry struct {
	Service *registry.Service
	Store   *database.SQLiteStore
	Clock   *StubClock
}

// NewTestRegistry wires a Service over an in-memory store, the bleve search
// engine, a no-op logger and a FixedClock.
func NewTestRegistry(t *testing.T) *TestRegistry {
	t.Helper()

	store := NewTestStore(t)
	clock := FixedClock()
	logger := registry.NewNopLogger()
	svc := registry.NewService(store, search.NewEngine(store, logger), logger, clock)

	return &TestRegistry{Service: svc, Store: store, Clock: clock}
}
