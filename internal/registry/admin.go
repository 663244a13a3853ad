package registry

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"
)

// Audit statuses recorded for admin operations.
const (
	OperationSuccess = "success"
	OperationError   = "error"
)

// Grant is a capability proving its holder may run privileged operations.
// The zero Grant authorizes nothing.
type Grant struct {
	actor string
}

// Actor names who the grant was issued to, for the audit trail.
func (g Grant) Actor() string { return g.actor }

// Valid reports whether the grant was issued by a Gate or OperatorGrant.
func (g Grant) Valid() bool { return g.actor != "" }

// OperatorGrant mints a grant for in-process operator tooling that already
// holds direct access to the database.
func OperatorGrant(actor string) Grant {
	if actor == "" {
		actor = "operator"
	}
	return Grant{actor: actor}
}

// Gate exchanges a bearer token for a Grant. Only a digest of the configured
// token is kept. A Gate built from an empty token refuses every request.
type Gate struct {
	digest  [sha256.Size]byte
	enabled bool
}

// NewGate returns a gate that accepts token.
func NewGate(token string) *Gate {
	token = strings.TrimSpace(token)
	if token == "" {
		return &Gate{}
	}
	return &Gate{digest: sha256.Sum256([]byte(token)), enabled: true}
}

// Enabled reports whether the gate can ever authorize a request.
func (g *Gate) Enabled() bool { return g != nil && g.enabled }

// Authorize checks token and mints a grant for the remote caller.
func (g *Gate) Authorize(token string) (Grant, error) {
	if !g.Enabled() {
		return Grant{}, fmt.Errorf("%w: admin access is disabled", ErrUnauthorized)
	}
	sum := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(sum[:], g.digest[:]) != 1 {
		return Grant{}, fmt.Errorf("%w: invalid admin token", ErrUnauthorized)
	}
	return Grant{actor: "token"}, nil
}

func requireGrant(g Grant) error {
	if !g.Valid() {
		return fmt.Errorf("%w: operation requires an admin grant", ErrUnauthorized)
	}
	return nil
}

// audit records a privileged call. A failure to record is logged and never
// replaces the result of the operation itself.
func (s *Service) audit(ctx context.Context, g Grant, operation, params string, affected int64, opErr error) {
	status := OperationSuccess
	if opErr != nil {
		status = OperationError
	}
	op := &AdminOperation{
		Operation:  operation,
		Parameters: params,
		Actor:      g.Actor(),
		StartedAt:  s.clock.Now(),
		Status:     status,
		Affected:   affected,
	}
	if _, err := s.store.RecordAdminOperation(ctx, op); err != nil {
		s.logger.Error("recording admin operation failed", "operation", operation, "error", err)
		return
	}
	s.logger.Info("admin operation", "operation", operation, "actor", op.Actor, "status", status, "affected", affected)
}

// ClearListings removes every listing. Seeder announcements are untouched.
func (s *Service) ClearListings(ctx context.Context, g Grant) (int64, error) {
	if err := requireGrant(g); err != nil {
		return 0, err
	}
	n, err := s.store.ClearListings(ctx)
	s.audit(ctx, g, "clear_listings", "", n, err)
	if err != nil {
		return 0, fmt.Errorf("clearing listings: %w", err)
	}
	return n, nil
}

// ClearSeeders removes every seeder announcement.
func (s *Service) ClearSeeders(ctx context.Context, g Grant) (int64, error) {
	if err := requireGrant(g); err != nil {
		return 0, err
	}
	n, err := s.store.ClearSeeders(ctx)
	s.audit(ctx, g, "clear_seeders", "", n, err)
	if err != nil {
		return 0, fmt.Errorf("clearing seeders: %w", err)
	}
	return n, nil
}

// ClearManufacturers removes every manufacturer entry.
func (s *Service) ClearManufacturers(ctx context.Context, g Grant) (int64, error) {
	if err := requireGrant(g); err != nil {
		return 0, err
	}
	n, err := s.store.ClearManufacturers(ctx)
	s.audit(ctx, g, "clear_manufacturers", "", n, err)
	if err != nil {
		return 0, fmt.Errorf("clearing manufacturers: %w", err)
	}
	return n, nil
}

// RegisterManufacturer adds a trust anchor. Duplicate keys are ErrConflict.
func (s *Service) RegisterManufacturer(ctx context.Context, g Grant, m Manufacturer) (*Manufacturer, error) {
	if err := requireGrant(g); err != nil {
		return nil, err
	}
	normalizeManufacturer(&m)
	if err := validateRecord(&m); err != nil {
		return nil, err
	}
	m.RegisteredAt = s.clock.Now()

	err := s.store.PutManufacturer(ctx, &m)
	var affected int64
	if err == nil {
		affected = 1
	}
	s.audit(ctx, g, "register_manufacturer", "pk_hex="+m.PKHex, affected, err)
	if err != nil {
		return nil, fmt.Errorf("registering manufacturer: %w", err)
	}
	return &m, nil
}

// DeleteManufacturer removes one trust anchor or returns ErrNotFound.
func (s *Service) DeleteManufacturer(ctx context.Context, g Grant, pkHex string) error {
	if err := requireGrant(g); err != nil {
		return err
	}
	pk := NormalizePubkey(pkHex)
	if pk == "" {
		return fmt.Errorf("%w: pk_hex is required", ErrInvalidInput)
	}

	err := s.store.DeleteManufacturer(ctx, pk)
	var affected int64
	if err == nil {
		affected = 1
	}
	s.audit(ctx, g, "delete_manufacturer", "pk_hex="+pk, affected, err)
	if err != nil {
		return fmt.Errorf("deleting manufacturer: %w", err)
	}
	return nil
}

// AdminHistory returns up to limit audit records, newest first.
// Reading the history is itself privileged but not audited.
func (s *Service) AdminHistory(ctx context.Context, g Grant, limit int) ([]AdminOperation, error) {
	if err := requireGrant(g); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	ops, err := s.store.ListAdminOperations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing admin operations: %w", err)
	}
	return ops, nil
}
