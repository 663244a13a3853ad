package testutil

import (
	"conduit-registry/internal/encryption"
	"conduit-registry/internal/vault"
)

// NewTestVault creates an in-memory snapshot vault.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault("test-vault")
}

// NewTestEncryptor returns an encryptor that frames snapshots without
// encrypting them.
func NewTestEncryptor() encryption.Encryptor {
	return encryption.NewPlainEncryptor()
}
