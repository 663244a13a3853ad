package encryption

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"conduit-registry/internal/config"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "registry.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "registry.key"),
	})
}

func TestAgeEncryptor_GenerateKeys(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)

	if e.IsConfigured() {
		t.Fatal("IsConfigured() = true before GenerateKeys, want false")
	}
	if err := e.GenerateKeys("test-passphrase"); err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after GenerateKeys, want true")
	}

	info, err := os.Stat(e.privateKeyPath)
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("private key mode = %o, want 0600", perm)
	}

	recipient, err := e.Recipient()
	if err != nil {
		t.Fatalf("Recipient() error = %v", err)
	}
	if !strings.HasPrefix(recipient, "age1") {
		t.Errorf("Recipient() = %q, want an age1 public key", recipient)
	}
}

func TestAgeEncryptor_GenerateKeysRefusesOverwrite(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)

	if err := e.GenerateKeys("first"); err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}
	before, _ := os.ReadFile(e.publicKeyPath)

	if err := e.GenerateKeys("second"); !errors.Is(err, ErrKeysExist) {
		t.Errorf("second GenerateKeys() error = %v, want ErrKeysExist", err)
	}
	after, _ := os.ReadFile(e.publicKeyPath)
	if !bytes.Equal(before, after) {
		t.Error("public key changed after refused GenerateKeys")
	}
}

func TestAgeEncryptor_GenerateKeysRejectsEmptyPassphrase(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	if err := e.GenerateKeys("  "); err == nil {
		t.Error("GenerateKeys(blank) error = nil, want error")
	}
	if e.IsConfigured() {
		t.Error("IsConfigured() = true after rejected GenerateKeys")
	}
}

func TestAgeEncryptor_SealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("SQLite format 3\x00")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
		{name: "large data", input: bytes.Repeat([]byte("listing"), 10000)},
	}

	const passphrase = "correct horse"
	e := newTestAgeEncryptor(t)
	if err := e.GenerateKeys(passphrase); err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}
	opener, err := e.Unlock(passphrase)
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sealed bytes.Buffer
			if err := e.Seal(bytes.NewReader(tt.input), &sealed); err != nil {
				t.Fatalf("Seal() error = %v", err)
			}
			if len(tt.input) > 0 && bytes.Contains(sealed.Bytes(), tt.input) {
				t.Error("sealed output contains the plaintext")
			}

			var opened bytes.Buffer
			if err := opener.Open(bytes.NewReader(sealed.Bytes()), &opened); err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if !bytes.Equal(opened.Bytes(), tt.input) {
				t.Errorf("round-trip failed: got %d bytes, want %d bytes", opened.Len(), len(tt.input))
			}
		})
	}
}

func TestAgeEncryptor_UnlockWrongPassphrase(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	if err := e.GenerateKeys("correct-passphrase"); err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}
	if _, err := e.Unlock("wrong-passphrase"); err == nil {
		t.Error("Unlock() with wrong passphrase should return error")
	}
}

func TestAgeEncryptor_BeforeKeys(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)

	var buf bytes.Buffer
	if err := e.Seal(strings.NewReader("data"), &buf); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Seal() error = %v, want ErrNotConfigured", err)
	}
	if _, err := e.Unlock("passphrase"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Unlock() error = %v, want ErrNotConfigured", err)
	}
	if _, err := e.Recipient(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Recipient() error = %v, want ErrNotConfigured", err)
	}
}
